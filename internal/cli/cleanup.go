package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prowlkit/prowl/internal/sut"
)

// CleanupOptions holds flags for the cleanup command.
type CleanupOptions struct {
	*RootOptions
	transportOptions
}

// NewCleanupCommand creates the cleanup command: drop every managed
// account, leaving only the default superuser.
func NewCleanupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CleanupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "cleanup",
		Short:         "Drop every managed account on the service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd, opts)
		},
	}

	addTransportFlags(cmd, &opts.transportOptions)
	return cmd
}

type cleanupReport struct {
	Deleted int      `json:"deleted"`
	Names   []string `json:"names,omitempty"`
}

func (r cleanupReport) String() string {
	if r.Deleted == 0 {
		return "no managed accounts to delete"
	}
	return fmt.Sprintf("deleted %d accounts: %v", r.Deleted, r.Names)
}

func runCleanup(cmd *cobra.Command, opts *CleanupOptions) error {
	formatter := &OutputFormatter{}
	formatter.fromRoot(opts.RootOptions, cmd.OutOrStdout())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	ctx := cmd.Context()
	admin := sut.NewClient(opts.connector(), logger)

	names, err := admin.ListUsers(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "list accounts", err)
	}
	for _, name := range names {
		if err := admin.DropUser(ctx, name); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("drop %s", name), err)
		}
	}

	if err := formatter.Success(cleanupReport{Deleted: len(names), Names: names}); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
