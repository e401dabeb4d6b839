package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prowlkit/prowl/internal/lifecycle"
	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/store"
	"github.com/prowlkit/prowl/internal/sut"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	transportOptions

	Database string
	Shrunk   bool
}

// NewReplayCommand creates the replay command: re-execute a journaled
// run against a service and compare the outcome to the journal.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <token>",
		Short: "Replay a journaled run and compare its outcome",
		Long: `Replay loads a run from the journal and re-executes its recorded
steps against a clean service: no drawing, same apply path, same
invariant checks. Exit code 1 means the replay's outcome diverged from
the journaled one.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database path (required)")
	cmd.Flags().BoolVar(&opts.Shrunk, "shrunk", false, "replay the minimized sequence instead of the raw one")
	addTransportFlags(cmd, &opts.transportOptions)

	return cmd
}

// replayReport is the replay command's output payload.
type replayReport struct {
	Token     string `json:"token"`
	Shrunk    bool   `json:"shrunk"`
	Steps     int    `json:"steps"`
	Journaled string `json:"journaled"`
	Replayed  string `json:"replayed"`
	Match     bool   `json:"match"`
}

func (r replayReport) String() string {
	var b strings.Builder
	kind := "raw"
	if r.Shrunk {
		kind = "shrunk"
	}
	fmt.Fprintf(&b, "replayed %s sequence of run %s (%d steps)", kind, r.Token, r.Steps)
	fmt.Fprintf(&b, "\n  journaled: %s", describeSignature(r.Journaled))
	fmt.Fprintf(&b, "\n  replayed:  %s", describeSignature(r.Replayed))
	if r.Match {
		b.WriteString("\noutcome reproduced")
	} else {
		b.WriteString("\nOUTCOME DIVERGED")
	}
	return b.String()
}

func describeSignature(sig string) string {
	if sig == "" {
		return "(clean)"
	}
	return sig
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions, token string) error {
	formatter := &OutputFormatter{}
	formatter.fromRoot(opts.RootOptions, cmd.OutOrStdout())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "replay requires --db")
	}
	journal, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer journal.Close()

	ctx := cmd.Context()
	run, err := journal.LoadRun(ctx, token)
	if err != nil {
		return WrapExitError(ExitCommandError, "load run", err)
	}
	steps := run.Steps
	if opts.Shrunk {
		steps, err = journal.LoadShrunk(ctx, token)
		if err != nil {
			return WrapExitError(ExitCommandError, "load shrunk sequence", err)
		}
		if len(steps) == 0 {
			return NewExitError(ExitCommandError, fmt.Sprintf("run %s has no shrunk sequence", token))
		}
	}

	conn := opts.connector()
	admin := sut.NewClient(conn, logger)
	if err := admin.DeleteAllUsers(ctx); err != nil {
		return WrapExitError(ExitCommandError, "reset service", err)
	}

	catalog, invariants := lifecycle.NewMachine()
	state := lifecycle.NewState(admin, lifecycle.Options{})
	signature, err := machine.Replay(ctx, catalog, invariants, state, steps, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay", err)
	}

	out := replayReport{
		Token:     token,
		Shrunk:    opts.Shrunk,
		Steps:     len(steps),
		Journaled: run.Failure,
		Replayed:  signature,
		Match:     signature == run.Failure,
	}
	if err := formatter.Success(out); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if !out.Match {
		return NewExitError(ExitFailure,
			fmt.Sprintf("replay diverged: journaled %s, got %s",
				describeSignature(out.Journaled), describeSignature(out.Replayed)))
	}
	return nil
}
