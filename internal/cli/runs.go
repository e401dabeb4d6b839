package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prowlkit/prowl/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions

	Database string
	Failed   bool
}

// NewRunsCommand creates the runs command: list journaled runs.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List journaled runs, newest first",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database path (required)")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "list failed runs only")
	return cmd
}

type runsReport struct {
	Runs []runsEntry `json:"runs"`
}

type runsEntry struct {
	Token     string `json:"token"`
	Seed      int64  `json:"seed"`
	Status    string `json:"status"`
	Failure   string `json:"failure,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (r runsReport) String() string {
	if len(r.Runs) == 0 {
		return "no journaled runs"
	}
	var b strings.Builder
	for i, e := range r.Runs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  seed %-12d %-9s %s", e.Token, e.Seed, e.Status, e.CreatedAt)
		if e.Failure != "" {
			fmt.Fprintf(&b, "  %s", e.Failure)
		}
	}
	return b.String()
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	formatter := &OutputFormatter{}
	formatter.fromRoot(opts.RootOptions, cmd.OutOrStdout())

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "runs requires --db")
	}
	journal, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open journal", err)
	}
	defer journal.Close()

	summaries, err := journal.ListRuns(cmd.Context(), opts.Failed)
	if err != nil {
		return WrapExitError(ExitCommandError, "list runs", err)
	}

	report := runsReport{Runs: make([]runsEntry, 0, len(summaries))}
	for _, s := range summaries {
		report.Runs = append(report.Runs, runsEntry{
			Token:     s.Token,
			Seed:      s.Seed,
			Status:    string(s.Status),
			Failure:   s.Failure,
			CreatedAt: s.CreatedAt,
		})
	}
	if err := formatter.Success(report); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
