package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prowlkit/prowl/internal/config"
	"github.com/prowlkit/prowl/internal/harness"
	"github.com/prowlkit/prowl/internal/store"
	"github.com/prowlkit/prowl/internal/trace"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	transportOptions

	Profile  string
	Examples int
	Steps    int
	Seed     int64
	Database string
}

// NewRunCommand creates the run command: a full randomized campaign
// against one service.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a randomized campaign against a service",
		Long: `Run drives the service's user subsystem with randomized operation
sequences. Each example starts from a clean service and a fresh model;
the first failing example is journaled, shrunk to a minimal
reproduction, and ends the campaign with exit code 1.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE profile path (defaults apply when omitted)")
	cmd.Flags().IntVar(&opts.Examples, "examples", 0, "number of examples (overrides profile)")
	cmd.Flags().IntVar(&opts.Steps, "steps", 0, "max steps per example (overrides profile)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "base seed (0 derives one from the clock)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database path")
	addTransportFlags(cmd, &opts.transportOptions)

	return cmd
}

// runReport is the run command's output payload.
type runReport struct {
	Examples  int         `json:"examples"`
	Passed    int         `json:"passed"`
	Exhausted int         `json:"exhausted"`
	Seed      int64       `json:"seed"`
	Failure   *runFailure `json:"failure,omitempty"`
}

type runFailure struct {
	Token        string    `json:"token"`
	Seed         int64     `json:"seed"`
	Signature    string    `json:"signature"`
	Steps        int       `json:"steps"`
	MinimalSteps []runStep `json:"minimal_steps"`
}

type runStep struct {
	Index  int64  `json:"index"`
	Rule   string `json:"rule"`
	Params string `json:"params"`
}

func (r runReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "examples: %d (passed %d, exhausted %d), base seed %d",
		r.Examples, r.Passed, r.Exhausted, r.Seed)
	if r.Failure == nil {
		b.WriteString("\nno failures found")
		return b.String()
	}
	f := r.Failure
	fmt.Fprintf(&b, "\nFAILED: %s", f.Signature)
	fmt.Fprintf(&b, "\n  run %s (seed %d, %d raw steps)", f.Token, f.Seed, f.Steps)
	fmt.Fprintf(&b, "\n  minimal reproduction (%d steps):", len(f.MinimalSteps))
	for _, s := range f.MinimalSteps {
		fmt.Fprintf(&b, "\n    %3d %s %s", s.Index, s.Rule, s.Params)
	}
	return b.String()
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	formatter := &OutputFormatter{}
	formatter.fromRoot(opts.RootOptions, cmd.OutOrStdout())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	profile, err := loadProfile(opts.Profile)
	if err != nil {
		return WrapExitError(ExitCommandError, "load profile", err)
	}
	if cmd.Flags().Changed("examples") {
		profile.Examples = opts.Examples
	}
	if cmd.Flags().Changed("steps") {
		profile.MaxSteps = opts.Steps
	}

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	settings := harness.Settings{
		Examples:     profile.Examples,
		MaxSteps:     profile.MaxSteps,
		Seed:         seed,
		Options:      profile.Options(),
		ReadyTimeout: profile.ReadyTimeout(),
		Logger:       logger,
	}
	if opts.Fake {
		// The fake answers immediately; skip the readiness wait.
		settings.ReadyTimeout = 0
	}

	if opts.Database != "" {
		journal, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "open journal", err)
		}
		defer journal.Close()
		settings.Journal = journal
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := harness.NewCampaign(opts.connector(), settings).Run(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "campaign", err)
	}

	out := runReport{
		Examples:  report.Examples,
		Passed:    report.Passed,
		Exhausted: report.Exhausted,
		Seed:      seed,
	}
	if report.Failed() {
		out.Failure = &runFailure{
			Token:        report.Failure.Token,
			Seed:         report.Failure.Seed,
			Signature:    report.Failure.Signature,
			Steps:        len(report.Failure.Steps),
			MinimalSteps: renderSteps(report.Failure.MinimalSteps),
		}
	}
	if err := formatter.Success(out); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	if report.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("campaign failed: %s", report.Failure.Signature))
	}
	return nil
}

func loadProfile(path string) (*config.Profile, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func renderSteps(steps []trace.Step) []runStep {
	out := make([]runStep, 0, len(steps))
	for _, s := range steps {
		params, err := trace.EncodeParams(s.Params)
		if err != nil {
			params = []byte(fmt.Sprintf("%v", s.Params))
		}
		out = append(out, runStep{Index: s.Index, Rule: s.Rule, Params: string(params)})
	}
	return out
}
