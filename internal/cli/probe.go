package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prowlkit/prowl/internal/sut"
)

// ProbeOptions holds flags for the probe command.
type ProbeOptions struct {
	*RootOptions
	transportOptions

	Timeout  time.Duration
	Interval time.Duration
}

// NewProbeCommand creates the probe command: wait until the service
// answers a trivial query.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProbeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "probe",
		Short:         "Wait for the service to become ready",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "readiness deadline")
	cmd.Flags().DurationVar(&opts.Interval, "interval", sut.DefaultReadyInterval, "pause between probes")
	addTransportFlags(cmd, &opts.transportOptions)
	return cmd
}

type probeReport struct {
	Ready   bool   `json:"ready"`
	Elapsed string `json:"elapsed"`
}

func (r probeReport) String() string {
	return fmt.Sprintf("service ready after %s", r.Elapsed)
}

func runProbe(cmd *cobra.Command, opts *ProbeOptions) error {
	formatter := &OutputFormatter{}
	formatter.fromRoot(opts.RootOptions, cmd.OutOrStdout())
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	admin := sut.NewClient(opts.connector(), logger)
	start := time.Now()
	if err := admin.WaitReady(cmd.Context(), opts.Timeout, opts.Interval); err != nil {
		return WrapExitError(ExitFailure, "service not ready", err)
	}

	report := probeReport{Ready: true, Elapsed: time.Since(start).Round(time.Millisecond).String()}
	if err := formatter.Success(report); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}
