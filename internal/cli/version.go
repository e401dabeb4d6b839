package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the CLI version, overridable at link time.
var Version = "0.1.0"

type versionReport struct {
	Version string `json:"version"`
}

func (r versionReport) String() string {
	return fmt.Sprintf("prowl v%s", r.Version)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print the prowl version",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{}
			formatter.fromRoot(rootOpts, cmd.OutOrStdout())
			return formatter.Success(versionReport{Version: Version})
		},
	}
}
