package cli

import (
	"github.com/spf13/cobra"

	"github.com/prowlkit/prowl/internal/sut"
)

// transportOptions selects the service transport shared by every
// command that talks to a service.
type transportOptions struct {
	Fake   bool
	Binary string
	Host   string
	Port   int
}

func addTransportFlags(cmd *cobra.Command, opts *transportOptions) {
	cmd.Flags().BoolVar(&opts.Fake, "fake", false, "run against the in-process reference service")
	cmd.Flags().StringVar(&opts.Binary, "binary", sut.DefaultBinary, "service client executable")
	cmd.Flags().StringVar(&opts.Host, "host", "", "service host")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "service port")
}

// connector builds the selected transport. The fake service is fresh
// per invocation; the exec connector spawns the client per statement.
func (t *transportOptions) connector() sut.Connector {
	if t.Fake {
		return sut.NewMemory()
	}
	return sut.NewExecConnector(sut.ExecConfig{
		Binary: t.Binary,
		Host:   t.Host,
		Port:   t.Port,
	})
}
