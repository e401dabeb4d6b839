package sut

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/prowlkit/prowl/internal/account"
)

// DefaultBinary is the service's command-line client.
const DefaultBinary = "clickhouse-client"

// ExecConfig locates the service for the subprocess transport.
type ExecConfig struct {
	// Binary is the client executable. Defaults to DefaultBinary.
	Binary string

	// Host and Port are passed through when non-zero.
	Host string
	Port int
}

// ExecConnector opens sessions by spawning the command-line client once
// per statement. Statement text travels on the command line; the exit
// status and stderr carry the service's verdict.
type ExecConnector struct {
	cfg ExecConfig
}

// NewExecConnector builds a subprocess connector.
func NewExecConnector(cfg ExecConfig) *ExecConnector {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	return &ExecConnector{cfg: cfg}
}

// Session implements Connector.
func (c *ExecConnector) Session(p account.Principal) Transport {
	return &execSession{cfg: c.cfg, identity: p}
}

type execSession struct {
	cfg      ExecConfig
	identity account.Principal
}

// args renders the session identity into client flags. An
// unauthenticated identity presents no password flag at all; the
// no_password mode presents an explicitly empty one.
func (s *execSession) args(stmt string) []string {
	args := []string{}
	if s.cfg.Host != "" {
		args = append(args, "--host", s.cfg.Host)
	}
	if s.cfg.Port != 0 {
		args = append(args, "--port", fmt.Sprintf("%d", s.cfg.Port))
	}
	args = append(args, "-u", s.identity.Name)
	switch s.identity.Credential.Kind {
	case account.KindUnauthenticated:
	case account.KindNoCredential:
		args = append(args, "--password", "")
	case account.KindPlainSecret:
		args = append(args, "--password", s.identity.Credential.Secret)
	}
	return append(args, "--query", stmt)
}

func (s *execSession) Execute(ctx context.Context, stmt string) (string, error) {
	cmd := exec.CommandContext(ctx, s.cfg.Binary, s.args(stmt)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	// A clean nonzero exit with diagnostics is the service talking; a
	// spawn or signal failure means we never reached it.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		raw := stderr.String()
		if raw == "" {
			raw = stdout.String()
		}
		return "", ParseServiceError(raw)
	}
	return "", &TransportError{Op: fmt.Sprintf("exec %s", s.cfg.Binary), Err: err}
}

func (s *execSession) ExecuteTabular(ctx context.Context, stmt string) ([]Row, error) {
	out, err := s.Execute(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return parseTabular(out)
}
