package sut

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prowlkit/prowl/internal/account"
)

// DefaultReadyInterval is the pause between readiness probes.
const DefaultReadyInterval = 500 * time.Millisecond

// Client issues account-management statements and login probes under a
// fixed session identity. The zero identity is the service's default
// superuser; As derives a client for any other principal. Secrets are
// never logged: log records carry names and credential kinds only.
type Client struct {
	conn     Connector
	identity account.Principal
	log      *slog.Logger
}

// NewClient builds an admin client speaking as the default superuser.
func NewClient(conn Connector, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		conn: conn,
		identity: account.Principal{
			Name:       account.DefaultName,
			Credential: account.NoCredential(),
		},
		log: logger,
	}
}

// As derives a client with the same connector and logger but a
// different session identity.
func (c *Client) As(p account.Principal) *Client {
	return &Client{conn: c.conn, identity: p, log: c.log}
}

// Identity returns the session principal.
func (c *Client) Identity() account.Principal { return c.identity }

func (c *Client) session() Transport {
	return c.conn.Session(c.identity)
}

// CreateUser issues CREATE USER for name with the given credential.
func (c *Client) CreateUser(ctx context.Context, name string, cred account.Credential) error {
	c.log.Debug("create user", "name", name, "credential", cred.String())
	_, err := c.session().Execute(ctx, account.CreateStatement(name, cred))
	return err
}

// AlterUser issues ALTER USER for name. rename is the new name or "";
// cred is the new credential or nil. With neither, the statement is a
// bare ALTER USER, which the service accepts as a no-op.
func (c *Client) AlterUser(ctx context.Context, name, rename string, cred *account.Credential) error {
	attrs := []any{"name", name}
	if rename != "" {
		attrs = append(attrs, "rename_to", rename)
	}
	if cred != nil {
		attrs = append(attrs, "credential", cred.String())
	}
	c.log.Debug("alter user", attrs...)
	_, err := c.session().Execute(ctx, account.AlterStatement(name, rename, cred))
	return err
}

// DropUser issues DROP USER for name.
func (c *Client) DropUser(ctx context.Context, name string) error {
	c.log.Debug("drop user", "name", name)
	_, err := c.session().Execute(ctx, account.DropStatement(name))
	return err
}

// TryLogin opens a session as p and runs a trivial query, exercising
// the service's authentication path. A rejection surfaces as a
// *ServiceError (KindAuthRejected when the credential is refused).
func (c *Client) TryLogin(ctx context.Context, p account.Principal) error {
	c.log.Debug("login probe", "name", p.Name, "credential", p.Credential.String())
	_, err := c.conn.Session(p).Execute(ctx, "SELECT 1")
	return err
}

// ListUsers returns the names of all managed accounts, default
// excluded, sorted by the service. Rows listed with an empty name are
// logged and skipped rather than surfaced.
func (c *Client) ListUsers(ctx context.Context) ([]string, error) {
	rows, err := c.session().ExecuteTabular(ctx,
		"SELECT name FROM system.users WHERE name != 'default' ORDER BY name FORMAT TabSeparatedWithNames")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name, ok := row["name"]
		if !ok || name == "" {
			c.log.Warn("listing returned row without a usable name", "row", fmt.Sprintf("%v", row))
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// DeleteAllUsers drops every managed account. Used to reset the
// service between examples and by the cleanup command.
func (c *Client) DeleteAllUsers(ctx context.Context) error {
	names, err := c.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := c.DropUser(ctx, name); err != nil {
			return fmt.Errorf("delete all users: drop %s: %w", name, err)
		}
	}
	c.log.Debug("deleted all users", "count", len(names))
	return nil
}

// WaitReady polls the service with a trivial query until it answers or
// the deadline passes. This is the only place transport errors are
// retried; a deadline failure is fatal to the campaign.
func (c *Client) WaitReady(ctx context.Context, deadline, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultReadyInterval
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		_, lastErr = c.session().Execute(ctx, "SELECT 1")
		if lastErr == nil {
			c.log.Debug("service ready", "attempts", attempt)
			return nil
		}
		c.log.Debug("service not ready", "attempt", attempt, "error", lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("service not ready after %s: %w", deadline, lastErr)
		case <-time.After(interval):
		}
	}
}
