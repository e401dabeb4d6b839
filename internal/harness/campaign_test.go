package harness_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlkit/prowl/internal/account"
	"github.com/prowlkit/prowl/internal/harness"
	"github.com/prowlkit/prowl/internal/store"
	"github.com/prowlkit/prowl/internal/sut"
)

func TestCampaign_PassesOnFaithfulService(t *testing.T) {
	campaign := harness.NewCampaign(sut.NewMemory(), harness.Settings{
		Examples:     5,
		MaxSteps:     25,
		Seed:         1,
		ReadyTimeout: time.Second,
	})

	report, err := campaign.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.Equal(t, 5, report.Examples)
	assert.Equal(t, 5, report.Passed+report.Exhausted)
}

// brokenDropConnector acknowledges DROP USER without executing it.
type brokenDropConnector struct {
	inner sut.Connector
}

func (c *brokenDropConnector) Session(p account.Principal) sut.Transport {
	return &brokenDropSession{inner: c.inner.Session(p)}
}

type brokenDropSession struct {
	inner sut.Transport
}

func (s *brokenDropSession) Execute(ctx context.Context, stmt string) (string, error) {
	if strings.HasPrefix(strings.TrimSpace(stmt), "DROP USER ") {
		return "", nil
	}
	return s.inner.Execute(ctx, stmt)
}

func (s *brokenDropSession) ExecuteTabular(ctx context.Context, stmt string) ([]sut.Row, error) {
	return s.inner.ExecuteTabular(ctx, stmt)
}

// TestCampaign_JournalsAndShrinksFailure runs against a service that
// never deletes accounts: the campaign must find the bug, journal the
// raw run, and journal a minimized reproduction.
func TestCampaign_JournalsAndShrinksFailure(t *testing.T) {
	ctx := context.Background()

	journal, err := store.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer journal.Close()

	campaign := harness.NewCampaign(&brokenDropConnector{inner: sut.NewMemory()}, harness.Settings{
		Examples: 30,
		MaxSteps: 60,
		Seed:     1,
		Journal:  journal,
	})

	report, err := campaign.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Failed(), "the broken drop was never caught")

	failure := report.Failure
	assert.NotEmpty(t, failure.Token)
	assert.NotEmpty(t, failure.Signature)
	assert.NotEmpty(t, failure.Steps)
	require.NotEmpty(t, failure.MinimalSteps)
	assert.LessOrEqual(t, len(failure.MinimalSteps), len(failure.Steps))

	// raw run journaled
	journaled, err := journal.LoadRun(ctx, failure.Token)
	require.NoError(t, err)
	assert.Equal(t, failure.Signature, journaled.Failure)
	assert.Equal(t, failure.Seed, journaled.Seed)
	assert.Len(t, journaled.Steps, len(failure.Steps))

	// minimal sequence journaled
	shrunk, err := journal.LoadShrunk(ctx, failure.Token)
	require.NoError(t, err)
	assert.Len(t, shrunk, len(failure.MinimalSteps))
}

// TestCampaign_ExamplesAreIsolated checks that accounts from one
// example never appear in the next: distinct examples would otherwise
// trip the listing invariant immediately.
func TestCampaign_ExamplesAreIsolated(t *testing.T) {
	mem := sut.NewMemory()
	campaign := harness.NewCampaign(mem, harness.Settings{
		Examples: 3,
		MaxSteps: 20,
		Seed:     100,
	})

	report, err := campaign.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed())
	assert.Equal(t, 3, report.Examples)
}
