package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlkit/prowl/internal/trace"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() *trace.Run {
	return &trace.Run{
		Token:   "0192aaaa-0000-7000-8000-000000000001",
		Seed:    42,
		Status:  trace.StatusFailed,
		Failure: "invariant/listing-round-trip",
		Steps: []trace.Step{
			{
				Index: 1,
				Rule:  "create_principal",
				Params: trace.Params{
					"source":      "fresh",
					"name":        "pt_abc",
					"external_id": "x1",
					"credential":  map[string]any{"kind": "plain_secret", "secret": "pw"},
				},
				Outcome: "ok",
			},
			{
				Index:   2,
				Rule:    "drop_principal",
				Params:  trace.Params{"external_id": "x1", "name": "pt_abc"},
				Outcome: "invariant/listing-round-trip",
			},
		},
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(context.Background(), sampleRun()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	loaded, err := s.LoadRun(context.Background(), sampleRun().Token)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 2)
}

func TestSaveRun_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run := sampleRun()

	require.NoError(t, s.SaveRun(ctx, run))

	loaded, err := s.LoadRun(ctx, run.Token)
	require.NoError(t, err)
	assert.Equal(t, run.Seed, loaded.Seed)
	assert.Equal(t, run.Status, loaded.Status)
	assert.Equal(t, run.Failure, loaded.Failure)
	assert.Equal(t, run.Steps, loaded.Steps)

	// the journaled sequence hashes identically to the live one
	origHash, err := trace.SequenceHash(run.Steps)
	require.NoError(t, err)
	loadedHash, err := trace.SequenceHash(loaded.Steps)
	require.NoError(t, err)
	assert.Equal(t, origHash, loadedHash)
}

func TestSaveRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run := sampleRun()

	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.SaveRun(ctx, run))

	loaded, err := s.LoadRun(ctx, run.Token)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 2)
}

func TestSaveShrunk_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run))

	shrunk := []trace.Step{
		{Index: 1, Rule: "drop_principal", Params: trace.Params{"external_id": "x1", "name": "pt_a"}},
	}
	require.NoError(t, s.SaveShrunk(ctx, run.Token, shrunk))
	require.NoError(t, s.SaveShrunk(ctx, run.Token, shrunk))

	loaded, err := s.LoadShrunk(ctx, run.Token)
	require.NoError(t, err)
	assert.Equal(t, shrunk, loaded)

	// raw sequence is untouched
	full, err := s.LoadRun(ctx, run.Token)
	require.NoError(t, err)
	assert.Len(t, full.Steps, 2)
}

func TestLoadRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadRun(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadShrunk_NeverShrunk(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.SaveRun(ctx, sampleRun()))

	steps, err := s.LoadShrunk(ctx, sampleRun().Token)
	require.NoError(t, err)
	assert.Nil(t, steps)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	failed := sampleRun()
	require.NoError(t, s.SaveRun(ctx, failed))

	passed := &trace.Run{
		Token:  "0192aaaa-0000-7000-8000-000000000002",
		Seed:   7,
		Status: trace.StatusPassed,
		Steps:  []trace.Step{{Index: 1, Rule: "create_principal", Params: trace.Params{"name": "pt_x"}, Outcome: "ok"}},
	}
	require.NoError(t, s.SaveRun(ctx, passed))

	all, err := s.ListRuns(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	failures, err := s.ListRuns(ctx, true)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, failed.Token, failures[0].Token)
	assert.Equal(t, "invariant/listing-round-trip", failures[0].Failure)
}
