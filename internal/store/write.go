package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prowlkit/prowl/internal/trace"
)

// SaveRun journals a run and its raw step sequence.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same run
// twice is a no-op, keyed by token and (token, idx) respectively.
func (s *Store) SaveRun(ctx context.Context, run *trace.Run) error {
	hash, err := trace.SequenceHash(run.Steps)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (token, seed, status, failure, sequence_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`, run.Token, run.Seed, string(run.Status), run.Failure, hash)
	if err != nil {
		return fmt.Errorf("save run: insert run: %w", err)
	}

	if err := insertSteps(ctx, tx, run.Token, false, run.Steps); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run: commit: %w", err)
	}
	return nil
}

// SaveShrunk journals the minimized sequence of a previously saved
// failing run. Idempotent like SaveRun.
func (s *Store) SaveShrunk(ctx context.Context, token string, steps []trace.Step) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save shrunk: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertSteps(ctx, tx, token, true, steps); err != nil {
		return fmt.Errorf("save shrunk: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save shrunk: commit: %w", err)
	}
	return nil
}

func insertSteps(ctx context.Context, tx *sql.Tx, token string, shrunk bool, steps []trace.Step) error {
	shrunkFlag := 0
	if shrunk {
		shrunkFlag = 1
	}
	for _, step := range steps {
		params, err := trace.EncodeParams(step.Params)
		if err != nil {
			return fmt.Errorf("encode step %d params: %w", step.Index, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps (run_token, shrunk, idx, rule, params, outcome)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_token, shrunk, idx) DO NOTHING
		`, token, shrunkFlag, step.Index, step.Rule, string(params), step.Outcome)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", step.Index, err)
		}
	}
	return nil
}
