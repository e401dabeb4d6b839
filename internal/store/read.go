package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prowlkit/prowl/internal/trace"
)

// LoadRun loads a journaled run by token, raw sequence included.
// Returns ErrNotFound for unknown tokens.
func (s *Store) LoadRun(ctx context.Context, token string) (*trace.Run, error) {
	run := &trace.Run{Token: token}
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT seed, status, failure FROM runs WHERE token = ?
	`, token).Scan(&run.Seed, &status, &run.Failure)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load run %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", token, err)
	}
	run.Status = trace.Status(status)

	run.Steps, err = s.loadSteps(ctx, token, false)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", token, err)
	}
	return run, nil
}

// LoadShrunk loads the minimized sequence of a failing run. Returns
// nil, nil when the run was never shrunk.
func (s *Store) LoadShrunk(ctx context.Context, token string) ([]trace.Step, error) {
	steps, err := s.loadSteps(ctx, token, true)
	if err != nil {
		return nil, fmt.Errorf("load shrunk %s: %w", token, err)
	}
	return steps, nil
}

// RunSummary is one journal listing entry.
type RunSummary struct {
	Token     string
	Seed      int64
	Status    trace.Status
	Failure   string
	CreatedAt string
}

// ListRuns returns journaled runs, newest first. failedOnly restricts
// the listing to failed runs.
func (s *Store) ListRuns(ctx context.Context, failedOnly bool) ([]RunSummary, error) {
	query := `SELECT token, seed, status, failure, created_at FROM runs ORDER BY created_at DESC, token DESC`
	if failedOnly {
		query = `SELECT token, seed, status, failure, created_at FROM runs WHERE status = 'failed' ORDER BY created_at DESC, token DESC`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var status string
		if err := rows.Scan(&r.Token, &r.Seed, &status, &r.Failure, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		r.Status = trace.Status(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

func (s *Store) loadSteps(ctx context.Context, token string, shrunk bool) ([]trace.Step, error) {
	shrunkFlag := 0
	if shrunk {
		shrunkFlag = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, rule, params, outcome FROM steps
		WHERE run_token = ? AND shrunk = ?
		ORDER BY idx ASC
	`, token, shrunkFlag)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []trace.Step
	for rows.Next() {
		var step trace.Step
		var params string
		if err := rows.Scan(&step.Index, &step.Rule, &params, &step.Outcome); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if step.Params, err = trace.DecodeParams([]byte(params)); err != nil {
			return nil, fmt.Errorf("step %d: %w", step.Index, err)
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}
