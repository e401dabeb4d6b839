// Package harness orchestrates campaigns: repeated randomized examples
// against one service, with readiness gating, per-example resets,
// journaling, and shrinking of the first failure.
//
// It also executes deterministic YAML scenarios - fixed step sequences
// with expected outcomes - used as conformance tests for the lifecycle
// machine and as golden-trace fixtures.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prowlkit/prowl/internal/lifecycle"
	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/shrink"
	"github.com/prowlkit/prowl/internal/store"
	"github.com/prowlkit/prowl/internal/sut"
	"github.com/prowlkit/prowl/internal/trace"
)

// Settings configures a campaign.
type Settings struct {
	// Examples is the number of randomized examples to run.
	Examples int

	// MaxSteps bounds each example.
	MaxSteps int

	// Seed is the base seed; example i runs with Seed+i, so a failing
	// example names the exact seed to regenerate it.
	Seed int64

	// Options tunes lifecycle parameter generation.
	Options lifecycle.Options

	// ReadyTimeout bounds the readiness wait before the first example.
	// Zero skips the wait.
	ReadyTimeout time.Duration

	// ReadyInterval is the pause between readiness probes.
	ReadyInterval time.Duration

	// Journal receives failing runs and their shrunk sequences.
	// Optional.
	Journal *store.Store

	// ShrinkAttempts caps shrink candidate replays. Zero takes the
	// shrinker default.
	ShrinkAttempts int

	// Logger receives campaign progress. Optional.
	Logger *slog.Logger
}

// Report summarizes a finished campaign. A campaign stops at its first
// failure, so at most one FailureReport exists.
type Report struct {
	Examples  int
	Passed    int
	Exhausted int
	Failure   *FailureReport
}

// Failed reports whether the campaign found a failure.
func (r *Report) Failed() bool { return r.Failure != nil }

// FailureReport carries everything needed to reproduce and understand
// one failure.
type FailureReport struct {
	Token          string
	Seed           int64
	Signature      string
	Steps          []trace.Step
	MinimalSteps   []trace.Step
	ShrinkAttempts int
}

// Campaign runs randomized lifecycle examples against one service.
type Campaign struct {
	conn     sut.Connector
	settings Settings
	log      *slog.Logger
}

// NewCampaign builds a campaign over a service connector.
func NewCampaign(conn sut.Connector, settings Settings) *Campaign {
	if settings.Examples <= 0 {
		settings.Examples = 1
	}
	log := settings.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Campaign{conn: conn, settings: settings, log: log}
}

// Run executes the campaign: readiness wait, then one example after
// another, each against a reset service and a fresh model. The first
// failing example is journaled, shrunk, and ends the campaign.
func (c *Campaign) Run(ctx context.Context) (*Report, error) {
	admin := sut.NewClient(c.conn, c.log)

	if c.settings.ReadyTimeout > 0 {
		if err := admin.WaitReady(ctx, c.settings.ReadyTimeout, c.settings.ReadyInterval); err != nil {
			return nil, err
		}
	}

	catalog, invariants := lifecycle.NewMachine()
	report := &Report{}

	for i := 0; i < c.settings.Examples; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		// Nothing from the previous example may leak into this one.
		if err := admin.DeleteAllUsers(ctx); err != nil {
			return report, fmt.Errorf("example %d: reset: %w", i, err)
		}

		token, err := runToken()
		if err != nil {
			return report, err
		}
		seed := c.settings.Seed + int64(i)

		state := lifecycle.NewState(admin, c.settings.Options)
		run, err := machine.NewScheduler(catalog, invariants, machine.Config{
			MaxSteps: c.settings.MaxSteps,
			Seed:     seed,
			Token:    token,
			Logger:   c.log,
		}).Run(ctx, state)
		if err != nil {
			return report, fmt.Errorf("example %d (seed %d): %w", i, seed, err)
		}
		report.Examples++

		switch run.Status {
		case trace.StatusPassed:
			report.Passed++
		case trace.StatusExhausted:
			report.Exhausted++
		case trace.StatusFailed:
			failure, err := c.handleFailure(ctx, admin, catalog, invariants, run)
			if err != nil {
				return report, err
			}
			report.Failure = failure
			c.log.Info("campaign found a failure",
				"token", failure.Token,
				"seed", failure.Seed,
				"failure", failure.Signature,
				"steps", len(failure.Steps),
				"minimal_steps", len(failure.MinimalSteps),
			)
			return report, nil
		}
	}

	c.log.Info("campaign passed",
		"examples", report.Examples,
		"passed", report.Passed,
		"exhausted", report.Exhausted,
	)
	return report, nil
}

// handleFailure journals the raw failing run, shrinks it against the
// same service, and journals the minimal sequence.
func (c *Campaign) handleFailure(
	ctx context.Context,
	admin *sut.Client,
	catalog *machine.Catalog[*lifecycle.State],
	invariants []machine.Invariant[*lifecycle.State],
	run *trace.Run,
) (*FailureReport, error) {
	if c.settings.Journal != nil {
		if err := c.settings.Journal.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("journal failing run: %w", err)
		}
	}

	// Every shrink candidate replays from a clean service and a fresh
	// model, through the same apply path as live execution.
	replay := func(ctx context.Context, steps []trace.Step) (string, error) {
		if err := admin.DeleteAllUsers(ctx); err != nil {
			return "", fmt.Errorf("shrink replay reset: %w", err)
		}
		return machine.Replay(ctx, catalog, invariants,
			lifecycle.NewState(admin, c.settings.Options), steps, c.log)
	}

	result, err := shrink.Minimize(ctx, run.Steps, run.Failure, replay, shrink.Options{
		MaxAttempts: c.settings.ShrinkAttempts,
		Simplify:    c.settings.Options.Simplify,
		Logger:      c.log,
	})
	if err != nil {
		return nil, fmt.Errorf("shrink run %s: %w", run.Token, err)
	}

	if c.settings.Journal != nil {
		if err := c.settings.Journal.SaveShrunk(ctx, run.Token, result.Steps); err != nil {
			return nil, fmt.Errorf("journal shrunk run: %w", err)
		}
	}

	return &FailureReport{
		Token:          run.Token,
		Seed:           run.Seed,
		Signature:      run.Failure,
		Steps:          run.Steps,
		MinimalSteps:   result.Steps,
		ShrinkAttempts: result.Attempts,
	}, nil
}

// runToken mints a time-sortable run identifier.
func runToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("mint run token: %w", err)
	}
	return id.String(), nil
}
