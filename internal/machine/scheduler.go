package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"

	"github.com/prowlkit/prowl/internal/gen"
	"github.com/prowlkit/prowl/internal/trace"
)

// DefaultMaxSteps bounds a run when the configuration leaves MaxSteps
// unset.
const DefaultMaxSteps = 50

// Config holds per-run scheduler settings. Settings are explicit
// constructor inputs, not ambient state - two runs with different
// configs never interfere.
type Config struct {
	// MaxSteps is the number of steps per run. Defaults to
	// DefaultMaxSteps when zero.
	MaxSteps int

	// Seed initializes the run's random source. The seed is reported
	// with any failure so the run can be regenerated.
	Seed int64

	// Token identifies the run in logs and the journal. Optional.
	Token string

	// Logger receives step-level progress. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

// Scheduler drives one state machine: it repeatedly selects an
// applicable rule, draws its parameters, executes it, and re-checks
// every invariant before the next step.
type Scheduler[S any] struct {
	catalog    *Catalog[S]
	invariants []Invariant[S]
	cfg        Config
	log        *slog.Logger
}

// NewScheduler creates a scheduler over a catalog and invariant set.
func NewScheduler[S any](catalog *Catalog[S], invariants []Invariant[S], cfg Config) *Scheduler[S] {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler[S]{
		catalog:    catalog,
		invariants: invariants,
		cfg:        cfg,
		log:        log,
	}
}

// Run executes one example against the given state.
//
// The returned run records every executed step. Run status:
//   - StatusPassed: the step budget completed with all invariants holding
//   - StatusFailed: a step error or invariant violation; Failure carries
//     the signature and the sequence is ready for shrinking
//   - StatusExhausted: the value generator drained its pool; not a failure
//
// A non-nil error reports a scheduler-internal problem (context
// cancellation, no applicable rule, a draw failing for reasons other
// than exhaustion) - the run is aborted, not failed.
func (s *Scheduler[S]) Run(ctx context.Context, state S) (*trace.Run, error) {
	rng := rand.New(rand.NewSource(s.cfg.Seed))
	clk := newClock()
	run := &trace.Run{
		Token:  s.cfg.Token,
		Seed:   s.cfg.Seed,
		Status: trace.StatusPassed,
	}

	s.log.Debug("run starting",
		"token", s.cfg.Token,
		"seed", s.cfg.Seed,
		"max_steps", s.cfg.MaxSteps,
	)

	for stepNo := 0; stepNo < s.cfg.MaxSteps; stepNo++ {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		applicable := s.catalog.applicable(state)
		if len(applicable) == 0 {
			return run, ErrNoApplicableRule
		}

		// Ties broken by the random source only - no priority order.
		rule := s.catalog.rules[applicable[rng.Intn(len(applicable))]]

		params, err := rule.Draw(state, rng)
		if err != nil {
			if errors.Is(err, gen.ErrExhausted) {
				s.log.Debug("generator exhausted, ending run early",
					"token", s.cfg.Token,
					"rule", rule.Name,
					"steps", len(run.Steps),
				)
				run.Status = trace.StatusExhausted
				return run, nil
			}
			return run, fmt.Errorf("draw for rule %s: %w", rule.Name, err)
		}

		step := trace.Step{
			Index:   clk.Next(),
			Rule:    rule.Name,
			Params:  params,
			Outcome: "ok",
		}

		if err := rule.Apply(ctx, state, params); err != nil {
			if errors.Is(err, ErrStepNotApplicable) {
				// Live execution drew the parameters from current state;
				// they cannot fail to resolve unless Ready and Draw
				// disagree with Apply.
				return run, fmt.Errorf("rule %s: drawn step not applicable: %w", rule.Name, err)
			}
			step.Outcome = signatureOf(err, rule.Name)
			run.Steps = append(run.Steps, step)
			run.Status = trace.StatusFailed
			run.Failure = step.Outcome
			s.log.Info("run failed",
				"token", s.cfg.Token,
				"rule", rule.Name,
				"step", step.Index,
				"failure", run.Failure,
				"error", err,
			)
			return run, nil
		}
		run.Steps = append(run.Steps, step)

		if sig, verr := s.checkInvariants(ctx, state); verr != nil {
			run.Steps[len(run.Steps)-1].Outcome = sig
			run.Status = trace.StatusFailed
			run.Failure = sig
			s.log.Info("invariant violated",
				"token", s.cfg.Token,
				"rule", rule.Name,
				"step", step.Index,
				"failure", sig,
				"error", verr,
			)
			return run, nil
		}

		s.log.Debug("step executed",
			"token", s.cfg.Token,
			"step", step.Index,
			"rule", rule.Name,
		)
	}

	s.log.Debug("run passed",
		"token", s.cfg.Token,
		"steps", len(run.Steps),
	)
	return run, nil
}

// checkInvariants evaluates every registered invariant in declaration
// order. Returns the failure signature and underlying error of the
// first violation.
func (s *Scheduler[S]) checkInvariants(ctx context.Context, state S) (string, error) {
	for _, inv := range s.invariants {
		if err := inv.Check(ctx, state); err != nil {
			var ive *InvariantViolationError
			if errors.As(err, &ive) {
				return ive.FailureSignature(), err
			}
			return "invariant/" + inv.Name, &InvariantViolationError{
				Invariant: inv.Name,
				Detail:    err.Error(),
			}
		}
	}
	return "", nil
}
