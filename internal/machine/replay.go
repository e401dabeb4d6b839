package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prowlkit/prowl/internal/trace"
)

// Replay re-executes a recorded step sequence against fresh state,
// through the same Apply and invariant code as live execution - replay
// is not a special mode, it is the normal path minus drawing.
//
// Returns the failure signature the sequence produces, or "" when it
// runs to completion without failing. ErrStepNotApplicable is returned
// when a step's recorded parameters no longer resolve (a shrink
// candidate removed a producer the step depends on); the caller
// discards such candidates.
func Replay[S any](
	ctx context.Context,
	catalog *Catalog[S],
	invariants []Invariant[S],
	state S,
	steps []trace.Step,
	logger *slog.Logger,
) (string, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sched := &Scheduler[S]{
		catalog:    catalog,
		invariants: invariants,
		log:        logger,
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		rule, ok := catalog.Rule(step.Rule)
		if !ok {
			return "", fmt.Errorf("replay: unknown rule %q", step.Rule)
		}

		// The recorded parameters must still resolve; Ready guards the
		// same precondition Apply checks, so consult it first to skip
		// doomed candidates cheaply.
		if rule.Ready != nil && !rule.Ready(state) {
			return "", ErrStepNotApplicable
		}

		if err := rule.Apply(ctx, state, step.Params); err != nil {
			if errors.Is(err, ErrStepNotApplicable) {
				return "", ErrStepNotApplicable
			}
			sig := signatureOf(err, step.Rule)
			logger.Debug("replay step failed",
				"rule", step.Rule,
				"step", step.Index,
				"failure", sig,
			)
			return sig, nil
		}

		if sig, verr := sched.checkInvariants(ctx, state); verr != nil {
			logger.Debug("replay invariant violated",
				"rule", step.Rule,
				"step", step.Index,
				"failure", sig,
			)
			return sig, nil
		}
	}
	return "", nil
}
