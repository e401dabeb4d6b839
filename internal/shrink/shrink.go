// Package shrink minimizes a failing step sequence while preserving
// its failure.
//
// The search is delta debugging over the recorded sequence: remove
// chunks (halving the chunk size as removals stop helping), then
// remove single steps, then simplify individual step parameters via a
// caller-provided hook. Every candidate is replayed against a fresh
// domain model and fresh SUT state through the engine's normal replay
// path; a candidate survives only if it reproduces the original
// failure signature. Candidates are deduplicated by content hash so no
// sequence is replayed twice.
package shrink

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/trace"
)

// DefaultMaxAttempts bounds the number of candidate replays.
const DefaultMaxAttempts = 1000

// ReplayFunc replays a candidate sequence against fresh state and
// returns the failure signature it produces ("" when it passes).
// machine.ErrStepNotApplicable marks an invalid candidate; any other
// error aborts the search.
type ReplayFunc func(ctx context.Context, steps []trace.Step) (string, error)

// Options tunes the search.
type Options struct {
	// MaxAttempts caps candidate replays. Defaults to
	// DefaultMaxAttempts when zero.
	MaxAttempts int

	// Simplify proposes simpler variants of a single step, ordered
	// simplest first: shorter names, dropped optional fields, smaller
	// magnitudes. Optional.
	Simplify func(step trace.Step) []trace.Step

	// Logger receives search progress. Optional.
	Logger *slog.Logger
}

// Result is the outcome of a minimization.
type Result struct {
	// Steps is the minimal reproducing sequence, indices renumbered.
	Steps []trace.Step

	// Signature is the preserved failure signature.
	Signature string

	// Attempts is the number of candidate replays performed.
	Attempts int
}

// Minimize shrinks a failing sequence. The input sequence must
// reproduce signature when replayed; the result is the smallest
// reproduction the search found before reaching a fixpoint or the
// attempt budget.
func Minimize(ctx context.Context, steps []trace.Step, signature string, replay ReplayFunc, opts Options) (*Result, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &search{
		replay:    replay,
		signature: signature,
		opts:      opts,
		log:       log,
		tried:     make(map[string]struct{}),
	}

	cur := trace.CloneSteps(steps)
	s.markTried(cur)

	var err error
	if cur, err = s.removePass(ctx, cur); err != nil {
		return nil, err
	}
	if opts.Simplify != nil {
		if cur, err = s.simplifyPass(ctx, cur); err != nil {
			return nil, err
		}
		// Simplification can unlock further removals (a simplified step
		// may make its producers redundant). One more removal pass
		// reaches the fixpoint.
		if cur, err = s.removePass(ctx, cur); err != nil {
			return nil, err
		}
	}

	renumber(cur)
	log.Info("shrink finished",
		"original_steps", len(steps),
		"minimal_steps", len(cur),
		"attempts", s.attempts,
		"signature", signature,
	)
	return &Result{Steps: cur, Signature: signature, Attempts: s.attempts}, nil
}

type search struct {
	replay    ReplayFunc
	signature string
	opts      Options
	log       *slog.Logger
	tried     map[string]struct{}
	attempts  int
}

// removePass deletes chunks of decreasing size until no single removal
// preserves the failure.
func (s *search) removePass(ctx context.Context, cur []trace.Step) ([]trace.Step, error) {
	for chunk := len(cur) / 2; chunk >= 1; {
		removed := false
		for start := 0; start+chunk <= len(cur); {
			if s.attempts >= s.opts.MaxAttempts {
				return cur, nil
			}
			candidate := append(trace.CloneSteps(cur[:start]), trace.CloneSteps(cur[start+chunk:])...)
			ok, err := s.reproduces(ctx, candidate)
			if err != nil {
				return nil, err
			}
			if ok {
				cur = candidate
				removed = true
				// Same start now points at the next chunk; do not advance.
				continue
			}
			start++
		}
		if !removed {
			chunk /= 2
		} else if chunk > len(cur)/2 {
			chunk = len(cur) / 2
		}
	}
	return cur, nil
}

// simplifyPass replaces individual steps with simpler variants until a
// full sweep makes no progress.
func (s *search) simplifyPass(ctx context.Context, cur []trace.Step) ([]trace.Step, error) {
	for {
		progressed := false
		for i := range cur {
			for _, variant := range s.opts.Simplify(cur[i]) {
				if s.attempts >= s.opts.MaxAttempts {
					return cur, nil
				}
				candidate := trace.CloneSteps(cur)
				candidate[i] = variant
				ok, err := s.reproduces(ctx, candidate)
				if err != nil {
					return nil, err
				}
				if ok {
					cur = candidate
					progressed = true
					break
				}
			}
		}
		if !progressed {
			return cur, nil
		}
	}
}

// reproduces replays a candidate, reporting whether it preserves the
// target signature. Already-tried candidates and invalid candidates
// both count as non-reproducing.
func (s *search) reproduces(ctx context.Context, candidate []trace.Step) (bool, error) {
	hash, err := trace.SequenceHash(candidate)
	if err != nil {
		return false, err
	}
	if _, dup := s.tried[hash]; dup {
		return false, nil
	}
	s.tried[hash] = struct{}{}
	s.attempts++

	sig, err := s.replay(ctx, candidate)
	if err != nil {
		if errors.Is(err, machine.ErrStepNotApplicable) {
			return false, nil
		}
		return false, err
	}
	return sig == s.signature, nil
}

func (s *search) markTried(steps []trace.Step) {
	if hash, err := trace.SequenceHash(steps); err == nil {
		s.tried[hash] = struct{}{}
	}
}

func renumber(steps []trace.Step) {
	for i := range steps {
		steps[i].Index = int64(i + 1)
	}
}
