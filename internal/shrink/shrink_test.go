package shrink_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/shrink"
	"github.com/prowlkit/prowl/internal/testutil"
	"github.com/prowlkit/prowl/internal/trace"
)

// TestMinimize_JugSequence tests end-to-end shrinking of a randomly
// found jug-machine failure down to a 1-minimal reproduction.
func TestMinimize_JugSequence(t *testing.T) {
	catalog, invariants := testutil.NewJugMachine()

	var failing *trace.Run
	for seed := int64(1); seed <= 100; seed++ {
		run, err := machine.NewScheduler(catalog, invariants, machine.Config{
			MaxSteps: 200,
			Seed:     seed,
		}).Run(context.Background(), &testutil.JugState{})
		require.NoError(t, err)
		if run.Status == trace.StatusFailed {
			failing = run
			break
		}
	}
	require.NotNil(t, failing, "no seed reached big == 4")

	replay := func(ctx context.Context, steps []trace.Step) (string, error) {
		return machine.Replay(ctx, catalog, invariants, &testutil.JugState{}, steps, nil)
	}

	result, err := shrink.Minimize(context.Background(), failing.Steps, failing.Failure, replay, shrink.Options{})
	require.NoError(t, err)
	assert.Equal(t, failing.Failure, result.Signature)
	assert.LessOrEqual(t, len(result.Steps), len(failing.Steps))
	assert.Positive(t, result.Attempts)

	// The minimal sequence still reproduces.
	sig, err := replay(context.Background(), result.Steps)
	require.NoError(t, err)
	assert.Equal(t, failing.Failure, sig)

	// 1-minimality: removing any single step loses the failure.
	for i := range result.Steps {
		candidate := append(trace.CloneSteps(result.Steps[:i]), trace.CloneSteps(result.Steps[i+1:])...)
		sig, err := replay(context.Background(), candidate)
		require.NoError(t, err)
		assert.NotEqual(t, result.Signature, sig,
			"step %d (%s) is removable, sequence not minimal", i, result.Steps[i].Rule)
	}

	// Indices renumbered from 1.
	for i, step := range result.Steps {
		assert.Equal(t, int64(i+1), step.Index)
	}
}

// nameState fails on any step that records a non-empty name.
type nameState struct{}

type nameFailure struct{}

func (e *nameFailure) Error() string            { return "non-empty name recorded" }
func (e *nameFailure) FailureSignature() string { return "unexpected/nonempty" }

func nameCatalog(t *testing.T) *machine.Catalog[*nameState] {
	t.Helper()
	catalog, err := machine.NewCatalog(
		machine.Rule[*nameState]{
			Name: "noop",
			Draw: func(*nameState, *rand.Rand) (trace.Params, error) {
				return trace.Params{}, nil
			},
			Apply: func(context.Context, *nameState, trace.Params) error { return nil },
		},
		machine.Rule[*nameState]{
			Name: "record_name",
			Draw: func(_ *nameState, rng *rand.Rand) (trace.Params, error) {
				return trace.Params{"name": "generated"}, nil
			},
			Apply: func(_ context.Context, _ *nameState, p trace.Params) error {
				if p["name"].(string) != "" {
					return &nameFailure{}
				}
				return nil
			},
		},
	)
	require.NoError(t, err)
	return catalog
}

// TestMinimize_SimplifiesValues tests the parameter-simplification pass:
// noise steps are removed and the triggering name shrinks to one rune.
func TestMinimize_SimplifiesValues(t *testing.T) {
	catalog := nameCatalog(t)

	steps := []trace.Step{
		{Index: 1, Rule: "noop", Params: trace.Params{}},
		{Index: 2, Rule: "noop", Params: trace.Params{}},
		{Index: 3, Rule: "record_name", Params: trace.Params{"name": "averylongname"}},
		{Index: 4, Rule: "noop", Params: trace.Params{}},
	}

	replay := func(ctx context.Context, s []trace.Step) (string, error) {
		return machine.Replay(ctx, catalog, nil, &nameState{}, s, nil)
	}

	simplify := func(step trace.Step) []trace.Step {
		name, ok := step.Params["name"].(string)
		if !ok || len(name) <= 1 {
			return nil
		}
		// simplest first: single rune, then halved
		variants := []trace.Step{}
		for _, candidate := range []string{name[:1], name[:len(name)/2]} {
			v := trace.CloneSteps([]trace.Step{step})[0]
			v.Params["name"] = candidate
			variants = append(variants, v)
		}
		return variants
	}

	result, err := shrink.Minimize(context.Background(), steps, "unexpected/nonempty", replay, shrink.Options{
		Simplify: simplify,
	})
	require.NoError(t, err)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "record_name", result.Steps[0].Rule)
	assert.Equal(t, "a", result.Steps[0].Params["name"])
}

// TestMinimize_AttemptBudget tests that the search respects MaxAttempts.
func TestMinimize_AttemptBudget(t *testing.T) {
	catalog := nameCatalog(t)

	steps := make([]trace.Step, 0, 40)
	for i := 0; i < 39; i++ {
		steps = append(steps, trace.Step{Index: int64(i + 1), Rule: "noop", Params: trace.Params{}})
	}
	steps = append(steps, trace.Step{Index: 40, Rule: "record_name", Params: trace.Params{"name": "x"}})

	replay := func(ctx context.Context, s []trace.Step) (string, error) {
		return machine.Replay(ctx, catalog, nil, &nameState{}, s, nil)
	}

	result, err := shrink.Minimize(context.Background(), steps, "unexpected/nonempty", replay, shrink.Options{
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Attempts, 3)
	// With the budget exhausted the sequence may not be minimal, but it
	// must still be a reproduction-preserving prefix of the search.
	sig, err := replay(context.Background(), result.Steps)
	require.NoError(t, err)
	assert.Equal(t, "unexpected/nonempty", sig)
}
