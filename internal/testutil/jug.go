// Package testutil provides toy state machines and helpers shared by
// engine tests. The toys exercise the scheduler and shrinker only; no
// engine logic lives here.
package testutil

import (
	"context"
	"math/rand"

	"github.com/prowlkit/prowl/internal/machine"
	"github.com/prowlkit/prowl/internal/trace"
)

// JugState models the two water jugs: a 3-unit jug and a 5-unit jug.
type JugState struct {
	Small int
	Big   int
}

// JugInvariantPhysics names the capacity invariant.
const JugInvariantPhysics = "jug-physics"

// JugInvariantUnsolved names the "big jug never holds 4" invariant.
// The machine violates it on purpose: the engine's job is to find the
// pour sequence reaching 4, and the shrinker's job is to minimize it.
const JugInvariantUnsolved = "jug-unsolved"

// NewJugMachine builds the jug-puzzle machine. Every rule is always
// applicable and takes no parameters, which makes it a pure scheduler
// and shrinker exercise.
func NewJugMachine() (*machine.Catalog[*JugState], []machine.Invariant[*JugState]) {
	noParams := func(*JugState, *rand.Rand) (trace.Params, error) {
		return trace.Params{}, nil
	}
	rule := func(name string, apply func(*JugState)) machine.Rule[*JugState] {
		return machine.Rule[*JugState]{
			Name: name,
			Draw: noParams,
			Apply: func(_ context.Context, s *JugState, _ trace.Params) error {
				apply(s)
				return nil
			},
		}
	}

	catalog, err := machine.NewCatalog(
		rule("fill_small", func(s *JugState) { s.Small = 3 }),
		rule("fill_big", func(s *JugState) { s.Big = 5 }),
		rule("empty_small", func(s *JugState) { s.Small = 0 }),
		rule("empty_big", func(s *JugState) { s.Big = 0 }),
		rule("pour_small_into_big", func(s *JugState) {
			oldBig := s.Big
			s.Big = min(5, s.Big+s.Small)
			s.Small -= s.Big - oldBig
		}),
		rule("pour_big_into_small", func(s *JugState) {
			oldSmall := s.Small
			s.Small = min(3, s.Small+s.Big)
			s.Big -= s.Small - oldSmall
		}),
	)
	if err != nil {
		panic(err) // fixed rule set, cannot fail
	}

	invariants := []machine.Invariant[*JugState]{
		{
			Name: JugInvariantPhysics,
			Check: func(_ context.Context, s *JugState) error {
				if s.Small < 0 || s.Small > 3 || s.Big < 0 || s.Big > 5 {
					return &machine.InvariantViolationError{
						Invariant: JugInvariantPhysics,
						Detail:    "jug outside capacity",
					}
				}
				return nil
			},
		},
		{
			Name: JugInvariantUnsolved,
			Check: func(_ context.Context, s *JugState) error {
				if s.Big == 4 {
					return &machine.InvariantViolationError{
						Invariant: JugInvariantUnsolved,
						Detail:    "big jug holds exactly 4",
					}
				}
				return nil
			},
		},
	}

	return catalog, invariants
}
