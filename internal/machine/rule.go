// Package machine implements the generic stateful-testing engine: a
// catalog of rules over a domain state S, a scheduler that fires
// applicable rules at random and re-checks invariants after every step,
// and a replay path that re-executes a recorded sequence through the
// same code as live execution.
//
// The engine is strictly sequential: one step begins only after the
// previous step's invariants have been fully checked. Parallelism, if
// any, lives above the engine - independent runs with independent
// seeds, states, and SUT namespaces.
package machine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/prowlkit/prowl/internal/trace"
)

// Rule is one registered operation of the state machine.
//
// A rule is split into Draw and Apply so that replay can re-execute a
// recorded firing without re-drawing: Draw selects parameter values
// (consulting generators and bundles), Apply performs the operation
// from those values. Apply owns all mutation - bundle consumption,
// model updates, SUT calls - so replaying Apply alone reproduces the
// full effect of a step.
type Rule[S any] struct {
	// Name uniquely identifies the rule within its catalog.
	Name string

	// Ready reports whether the rule is currently applicable. The
	// precondition is derived from the rule's input requirements -
	// typically "the bundle I consume from is non-empty". A nil Ready
	// means always applicable.
	Ready func(s S) bool

	// Draw selects the parameter values for one firing. It must not
	// mutate s. A gen.ErrExhausted return ends the run early without a
	// verdict.
	Draw func(s S, rng *rand.Rand) (trace.Params, error)

	// Apply executes the rule from drawn (or recorded) parameters.
	// Returning ErrStepNotApplicable marks a replayed step whose
	// preconditions no longer hold; any other error fails the run.
	Apply func(ctx context.Context, s S, p trace.Params) error
}

// Invariant is a named check evaluated after every step.
type Invariant[S any] struct {
	Name  string
	Check func(ctx context.Context, s S) error
}

// Catalog holds the registered rules of a state machine.
// Rule order never changes after construction; selection among
// applicable rules is decided by the random source alone.
type Catalog[S any] struct {
	rules []Rule[S]
	index map[string]int
}

// NewCatalog validates and registers rules. Rule names must be unique
// and every rule must have Draw and Apply.
func NewCatalog[S any](rules ...Rule[S]) (*Catalog[S], error) {
	c := &Catalog[S]{
		rules: make([]Rule[S], len(rules)),
		index: make(map[string]int, len(rules)),
	}
	copy(c.rules, rules)

	for i, r := range c.rules {
		if r.Name == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
		if _, dup := c.index[r.Name]; dup {
			return nil, fmt.Errorf("duplicate rule name: %s", r.Name)
		}
		if r.Draw == nil {
			return nil, fmt.Errorf("rule %s: Draw is required", r.Name)
		}
		if r.Apply == nil {
			return nil, fmt.Errorf("rule %s: Apply is required", r.Name)
		}
		c.index[r.Name] = i
	}
	return c, nil
}

// Rule returns the named rule.
func (c *Catalog[S]) Rule(name string) (Rule[S], bool) {
	i, ok := c.index[name]
	if !ok {
		return Rule[S]{}, false
	}
	return c.rules[i], true
}

// Len returns the number of registered rules.
func (c *Catalog[S]) Len() int { return len(c.rules) }

// applicable returns the indices of rules whose preconditions hold.
func (c *Catalog[S]) applicable(s S) []int {
	var out []int
	for i, r := range c.rules {
		if r.Ready == nil || r.Ready(s) {
			out = append(out, i)
		}
	}
	return out
}
