// Package bundle provides typed pools of live values produced by rules.
//
// A bundle is an insertion-ordered collection supporting non-destructive
// random reads (Peek) and destructive random reads (Consume). Rules put
// values into a bundle when they succeed; later rules draw from it. A
// value moves between bundles only when a rule explicitly consumes it
// from one and produces it into another within the same step.
package bundle

import (
	"errors"
	"math/rand"
)

// ErrEmpty is returned by Peek and Consume when the bundle has no
// members. It is a scheduling signal, never a reportable bug: the
// scheduler uses bundle emptiness to decide rule applicability before
// drawing.
var ErrEmpty = errors.New("bundle is empty")

// Bundle is a named pool of values of type T.
//
// The zero value is not usable; construct with New. Bundles are not
// safe for concurrent use - a run is strictly sequential and each run
// owns its bundles.
type Bundle[T any] struct {
	name   string
	values []T
}

// New creates an empty bundle with the given name.
// The name appears in logs and failure reports.
func New[T any](name string) *Bundle[T] {
	return &Bundle[T]{name: name}
}

// Name returns the bundle's name.
func (b *Bundle[T]) Name() string { return b.name }

// Len returns the number of live members.
func (b *Bundle[T]) Len() int { return len(b.values) }

// Put appends a value to the pool.
func (b *Bundle[T]) Put(v T) {
	b.values = append(b.values, v)
}

// Peek returns a uniformly-selected member without removing it.
// Returns ErrEmpty if the bundle has no members.
func (b *Bundle[T]) Peek(rng *rand.Rand) (T, error) {
	var zero T
	if len(b.values) == 0 {
		return zero, ErrEmpty
	}
	return b.values[rng.Intn(len(b.values))], nil
}

// Consume removes and returns a uniformly-selected member.
// Returns ErrEmpty if the bundle has no members.
//
// Removal is by swap with the last element: entries are plain values,
// so no ordering needs to survive a consume.
func (b *Bundle[T]) Consume(rng *rand.Rand) (T, error) {
	var zero T
	if len(b.values) == 0 {
		return zero, ErrEmpty
	}
	i := rng.Intn(len(b.values))
	v := b.values[i]
	b.removeAt(i)
	return v, nil
}

// TakeFunc removes and returns the first member matching pred.
// Used by rule bodies to consume the specific entry selected at draw
// time, which keeps replay deterministic: the drawn parameters name the
// entry, and TakeFunc resolves it by identity rather than by index.
func (b *Bundle[T]) TakeFunc(pred func(T) bool) (T, bool) {
	var zero T
	for i, v := range b.values {
		if pred(v) {
			b.removeAt(i)
			return v, true
		}
	}
	return zero, false
}

// Find returns the first member matching pred without removing it.
func (b *Bundle[T]) Find(pred func(T) bool) (T, bool) {
	var zero T
	for _, v := range b.values {
		if pred(v) {
			return v, true
		}
	}
	return zero, false
}

// Values returns a copy of the live members in insertion order.
func (b *Bundle[T]) Values() []T {
	out := make([]T, len(b.values))
	copy(out, b.values)
	return out
}

func (b *Bundle[T]) removeAt(i int) {
	last := len(b.values) - 1
	b.values[i] = b.values[last]
	var zero T
	b.values[last] = zero // release references held by the slot
	b.values = b.values[:last]
}
