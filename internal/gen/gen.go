// Package gen produces randomized rule inputs from declared domains.
//
// All draws flow through a single seeded *rand.Rand owned by the run,
// so an entire run is reproducible from its seed. The Unique registry
// guarantees session-unique values for a logical purpose (for example
// principal names) and is reset per run - it is state owned by the run,
// never a process-wide singleton.
package gen

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

// ErrExhausted is returned when a uniqueness-constrained draw cannot
// find a fresh value. It is an internal scheduling signal: the
// scheduler ends the example early rather than reporting a bug.
var ErrExhausted = errors.New("generator exhausted: no fresh value available")

// Alphabet used for principal names, matching the short-name domain of
// the lifecycle model (one or two ASCII letters keeps collisions
// frequent enough to exercise the re-creation paths).
const Letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// String draws a random string from alphabet with length uniform in
// [minLen, maxLen].
func String(rng *rand.Rand, alphabet string, minLen, maxLen int) string {
	n := minLen
	if maxLen > minLen {
		n += rng.Intn(maxLen - minLen + 1)
	}
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(alphabet[rng.Intn(len(alphabet))])
	}
	return sb.String()
}

// OneOf returns a uniformly-selected item.
// Panics if items is empty - rule authors declare fixed variant sets.
func OneOf[T any](rng *rand.Rand, items ...T) T {
	if len(items) == 0 {
		panic("gen.OneOf: no items")
	}
	return items[rng.Intn(len(items))]
}

// Chance returns true with probability p.
// Used for optional parameters so both the present and absent paths
// are exercised with nonzero probability.
func Chance(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

// Unique tracks every value emitted for one logical purpose within a
// run and rejects repeats. Construct one per purpose per run.
type Unique struct {
	seen map[string]struct{}

	// prefix namespaces emitted values, isolating concurrent runs that
	// share a live SUT (each run gets a disjoint name pool).
	prefix string

	// maxAttempts bounds the rejection loop. When the domain is nearly
	// drained, repeated collisions signal pool exhaustion.
	maxAttempts int
}

// NewUnique creates an empty registry. prefix may be empty; when set it
// is prepended to every emitted value.
func NewUnique(prefix string) *Unique {
	return &Unique{
		seen:        make(map[string]struct{}),
		prefix:      prefix,
		maxAttempts: 100,
	}
}

// Draw emits a fresh string from alphabet with length in [minLen, maxLen]
// that has never been emitted by this registry. Returns ErrExhausted
// when no fresh value can be found.
func (u *Unique) Draw(rng *rand.Rand, alphabet string, minLen, maxLen int) (string, error) {
	for attempt := 0; attempt < u.maxAttempts; attempt++ {
		v := u.prefix + String(rng, alphabet, minLen, maxLen)
		if _, dup := u.seen[v]; dup {
			continue
		}
		u.seen[v] = struct{}{}
		return v, nil
	}
	return "", fmt.Errorf("%w (after %d attempts)", ErrExhausted, u.maxAttempts)
}

// Observe records an externally-produced value so future draws avoid it.
func (u *Unique) Observe(v string) {
	u.seen[v] = struct{}{}
}

// Emitted reports whether v has been emitted or observed.
func (u *Unique) Emitted(v string) bool {
	_, ok := u.seen[v]
	return ok
}

// Count returns the number of values emitted so far.
func (u *Unique) Count() int { return len(u.seen) }
