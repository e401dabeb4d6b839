package bundle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBundle_PeekEmpty tests that Peek on an empty bundle fails.
func TestBundle_PeekEmpty(t *testing.T) {
	b := New[string]("live")
	rng := rand.New(rand.NewSource(1))

	_, err := b.Peek(rng)
	require.ErrorIs(t, err, ErrEmpty)
}

// TestBundle_ConsumeEmpty tests that Consume on an empty bundle fails.
func TestBundle_ConsumeEmpty(t *testing.T) {
	b := New[int]("live")
	rng := rand.New(rand.NewSource(1))

	_, err := b.Consume(rng)
	require.ErrorIs(t, err, ErrEmpty)
}

// TestBundle_PeekDoesNotRemove tests non-destructive reads.
func TestBundle_PeekDoesNotRemove(t *testing.T) {
	b := New[string]("live")
	b.Put("a")
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 10; i++ {
		v, err := b.Peek(rng)
		require.NoError(t, err)
		assert.Equal(t, "a", v)
	}
	assert.Equal(t, 1, b.Len())
}

// TestBundle_ConsumeRemoves tests that every consume shrinks the pool
// and eventually drains it.
func TestBundle_ConsumeRemoves(t *testing.T) {
	b := New[int]("live")
	for i := 0; i < 5; i++ {
		b.Put(i)
	}
	rng := rand.New(rand.NewSource(42))

	seen := make(map[int]bool)
	for i := 0; i < 5; i++ {
		v, err := b.Consume(rng)
		require.NoError(t, err)
		assert.False(t, seen[v], "value %d consumed twice", v)
		seen[v] = true
	}
	assert.Equal(t, 0, b.Len())

	_, err := b.Consume(rng)
	require.ErrorIs(t, err, ErrEmpty)
}

// TestBundle_TakeFunc tests consuming a specific entry by identity.
func TestBundle_TakeFunc(t *testing.T) {
	b := New[string]("live")
	b.Put("a")
	b.Put("b")
	b.Put("c")

	v, ok := b.TakeFunc(func(s string) bool { return s == "b" })
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 2, b.Len())

	_, ok = b.TakeFunc(func(s string) bool { return s == "b" })
	assert.False(t, ok)
}

// TestBundle_Find tests non-destructive lookup by predicate.
func TestBundle_Find(t *testing.T) {
	b := New[int]("live")
	b.Put(1)
	b.Put(2)

	v, ok := b.Find(func(n int) bool { return n == 2 })
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, b.Len())

	_, ok = b.Find(func(n int) bool { return n == 9 })
	assert.False(t, ok)
}

// TestBundle_Independence tests that distinct bundles never share values.
func TestBundle_Independence(t *testing.T) {
	live := New[string]("live")
	dead := New[string]("dead")
	rng := rand.New(rand.NewSource(7))

	live.Put("x")
	v, err := live.Consume(rng)
	require.NoError(t, err)
	dead.Put(v)

	assert.Equal(t, 0, live.Len())
	assert.Equal(t, []string{"x"}, dead.Values())
}

// TestBundle_ValuesIsCopy tests that mutating the returned slice does
// not affect the pool.
func TestBundle_ValuesIsCopy(t *testing.T) {
	b := New[string]("live")
	b.Put("a")

	vs := b.Values()
	vs[0] = "mutated"

	got, ok := b.Find(func(s string) bool { return s == "a" })
	require.True(t, ok)
	assert.Equal(t, "a", got)
}
