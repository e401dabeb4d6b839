package machine

import "sync/atomic"

// clock is a monotonic logical counter stamping step indices.
// Replay resumes from zero with a fresh clock, so a replayed sequence
// carries the same indices as the original.
type clock struct {
	seq atomic.Int64
}

func newClock() *clock { return &clock{} }

// Next returns the next index, starting at 1.
func (c *clock) Next() int64 { return c.seq.Add(1) }

// Current returns the last issued index without advancing.
func (c *clock) Current() int64 { return c.seq.Load() }
