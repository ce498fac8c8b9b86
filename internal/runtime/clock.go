package runtime

import "sync/atomic"

// Clock is a monotonic logical clock stamping journal events.
//
// All trace ordering uses seq numbers from this clock, never wall time,
// so identical runs produce identical traces.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// although the runtime's single-writer design means only one goroutine
// normally calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
