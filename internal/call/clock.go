package call

import "sync/atomic"

// Clock is a monotonic logical clock used to stamp invocations.
//
// Every intercepted call receives a strictly increasing timestamp from this
// clock. Verification sorts recorded calls by timestamp, so all stubs that
// participate in one verification must share a clock.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next timestamp and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current timestamp without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
