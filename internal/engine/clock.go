package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps committed transactions.
//
// Every commit receives a strictly increasing stamp. Stamps order
// back-propagation on the control side: a property-changed notification
// carries the stamp of the transaction that produced it, so observers can
// discard updates older than what they already show.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// In practice only the control path commits, so one goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific stamp.
// Used when an engine is rebuilt and stamps must keep increasing.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next stamp and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current stamp without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
