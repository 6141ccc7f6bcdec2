package engine

import "sync/atomic"

// LogicalClock stamps recorded events with strictly increasing sequence
// numbers, so recorded traces order the same way on every run regardless
// of wall time.
//
// Safe for concurrent use.
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// NewLogicalClockAt creates a clock that resumes after start. Used when
// appending runs to an existing trace database.
func NewLogicalClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}
