package plancache

import "sync/atomic"

// Clock stamps logged plans with increasing sequence numbers.
type Clock interface {
	Next() int64
}

// Counter is a Clock backed by an atomic counter.
type Counter struct {
	seq atomic.Int64
}

// NewCounterAt returns a counter whose next value is start+1. Store.Open
// resumes from the highest logged seq this way.
func NewCounterAt(start int64) *Counter {
	c := &Counter{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Counter) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last number handed out.
func (c *Counter) Current() int64 {
	return c.seq.Load()
}
