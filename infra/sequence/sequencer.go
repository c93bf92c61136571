package sequence

// Counter issues strictly monotonic sequence numbers.
// Single writer only; not safe for concurrent use.
type Counter struct {
	last uint64
}

// New creates a counter whose first Next returns start+1.
// On a fresh book → start = 0
// On journal append after replay → start = last replayed seq
func New(start uint64) *Counter {
	return &Counter{last: start}
}

// Next advances by exactly one and returns the new value.
func (c *Counter) Next() uint64 {
	c.last++
	return c.last
}

// Current returns the last issued sequence (0 before the first Next).
func (c *Counter) Current() uint64 {
	return c.last
}
