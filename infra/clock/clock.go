// Package clock is the monotonic time source shared by the engine and the
// consumer. Both sides must read the same Clock for latencies to be
// meaningful.
package clock

import "time"

type Clock struct {
	base time.Time
}

// New calibrates a clock at the current instant.
func New() *Clock {
	return &Clock{base: time.Now()}
}

// Nanos returns monotonic nanoseconds since calibration.
func (c *Clock) Nanos() uint64 {
	return uint64(time.Since(c.base))
}

// Since returns the nanoseconds elapsed from an earlier Nanos reading,
// clamped at zero.
func (c *Clock) Since(start uint64) uint64 {
	now := c.Nanos()
	if now < start {
		return 0
	}
	return now - start
}
