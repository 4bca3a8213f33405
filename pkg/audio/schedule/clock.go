// Package schedule places decoded audio clips on a shared playback clock.
// The [Scheduler] decides when each clip starts and how its fade envelope is
// shaped; the [Player] renders those decisions into a realtime sample stream.
package schedule

import "time"

// Clock is the monotonic time reference of the playback subsystem, in seconds.
// It is distinct from wall-clock time: scheduling decisions compare only
// values taken from the same Clock.
type Clock interface {
	Now() float64
}

// MonotonicClock is a Clock backed by the process monotonic timer. The zero
// point is the moment the clock is created.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a MonotonicClock starting at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Now returns seconds elapsed since the clock was created.
func (c *MonotonicClock) Now() float64 {
	return time.Since(c.start).Seconds()
}
