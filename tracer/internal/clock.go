package internal

import "time"

// Clock provides the current time. Every time-dependent component takes one so
// tests can drive it deterministically.
type Clock interface {
	Now() time.Time
}

// defaultClock is the wall clock.
type defaultClock struct{}

func (c *defaultClock) Now() time.Time {
	return time.Now()
}

// DefaultClock returns the wall clock.
func DefaultClock() Clock {
	return &defaultClock{}
}

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return &defaultClock{}
	}
	return c
}
