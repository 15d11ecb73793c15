// Package clock provides an abstraction for time operations to improve testability.
// Activity log dates and archive filename suffixes depend on wall-clock time;
// code takes a Clock instead of calling time.Now() directly so tests can pin it.
package clock

import "time"

// Clock is an interface for time operations.
// This allows code to be tested with mock clocks.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// RealClock implements Clock using the actual system time.
type RealClock struct{}

// Now returns the current time from the system clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Ensure RealClock implements Clock.
var _ Clock = RealClock{}

// Fixed implements Clock with a pinned instant, for tests.
type Fixed struct {
	// T is the instant Now always returns.
	T time.Time
}

// Now returns the pinned instant.
func (f Fixed) Now() time.Time {
	return f.T
}

// Ensure Fixed implements Clock.
var _ Clock = Fixed{}
