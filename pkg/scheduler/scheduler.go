// Package scheduler provides cooperative, single-threaded callback scheduling.
//
// Every callback handed to a Scheduler runs to completion before the next one
// starts, so state owned by those callbacks needs no locking. A cancelled
// Handle never runs its callback again, even when the underlying timer has
// already fired and its delivery is still pending.
package scheduler

import "time"

// Handle refers to a scheduled callback.
type Handle interface {
	// Cancel prevents any further invocation of the callback.
	Cancel()
	// Cancelled reports whether Cancel has been called.
	Cancelled() bool
}

// Scheduler runs delayed and recurring callbacks.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// After runs fn once after d.
	After(d time.Duration, fn func()) Handle
	// Every runs fn every d until the handle is cancelled.
	Every(d time.Duration, fn func()) Handle
}

// minPeriod is the smallest interval accepted by Every.
const minPeriod = time.Millisecond

func clampPeriod(d time.Duration) time.Duration {
	if d < minPeriod {
		return minPeriod
	}
	return d
}
