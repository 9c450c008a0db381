// Package clock provides the timer abstraction the payment poller and the
// catalog debouncer are scheduled on, so tests can drive virtual time.
package clock

import "time"

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already
	// ran or was stopped before.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real schedules on the runtime timer heap. Callbacks run on their own goroutine.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
