// Package clock abstracts wall-clock time and one-shot timers so the
// scheduler and dispatcher can be driven deterministically in tests.
package clock

import "time"

// TimerHandle cancels a pending one-shot timer. Stop reports whether the
// timer was still pending.
type TimerHandle interface {
	Stop() bool
}

// Clock provides the current instant and a cancellable one-shot timer.
type Clock interface {
	Now() time.Time
	Schedule(d time.Duration, fn func()) TimerHandle
}

type realClock struct{}

// New returns a Clock backed by the system clock and time.AfterFunc.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Schedule(d time.Duration, fn func()) TimerHandle {
	return time.AfterFunc(d, fn)
}
