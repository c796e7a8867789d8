package collection

import "time"

// Timer is a cancelable scheduled callback. Stop reports whether the timer
// was stopped before firing, matching time.Timer semantics.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules debounce callbacks.
//
// Production uses WallTimers (time.AfterFunc). Tests inject
// testutil.ManualTimers so debounce windows fire deterministically without
// wall-clock sleeps.
type TimerFactory interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// WallTimers is the production TimerFactory backed by time.AfterFunc.
type WallTimers struct{}

// AfterFunc schedules fn after d on the runtime timer heap.
func (WallTimers) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
