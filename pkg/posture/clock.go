package posture

import "time"

// Clock supplies time and one-shot timers.
// Times must carry a monotonic reading so cooldowns survive wall-clock changes.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot timer.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock returns the clock backed by package time.
func SystemClock() Clock {
	return systemClock{}
}
