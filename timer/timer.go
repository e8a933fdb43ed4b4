// Package timer implements the one-shot scheduled callback used for
// reconnect delays (spec §4.5, §9). It is a thin wrapper over time.AfterFunc
// that adds idempotent cancellation — calling Stop twice, or Stop after the
// callback has already fired, is always safe.
package timer

import (
	"sync"
	"time"
)

// Timer is a cancellable one-shot scheduled callback. The zero value is not
// usable; construct with After.
type Timer struct {
	mu      sync.Mutex
	t       *time.Timer
	stopped bool
}

// After schedules fn to run after d elapses and returns a handle that can
// cancel it. fn runs on its own goroutine, same as time.AfterFunc.
func After(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, fn)
	return tm
}

// Stop cancels the timer if it hasn't fired yet. It reports whether the
// cancellation actually prevented the callback from running — false if the
// timer had already fired or been stopped before. Safe to call more than
// once and safe to call concurrently with the callback itself.
func (tm *Timer) Stop() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.stopped {
		return false
	}
	tm.stopped = true
	return tm.t.Stop()
}
