package service

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// RoundTimer runs at most one pending callback. Arming replaces whatever was
// pending; a callback that was already superseded when it fires does nothing.
type RoundTimer struct {
	clock      clock.Clock
	mu         sync.Mutex
	timer      *clock.Timer
	generation uint64
}

// NewRoundTimer creates a timer driven by clk
func NewRoundTimer(clk clock.Clock) *RoundTimer {
	return &RoundTimer{clock: clk}
}

// Arm schedules fn to run after d, cancelling any pending callback
func (t *RoundTimer) Arm(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	gen := t.generation

	t.timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if gen != t.generation {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.mu.Unlock()
		fn()
	})
}

// Stop cancels the pending callback, if any
func (t *RoundTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}

// Pending reports whether a callback is armed
func (t *RoundTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
