// Package countdown implements the admin-absence timer: a plain
// one-second countdown surfaced to the UI while the privileged
// participant is offline.
package countdown

import (
	"sync"
	"time"
)

// Timer counts a positive seconds value down to zero, invoking onTick
// once per tick. It never goes negative and stops at zero. Set and
// Clear may be called from any goroutine.
type Timer struct {
	tick   time.Duration
	onTick func(secondsRemaining int)

	mu        sync.Mutex
	remaining int
	ticker    *time.Ticker
	done      chan struct{}
}

// New creates a stopped timer. onTick is called with each new value
// after a tick elapses, and with the initial value on Set.
func New(tick time.Duration, onTick func(secondsRemaining int)) *Timer {
	return &Timer{tick: tick, onTick: onTick}
}

// Set starts or restarts the countdown from seconds. Non-positive
// values clear the timer instead.
func (t *Timer) Set(seconds int) {
	if seconds <= 0 {
		t.Clear()
		return
	}

	t.mu.Lock()
	t.stopLocked()
	t.remaining = seconds
	t.ticker = time.NewTicker(t.tick)
	t.done = make(chan struct{})
	go t.run(t.ticker, t.done)
	t.mu.Unlock()

	t.onTick(seconds)
}

// Clear stops the countdown, as on an admin-reconnected signal or
// session teardown.
func (t *Timer) Clear() {
	t.mu.Lock()
	t.stopLocked()
	t.remaining = 0
	t.mu.Unlock()
}

// Remaining returns the current value, or 0 when no countdown runs.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Active reports whether a countdown is currently running.
func (t *Timer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil
}

func (t *Timer) stopLocked() {
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.done)
		t.ticker = nil
		t.done = nil
	}
}

func (t *Timer) run(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			if t.done != done {
				// Superseded by a newer Set or a Clear.
				t.mu.Unlock()
				return
			}
			t.remaining--
			remaining := t.remaining
			if remaining <= 0 {
				t.remaining = 0
				remaining = 0
				t.stopLocked()
			}
			t.mu.Unlock()

			t.onTick(remaining)
			if remaining == 0 {
				return
			}
		case <-done:
			return
		}
	}
}
