package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the quiescence window used when none is
// configured. Editors and atomic-rename writers emit bursts of events for
// one logical change; 200ms coalesces a burst into a single callback.
const DefaultDebounceDuration = 200 * time.Millisecond

// Debouncer coalesces a burst of triggers into one callback fired after
// the burst quiesces. A new trigger arriving before the window elapses
// cancels and reschedules, so the callback runs exactly once per burst,
// at least one window after the last trigger (trailing edge).
type Debouncer struct {
	duration time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer returns a Debouncer with the given window; non-positive
// durations fall back to DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{duration: d}
}

// Duration returns the configured quiescence window.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}

// Trigger schedules fn to run after the window elapses, replacing any
// previously scheduled callback.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
