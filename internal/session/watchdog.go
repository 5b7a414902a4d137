package session

import (
	"context"
	"time"

	appLog "hiredesk/internal/log"
)

// Watchdog clears the session after a fixed idle period. Any user activity
// resets the countdown via Touch. It is the desk-side equivalent of the
// portal's mouse-move/key-press inactivity logout.
type Watchdog struct {
	store *Store
	idle  time.Duration
	touch chan struct{}
}

// NewWatchdog creates a watchdog for the given store. idle must be
// positive.
func NewWatchdog(store *Store, idle time.Duration) *Watchdog {
	return &Watchdog{
		store: store,
		idle:  idle,
		touch: make(chan struct{}, 1),
	}
}

// Touch records activity, resetting the idle countdown. Safe to call from
// any goroutine; coalesces bursts.
func (w *Watchdog) Touch() {
	select {
	case w.touch <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is canceled, expiring idle sessions as it goes.
// The timer is deterministic: it is armed once per idle window and torn
// down on ctx cancel, never leaked.
func (w *Watchdog) Run(ctx context.Context) {
	timer := time.NewTimer(w.idle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.touch:
			if !timer.Stop() {
				// Drain if the timer fired between Stop and here.
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.idle)

		case <-timer.C:
			if w.store.LoggedIn() {
				appLog.Info("idle timeout reached, clearing session", "idle", w.idle.String())
				if err := w.store.Clear(); err != nil {
					appLog.Error("idle logout failed to clear session", err)
				}
			}
			timer.Reset(w.idle)
		}
	}
}
