package messaging

import (
	"context"
	"sync"
	"time"
)

// defaultPollInterval matches the portal's message refresh cadence.
const defaultPollInterval = 5 * time.Second

// poller re-fetches the selected conversation on a fixed interval. Its
// lifetime is bound to "a conversation is selected": start replaces any
// running poll, stop tears the timer down. At most one tick loop runs at
// a time and none survives deselection, so a timer can never be orphaned.
type poller struct {
	vm       *ViewModel
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(vm *ViewModel, interval time.Duration) *poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &poller{vm: vm, interval: interval}
}

// start begins polling conversationID, replacing any previous poll. The
// registration swap happens under the lock, so concurrent starts hand the
// slot over cleanly: whichever caller registers last owns the poll, and
// every displaced loop is cancelled and waited out by its displacer.
func (p *poller) start(ctx context.Context, conversationID string) {
	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-pctx.Done():
				return
			case <-ticker.C:
				p.vm.refresh(pctx, conversationID)
			}
		}
	}()
}

// stop cancels the running poll, if any, and waits for the tick loop to
// exit. Idempotent.
func (p *poller) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
