// Package consent runs the background task that re-checks a lead's
// e-signature status while it is pending.
package consent

import (
	"context"
	"sync"
	"time"

	"lead-wizard/internal/common/logger"
	"lead-wizard/internal/common/metrics"
)

// DefaultInterval is the pause between background checks.
const DefaultInterval = 7 * time.Second

// Key identifies what is being polled. A change of either field restarts
// the task.
type Key struct {
	LeadID      string
	SigningLink string
}

// CheckFunc performs one status check. Returning true ends the task.
type CheckFunc func(ctx context.Context) (done bool)

type task struct {
	key    Key
	cancel context.CancelFunc
	done   chan struct{}
}

// Poller supervises at most one polling task at a time.
type Poller struct {
	mu       sync.Mutex
	interval time.Duration
	logger   logger.Logger
	current  *task
	wg       sync.WaitGroup
}

func NewPoller(interval time.Duration, log logger.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Poller{interval: interval, logger: log}
}

// Ensure starts polling key unless a task for key is already running. Any
// task for a different key is canceled first. It reports whether a new task
// was started.
func (p *Poller) Ensure(key Key, check CheckFunc) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil && p.current.key == key {
		return false
	}
	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{key: key, cancel: cancel, done: make(chan struct{})}
	p.current = t

	p.wg.Add(1)
	metrics.ConsentPollersActive.Inc()
	go p.run(ctx, t, check)

	p.logger.Debug("Consent polling started", map[string]interface{}{
		"leadId":   key.LeadID,
		"interval": p.interval.String(),
	})
	return true
}

// Stop cancels the running task, if any, without waiting for it. Safe to
// call from inside a CheckFunc.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Shutdown cancels the running task and waits for every task goroutine to
// exit. Must not be called from inside a CheckFunc.
func (p *Poller) Shutdown() {
	p.Stop()
	p.wg.Wait()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Key returns the key of the running task.
func (p *Poller) Key() (Key, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Key{}, false
	}
	return p.current.key, true
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

func (p *Poller) stopLocked() {
	if p.current == nil {
		return
	}
	p.current.cancel()
	p.logger.Debug("Consent polling stopped", map[string]interface{}{
		"leadId": p.current.key.LeadID,
	})
	p.current = nil
}

func (p *Poller) run(ctx context.Context, t *task, check CheckFunc) {
	defer p.wg.Done()
	defer metrics.ConsentPollersActive.Dec()
	defer close(t.done)
	defer p.finish(t)

	if check(ctx) || ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if check(ctx) || ctx.Err() != nil {
				return
			}
		}
	}
}

// finish clears t if it is still the current task.
func (p *Poller) finish(t *task) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == t {
		t.cancel()
		p.current = nil
	}
}
