package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/existflow/slotflow/internal/logger"
)

// DefaultDebounce is how long Trigger waits for further triggers
const DefaultDebounce = 2 * time.Second

// AutoRefresh refreshes an engine on a cron schedule and after bursts of
// user actions
type AutoRefresh struct {
	engine   *Engine
	cron     *cron.Cron
	debounce time.Duration
	enabled  func() bool

	mu      sync.Mutex
	pending bool
	stopped bool
	stopCh  chan struct{}
}

// NewAutoRefresh schedules engine.Refresh with spec, for example
// "@every 30s". enabled is checked before every run; nil means always.
func NewAutoRefresh(engine *Engine, spec string, enabled func() bool) (*AutoRefresh, error) {
	if enabled == nil {
		enabled = func() bool { return true }
	}
	a := &AutoRefresh{
		engine:   engine,
		cron:     cron.New(),
		debounce: DefaultDebounce,
		enabled:  enabled,
		stopCh:   make(chan struct{}),
	}

	if _, err := a.cron.AddFunc(spec, a.run); err != nil {
		return nil, fmt.Errorf("invalid refresh interval %q: %w", spec, err)
	}
	return a, nil
}

// SetDebounce changes the Trigger delay
func (a *AutoRefresh) SetDebounce(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.debounce = d
}

// Start begins the schedule
func (a *AutoRefresh) Start() {
	a.cron.Start()
}

// Trigger asks for a refresh soon. Calls within the debounce window
// collapse into one refresh.
func (a *AutoRefresh) Trigger() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending || a.stopped {
		return
	}
	a.pending = true
	go a.debounced(a.debounce)
}

// IsPending returns true if a triggered refresh is waiting
func (a *AutoRefresh) IsPending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

func (a *AutoRefresh) debounced(wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		a.mu.Lock()
		a.pending = false
		a.mu.Unlock()
		a.run()
	case <-a.stopCh:
	}
}

func (a *AutoRefresh) run() {
	if !a.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := a.engine.Refresh(ctx); err != nil {
		logger.Debug("Background refresh failed", logger.F("error", err.Error()))
	}
}

// Stop ends the schedule and any pending trigger. It waits for a running
// scheduled refresh to finish.
func (a *AutoRefresh) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	close(a.stopCh)
	a.mu.Unlock()

	<-a.cron.Stop().Done()
}
