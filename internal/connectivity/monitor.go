// Package connectivity observes whether the inventory server is reachable.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/maradi/fieldsync/internal/logging"
)

// Prober checks server reachability. The API client satisfies this.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor probes the server on an interval and notifies subscribers on
// online/offline transitions. Subscriptions are cancellable; Subscribe
// returns the unsubscribe handle.
type Monitor struct {
	prober   Prober
	interval time.Duration

	mu          sync.RWMutex
	online      bool
	subscribers map[int]func(online bool)
	nextSubID   int
	isRunning   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMonitor creates a Monitor. The device is considered offline until the
// first probe says otherwise.
func NewMonitor(prober Prober, interval time.Duration) *Monitor {
	return &Monitor{
		prober:      prober,
		interval:    interval,
		subscribers: make(map[int]func(online bool)),
		stopCh:      make(chan struct{}),
	}
}

// IsOnline returns the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribe registers a callback invoked on every online/offline
// transition and returns its unsubscribe handle.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Probe checks reachability immediately, updating state and notifying
// subscribers if it changed. Returns the observed state.
func (m *Monitor) Probe(ctx context.Context) bool {
	online := m.prober.Health(ctx) == nil

	m.mu.Lock()
	changed := m.online != online
	m.online = online
	var callbacks []func(bool)
	if changed {
		for _, fn := range m.subscribers {
			callbacks = append(callbacks, fn)
		}
	}
	m.mu.Unlock()

	if changed {
		logging.Info("connectivity changed", map[string]interface{}{
			"online": online,
		})
		for _, fn := range callbacks {
			fn(online)
		}
	}
	return online
}

// Start begins the periodic probe loop, probing once immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = true
	m.mu.Unlock()

	// Startup probe so the initial state is observed, not assumed.
	m.Probe(ctx)

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop stops the probe loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
