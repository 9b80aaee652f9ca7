package health

import (
	"context"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds each checker run by Manager.Check.
const DefaultCheckTimeout = 5 * time.Second

// Manager runs a set of checkers concurrently.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	timeout  time.Duration
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{timeout: DefaultCheckTimeout}
}

// SetTimeout changes the per-checker timeout.
func (m *Manager) SetTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.timeout = d
	}
}

// Add registers checkers.
func (m *Manager) Add(checkers ...Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checkers...)
}

// Names lists registered checkers in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.checkers))
	for i, c := range m.checkers {
		names[i] = c.Name()
	}
	return names
}

// Check runs every checker with its own timeout and returns results by name.
func (m *Manager) Check(ctx context.Context) map[string]*Result {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	timeout := m.timeout
	m.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*Result, len(checkers))
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			res := c.Check(checkCtx)
			if res == nil {
				res = Unhealthy("checker returned no result")
			}
			if res.Latency == 0 {
				res.Latency = time.Since(start)
			}

			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

// Overall folds results: any unhealthy wins, then any degraded.
func Overall(results map[string]*Result) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}
