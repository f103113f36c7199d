package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Checker produces the health status of one sub-component
type Checker interface {
	Name() string
	Check(ctx context.Context) Status
}

// CheckerFunc adapts a function to the Checker interface
type CheckerFunc struct {
	ComponentName string
	Fn            func(ctx context.Context) Status
}

// Name returns the component name
func (c CheckerFunc) Name() string { return c.ComponentName }

// Check runs the function
func (c CheckerFunc) Check(ctx context.Context) Status { return c.Fn(ctx) }

// Monitor aggregates registered checkers into a service-level status.
// Checkers run concurrently with a shared deadline so one slow dependency
// cannot stall the health endpoint.
type Monitor struct {
	service      string
	checkTimeout time.Duration
	startTime    time.Time

	mu       sync.RWMutex
	checkers []Checker
}

// NewMonitor creates a health monitor for the named service
func NewMonitor(service string, checkTimeout time.Duration) *Monitor {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &Monitor{
		service:      service,
		checkTimeout: checkTimeout,
		startTime:    time.Now(),
	}
}

// Register adds a checker. Safe to call while checks are running.
func (m *Monitor) Register(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check runs all checkers and aggregates their statuses
func (m *Monitor) Check(ctx context.Context) Status {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.checkTimeout)
	defer cancel()

	statuses := make([]Status, len(checkers))
	var wg sync.WaitGroup
	for i, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			statuses[i] = m.runChecker(ctx, checker)
		}()
	}
	wg.Wait()

	aggregate := Aggregate(m.service, statuses)
	return aggregate.WithMetrics(&Metrics{Uptime: time.Since(m.startTime)})
}

// runChecker guards against panicking checkers so a single bad probe cannot
// take the health endpoint down with it
func (m *Monitor) runChecker(ctx context.Context, checker Checker) (status Status) {
	defer func() {
		if r := recover(); r != nil {
			status = NewUnhealthy(checker.Name(), fmt.Sprintf("health check panicked: %v", r))
		}
	}()
	return checker.Check(ctx)
}
