// Package health runs the readiness checks behind the management /ready
// endpoint.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckResult is one dependency's answer.
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// AggregatedResult is the /ready body. Status is the worst check status.
type AggregatedResult struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// IsReady is false only when some check is unhealthy; degraded still serves.
func (r AggregatedResult) IsReady() bool {
	return r.Status != StatusUnhealthy
}

// Registry holds checkers by name.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Register adds c, replacing a checker with the same name.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	r.checkers[c.Name()] = c
	r.mu.Unlock()
}

// List returns the registered names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checkers))
	for name := range r.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every checker concurrently and orders the results by name. A
// checker that panics is reported unhealthy.
func (r *Registry) Check(ctx context.Context) AggregatedResult {
	r.mu.RLock()
	checkers := make([]Checker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()

	start := time.Now()
	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	overall := StatusHealthy
	for _, res := range results {
		if res.Status.severity() > overall.severity() {
			overall = res.Status
		}
	}
	return AggregatedResult{
		Status:    overall,
		Checks:    results,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
}

func runCheck(ctx context.Context, c Checker) (res CheckResult) {
	defer func() {
		if p := recover(); p != nil {
			res = CheckResult{
				Name:      c.Name(),
				Status:    StatusUnhealthy,
				Error:     fmt.Sprintf("check panicked: %v", p),
				Timestamp: time.Now(),
			}
		}
	}()
	return c.Check(ctx)
}
