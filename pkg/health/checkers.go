package health

import (
	"context"
	"fmt"
	"time"

	"github.com/nimburion/taskmanager/pkg/migrate"
	"github.com/nimburion/taskmanager/pkg/resilience"
)

const defaultTimeout = 5 * time.Second

// Checkable is a store adapter that can ping its backend.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

func finished(name string, start time.Time, status Status, msg string, err error) CheckResult {
	res := CheckResult{
		Name:      name,
		Status:    status,
		Message:   msg,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// AdapterChecker is unhealthy when the adapter ping fails or outlives the
// timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker uses a five second timeout when timeout is not positive.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AdapterChecker{name: name, adapter: adapter, timeout: timeout}
}

func (c *AdapterChecker) Name() string { return c.name }

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.adapter.HealthCheck(ctx); err != nil {
		return finished(c.name, start, StatusUnhealthy, "", err)
	}
	return finished(c.name, start, StatusHealthy, "OK", nil)
}

// SchemaChecker is degraded while documents wait for a schema migration.
// Old documents stay readable, so pending work does not stop traffic.
type SchemaChecker struct {
	name    string
	status  func(ctx context.Context) (*migrate.Status, error)
	timeout time.Duration
}

func NewSchemaChecker(name string, status func(ctx context.Context) (*migrate.Status, error)) *SchemaChecker {
	return &SchemaChecker{name: name, status: status, timeout: defaultTimeout}
}

func (c *SchemaChecker) Name() string { return c.name }

func (c *SchemaChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	st, err := c.status(ctx)
	switch {
	case err != nil:
		return finished(c.name, start, StatusUnhealthy, "", err)
	case len(st.Pending) > 0:
		next := st.Pending[0]
		return finished(c.name, start, StatusDegraded, fmt.Sprintf("migration to %s pending: %s", next.Version, next.Name), nil)
	default:
		return finished(c.name, start, StatusHealthy, fmt.Sprintf("schema versions %v", st.AppliedVersions), nil)
	}
}

// CircuitChecker maps a breaker state: open is unhealthy, half-open degraded.
type CircuitChecker struct {
	name    string
	breaker interface{ State() resilience.State }
}

func NewCircuitChecker(name string, breaker interface{ State() resilience.State }) *CircuitChecker {
	return &CircuitChecker{name: name, breaker: breaker}
}

func (c *CircuitChecker) Name() string { return c.name }

func (c *CircuitChecker) Check(context.Context) CheckResult {
	start := time.Now()
	state := c.breaker.State()
	status := StatusHealthy
	switch state {
	case resilience.StateOpen:
		status = StatusUnhealthy
	case resilience.StateHalfOpen:
		status = StatusDegraded
	}
	return finished(c.name, start, status, "circuit "+state.String(), nil)
}
