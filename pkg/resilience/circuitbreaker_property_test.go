package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any sequence of call outcomes with the clock frozen, the circuit opens
// exactly when maxFailures consecutive failures were recorded and, once open,
// refuses every later call without running it.
func TestProperty_CircuitOpensOnConsecutiveFailures(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("open iff a failure streak reached the threshold", prop.ForAll(
		func(maxFailures int, outcomes []bool) bool {
			cb, _ := newTestBreaker(maxFailures, time.Hour)
			ctx := context.Background()

			streak := 0
			open := false
			for _, ok := range outcomes {
				ran := false
				err := cb.Execute(ctx, func(context.Context) error {
					ran = true
					if ok {
						return nil
					}
					return errDown
				})
				if open {
					if ran || !errors.Is(err, ErrCircuitOpen) {
						return false
					}
					continue
				}
				if ok {
					streak = 0
				} else {
					streak++
				}
				open = streak >= maxFailures
				if (cb.State() == StateOpen) != open {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 5),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

// For any open circuit, after the reset timeout a single probe decides the
// next state: success closes it with no failures, failure opens it again.
func TestProperty_ProbeDecidesState(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("probe outcome sets the state", prop.ForAll(
		func(maxFailures int, resetMs int, probeOK bool) bool {
			reset := time.Duration(resetMs) * time.Millisecond
			cb, clock := newTestBreaker(maxFailures, reset)
			ctx := context.Background()
			for i := 0; i < maxFailures; i++ {
				_ = cb.Execute(ctx, fail)
			}
			if cb.State() != StateOpen {
				return false
			}

			clock.Advance(reset)
			probe := fail
			if probeOK {
				probe = succeed
			}
			_ = cb.Execute(ctx, probe)

			if probeOK {
				return cb.State() == StateClosed && cb.Failures() == 0
			}
			return cb.State() == StateOpen
		},
		gen.IntRange(1, 10),
		gen.IntRange(1, 10_000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
