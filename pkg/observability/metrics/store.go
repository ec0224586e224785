package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// storeOperationDuration tracks document store call latency in seconds.
	// Labels: collection, operation, outcome
	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Document store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection", "operation", "outcome"},
	)

	// storeOperationsTotal counts document store calls.
	// Labels: collection, operation, outcome
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of document store operations",
		},
		[]string{"collection", "operation", "outcome"},
	)

	// storeCircuitState is 0 closed, 1 open, 2 half-open.
	storeCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_circuit_breaker_state",
			Help: "Document store circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)

	// storeCircuitRejections counts calls refused while the circuit was open.
	storeCircuitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_circuit_breaker_rejections_total",
			Help: "Total number of document store calls refused by the circuit breaker",
		},
	)
)

// RecordStoreOperation records one document store call. outcome is "error" when err is non-nil.
func RecordStoreOperation(collection, operation string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storeOperationDuration.WithLabelValues(collection, operation, outcome).Observe(duration.Seconds())
	storeOperationsTotal.WithLabelValues(collection, operation, outcome).Inc()
}

// SetStoreCircuitState publishes the circuit breaker state as a number.
func SetStoreCircuitState(state int) {
	storeCircuitState.Set(float64(state))
}

// RecordStoreCircuitRejection counts one call refused by the open circuit.
func RecordStoreCircuitRejection() {
	storeCircuitRejections.Inc()
}
