package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the wallet facade operations.
type Metrics struct {
	OperationLatency *prometheus.HistogramVec
	OperationErrors  *prometheus.CounterVec
}

// New creates and registers facade metrics on reg.
// A nil registerer falls back to the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_operation_latency_seconds",
			Help:    "Latency of wallet operations in seconds, labeled by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_operation_errors_total",
			Help: "Total number of wallet operations that returned an error, labeled by operation and code",
		}, []string{"operation", "code"}),
	}
}

// ObserveOperation records the latency of an operation.
func (m *Metrics) ObserveOperation(operation string, seconds float64) {
	m.OperationLatency.WithLabelValues(operation).Observe(seconds)
}

// IncrementOperationError counts a failed operation by domain error code.
func (m *Metrics) IncrementOperationError(operation, code string) {
	m.OperationErrors.WithLabelValues(operation, code).Inc()
}
