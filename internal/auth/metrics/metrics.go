package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for holder authentication.
type Metrics struct {
	AuthSucceeded *prometheus.CounterVec
	AuthFailures  *prometheus.CounterVec
	Lockouts      prometheus.Counter
	AuthDuration  *prometheus.HistogramVec
}

// New registers and returns auth collectors on reg.
// A nil registerer falls back to the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		AuthSucceeded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_auth_succeeded_total",
			Help: "Total number of successful holder authentications, labeled by method",
		}, []string{"method"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_auth_failures_total",
			Help: "Total number of failed holder authentications, labeled by method and reason",
		}, []string{"method", "reason"}),
		Lockouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_auth_locked_attempts_total",
			Help: "Total number of attempts refused because the PIN is locked out",
		}),
		AuthDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wallet_auth_duration_seconds",
			Help:    "Duration of holder authentication attempts in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method"}),
	}
}

func (m *Metrics) IncrementSucceeded(method string) {
	m.AuthSucceeded.WithLabelValues(method).Inc()
}

func (m *Metrics) IncrementFailure(method, reason string) {
	m.AuthFailures.WithLabelValues(method, reason).Inc()
	if reason == "locked" {
		m.Lockouts.Inc()
	}
}

func (m *Metrics) ObserveDuration(method string, seconds float64) {
	m.AuthDuration.WithLabelValues(method).Observe(seconds)
}
