package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	RequestsCreated       prometheus.Counter
	Decisions             *prometheus.CounterVec
	RequestsExpired       prometheus.Counter
	PendingRequests       prometheus.Gauge
	AlreadyDecidedRejects prometheus.Counter
	DecideLatency         prometheus.Histogram

	// Lock contention
	ShardLockWait         prometheus.Histogram
	ShardLockAcquisitions prometheus.Counter
}

// New registers and returns consent collectors on reg.
// A nil registerer falls back to the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RequestsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_consent_requests_created_total",
			Help: "Total number of consent requests received",
		}),
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_consent_decisions_total",
			Help: "Total number of consent decisions, labeled by outcome",
		}, []string{"outcome"}),
		RequestsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_consent_requests_expired_total",
			Help: "Total number of consent requests that expired undecided",
		}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_consent_pending_requests",
			Help: "Current number of consent requests awaiting a decision",
		}),
		AlreadyDecidedRejects: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_consent_already_decided_total",
			Help: "Total number of decisions refused because the request was no longer pending",
		}),
		DecideLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_consent_decide_latency_seconds",
			Help:    "Latency of consent decisions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ShardLockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_consent_shard_lock_wait_seconds",
			Help:    "Time spent waiting to acquire a consent shard lock",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		ShardLockAcquisitions: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_consent_shard_lock_acquisitions_total",
			Help: "Total number of consent shard lock acquisitions",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.RequestsCreated.Inc()
	m.PendingRequests.Inc()
}

func (m *Metrics) IncrementDecision(outcome string) {
	m.Decisions.WithLabelValues(outcome).Inc()
	m.PendingRequests.Dec()
}

func (m *Metrics) IncrementExpired() {
	m.RequestsExpired.Inc()
	m.PendingRequests.Dec()
}

func (m *Metrics) IncrementAlreadyDecided() {
	m.AlreadyDecidedRejects.Inc()
}

func (m *Metrics) ObserveDecideLatency(seconds float64) {
	m.DecideLatency.Observe(seconds)
}

func (m *Metrics) ObserveShardLockWait(seconds float64) {
	m.ShardLockWait.Observe(seconds)
	m.ShardLockAcquisitions.Inc()
}
