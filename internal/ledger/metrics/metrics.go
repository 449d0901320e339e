package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the hash-chained ledger.
type Metrics struct {
	EntriesAppended    *prometheus.CounterVec
	AppendFailures     prometheus.Counter
	ChainVerifications *prometheus.CounterVec
	ChainLength        prometheus.Gauge
	AppendLatency      prometheus.Histogram
	VerifyLatency      prometheus.Histogram
}

// New registers and returns ledger collectors on reg.
// A nil registerer falls back to the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		EntriesAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_ledger_entries_appended_total",
			Help: "Total number of ledger entries appended, labeled by event type",
		}, []string{"event_type"}),
		AppendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_ledger_append_failures_total",
			Help: "Total number of ledger appends that failed before commit",
		}),
		ChainVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_ledger_chain_verifications_total",
			Help: "Total number of chain verifications, labeled by result",
		}, []string{"result"}),
		ChainLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wallet_ledger_chain_length",
			Help: "Current number of entries in the ledger",
		}),
		AppendLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_ledger_append_latency_seconds",
			Help:    "Latency of ledger append operations in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_ledger_verify_latency_seconds",
			Help:    "Latency of full chain verification in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementAppended(eventType string) {
	m.EntriesAppended.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrementAppendFailures() {
	m.AppendFailures.Inc()
}

func (m *Metrics) IncrementVerification(result string) {
	m.ChainVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) SetChainLength(n uint64) {
	m.ChainLength.Set(float64(n))
}

func (m *Metrics) ObserveAppendLatency(seconds float64) {
	m.AppendLatency.Observe(seconds)
}

func (m *Metrics) ObserveVerifyLatency(seconds float64) {
	m.VerifyLatency.Observe(seconds)
}
