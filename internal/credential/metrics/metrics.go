package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for credential issuance and validation.
type Metrics struct {
	CredentialsIssued   prometheus.Counter
	CredentialsRevoked  *prometheus.CounterVec
	ValidationsAccepted prometheus.Counter
	ValidationsRejected *prometheus.CounterVec
	TamperSuspected     prometheus.Counter
	IssueLatency        prometheus.Histogram
	ValidateLatency     prometheus.Histogram
}

// New registers and returns credential collectors on reg.
// A nil registerer falls back to the default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CredentialsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_credentials_issued_total",
			Help: "Total number of verification credentials issued",
		}),
		CredentialsRevoked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_credentials_revoked_total",
			Help: "Total number of credentials revoked, labeled by cause",
		}, []string{"cause"}),
		ValidationsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_credential_validations_accepted_total",
			Help: "Total number of credential validations accepted",
		}),
		ValidationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_credential_validations_rejected_total",
			Help: "Total number of credential validations rejected, labeled by reason",
		}, []string{"reason"}),
		TamperSuspected: factory.NewCounter(prometheus.CounterOpts{
			Name: "wallet_credential_tamper_suspected_total",
			Help: "Total number of validations whose presented hash did not match the issued payload",
		}),
		IssueLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_credential_issue_latency_seconds",
			Help:    "Latency of credential issuance in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		ValidateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wallet_credential_validate_latency_seconds",
			Help:    "Latency of credential validation in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncrementRevoked(cause string) {
	m.CredentialsRevoked.WithLabelValues(cause).Inc()
}

func (m *Metrics) IncrementAccepted() {
	m.ValidationsAccepted.Inc()
}

func (m *Metrics) IncrementRejected(reason string) {
	m.ValidationsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementTamperSuspected() {
	m.TamperSuspected.Inc()
}

func (m *Metrics) ObserveIssueLatency(seconds float64) {
	m.IssueLatency.Observe(seconds)
}

func (m *Metrics) ObserveValidateLatency(seconds float64) {
	m.ValidateLatency.Observe(seconds)
}
