package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the authorization engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Logins               *prometheus.CounterVec
	ConsentDecisions     *prometheus.CounterVec
	TokensIssued         *prometheus.CounterVec
	CodeExchanges        *prometheus.CounterVec
	KeyRotations         *prometheus.CounterVec
	ExchangeCodeDuration prometheus.Histogram
	RevocationCheck      prometheus.Histogram
}

// New registers all collectors on reg. Pass prometheus.DefaultRegisterer in
// main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_logins_total",
			Help: "Interactive logins by outcome",
		}, []string{"outcome"}),
		ConsentDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_consent_decisions_total",
			Help: "Consent approval step decisions",
		}, []string{"decision"}),
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_tokens_issued_total",
			Help: "Tokens minted by kind (access, refresh, code)",
		}, []string{"kind"}),
		CodeExchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_code_exchanges_total",
			Help: "Authorization code exchanges by outcome",
		}, []string{"outcome"}),
		KeyRotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sso_key_rotations_total",
			Help: "Credential rotations by owner scope",
		}, []string{"scope"}),
		ExchangeCodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sso_exchange_code_duration_seconds",
			Help:    "Duration of authorization code exchanges",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RevocationCheck: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sso_token_revocation_check_duration_ms",
			Help:    "Latency of token revocation checks in milliseconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		}),
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementConsentDecision(decision string) {
	if m == nil {
		return
	}
	m.ConsentDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementTokenIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementCodeExchange(outcome string) {
	if m == nil {
		return
	}
	m.CodeExchanges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementKeyRotation(scope string) {
	if m == nil {
		return
	}
	m.KeyRotations.WithLabelValues(scope).Inc()
}

// ObserveExchangeCode records the duration of a code exchange.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveExchangeCode(start time.Time) {
	if m == nil {
		return
	}
	m.ExchangeCodeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveRevocationCheck(start time.Time) {
	if m == nil {
		return
	}
	m.RevocationCheck.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
