package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementLogin("success")
	m.IncrementLogin("success")
	m.IncrementLogin("invalid_credentials")
	m.IncrementTokenIssued("access")
	m.ObserveExchangeCode(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued.WithLabelValues("access")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementLogin("success")
		m.IncrementConsentDecision("approve")
		m.IncrementTokenIssued("refresh")
		m.IncrementCodeExchange("invalid_grant")
		m.IncrementKeyRotation("application")
		m.ObserveExchangeCode(time.Now())
		m.ObserveRevocationCheck(time.Now())
	})
}
