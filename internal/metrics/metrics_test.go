package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/polygonid/academic-bridge/internal/core/domain"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementIssuance(domain.IssuanceStatusIssuedAnchored)
	m.IncrementIssuance(domain.IssuanceStatusIssuedAnchored)
	m.IncrementVerification(domain.VerificationStatusHashMismatch)
	m.IncrementNudges()
	m.ObserveAnchorLatency(time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IssuanceOutcomes.WithLabelValues(string(domain.IssuanceStatusIssuedAnchored))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationOutcomes.WithLabelValues(string(domain.VerificationStatusHashMismatch))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionNudges))
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementIssuance(domain.IssuanceStatusFailedBeforeIssuance)
		m.IncrementAbandoned()
		m.ObserveEnsureActiveAttempts(1)
		m.IncrementNotificationFailures()
	})
}
