package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/polygonid/academic-bridge/internal/core/domain"
)

// Metrics holds Prometheus collectors for the issuance and verification workflows.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	IssuanceOutcomes      *prometheus.CounterVec
	VerificationOutcomes  *prometheus.CounterVec
	ConnectionNudges      prometheus.Counter
	ConnectionAbandoned   prometheus.Counter
	EnsureActiveAttempts  prometheus.Histogram
	AnchorLatency         prometheus.Histogram
	NotificationsFailures prometheus.Counter
}

// New registers and returns the collectors in reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IssuanceOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academic_issuance_total",
			Help: "Total number of issuance requests, labeled by outcome status",
		}, []string{"status"}),
		VerificationOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "academic_verification_total",
			Help: "Total number of verifications, labeled by verdict",
		}, []string{"status"}),
		ConnectionNudges: f.NewCounter(prometheus.CounterOpts{
			Name: "academic_connection_nudges_total",
			Help: "Total number of connection advance requests sent to the agent",
		}),
		ConnectionAbandoned: f.NewCounter(prometheus.CounterOpts{
			Name: "academic_connection_abandoned_total",
			Help: "Total number of connections marked abandoned after repeated stalls",
		}),
		EnsureActiveAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "academic_ensure_active_attempts",
			Help:    "Distribution of the attempts needed to observe a connection state",
			Buckets: []float64{1, 2, 3, 5, 8},
		}),
		AnchorLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "academic_anchor_latency_seconds",
			Help:    "Latency of ledger anchor operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		NotificationsFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "academic_notification_failures_total",
			Help: "Total number of issuance notifications that could not be delivered",
		}),
	}
}

func (m *Metrics) IncrementIssuance(status domain.IssuanceStatus) {
	if m == nil {
		return
	}
	m.IssuanceOutcomes.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) IncrementVerification(status domain.VerificationStatus) {
	if m == nil {
		return
	}
	m.VerificationOutcomes.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) IncrementNudges() {
	if m == nil {
		return
	}
	m.ConnectionNudges.Inc()
}

func (m *Metrics) IncrementAbandoned() {
	if m == nil {
		return
	}
	m.ConnectionAbandoned.Inc()
}

func (m *Metrics) ObserveEnsureActiveAttempts(attempts int) {
	if m == nil {
		return
	}
	m.EnsureActiveAttempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveAnchorLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.AnchorLatency.Observe(d.Seconds())
}

func (m *Metrics) IncrementNotificationFailures() {
	if m == nil {
		return
	}
	m.NotificationsFailures.Inc()
}
