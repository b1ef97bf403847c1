package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for provider calls, assessments and alerts.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={ok,unavailable,malformed,timeout,credentials}
	ProviderDuration *prometheus.HistogramVec // labels: provider
	Assessments      *prometheus.CounterVec   // labels: confidence, status
	AlertRequests    *prometheus.CounterVec   // labels: source, outcome
	ActiveAlerts     *prometheus.GaugeVec     // labels: province
}

func newCollectors() *Metrics {
	return &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood",
			Name:      "provider_requests_total",
			Help:      "Provider fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flood",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider fetch latency as seen by the aggregator.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		Assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood",
			Name:      "assessments_total",
			Help:      "Completed flood risk assessments by confidence and status.",
		}, []string{"confidence", "status"}),
		AlertRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flood",
			Name:      "alert_requests_total",
			Help:      "Alert source queries by source and outcome.",
		}, []string{"source", "outcome"}),
		ActiveAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flood",
			Name:      "active_alerts",
			Help:      "Active flood alerts per province at the last refresh.",
		}, []string{"province"}),
	}
}

// NewMetrics creates all collectors and registers them with the default registry.
func NewMetrics() *Metrics {
	m := newCollectors()
	prometheus.MustRegister(
		m.ProviderRequests,
		m.ProviderDuration,
		m.Assessments,
		m.AlertRequests,
		m.ActiveAlerts,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return newCollectors()
}

// The helpers below accept a nil *Metrics so callers can run without metrics.

func (m *Metrics) ObserveProvider(provider, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	if took > 0 {
		m.ProviderDuration.WithLabelValues(provider).Observe(took.Seconds())
	}
}

func (m *Metrics) ObserveAssessment(confidence, status string) {
	if m == nil {
		return
	}
	m.Assessments.WithLabelValues(confidence, status).Inc()
}

func (m *Metrics) ObserveAlertSource(source, outcome string) {
	if m == nil {
		return
	}
	m.AlertRequests.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) SetActiveAlerts(province string, count int) {
	if m == nil {
		return
	}
	m.ActiveAlerts.WithLabelValues(province).Set(float64(count))
}
