package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsHelpers(t *testing.T) {
	m := NewMetricsForTesting()

	m.ObserveProvider("weather", "ok", 120*time.Millisecond)
	m.ObserveProvider("weather", "ok", 80*time.Millisecond)
	m.ObserveProvider("elevation", "timeout", 0)
	m.ObserveAssessment("medium", "degraded")
	m.ObserveAlertSource("government_registry", "ok")
	m.SetActiveAlerts("Hanoi", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("weather", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("elevation", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assessments.WithLabelValues("medium", "degraded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertRequests.WithLabelValues("government_registry", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveAlerts.WithLabelValues("Hanoi")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProvider("weather", "ok", time.Second)
		m.ObserveAssessment("low", "fallback")
		m.ObserveAlertSource("weather", "unavailable")
		m.SetActiveAlerts("Hanoi", 0)
	})
}
