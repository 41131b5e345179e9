package maintenance

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestNilMetricsIsSafeToCallThrough(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.recordRunStarted()
		m.recordIndexFailure()
		m.recordCriticalFailure()
		m.recordIndexOutcome(ActionRebuild)
	})
}

func TestMetricsRecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.recordRunStarted()
	m.recordRunStarted()
	assert.Equal(t, float64(2), counterValue(t, m.runsStarted))

	m.recordIndexFailure()
	assert.Equal(t, float64(1), counterValue(t, m.indexFailures))

	m.recordCriticalFailure()
	assert.Equal(t, float64(1), counterValue(t, m.criticalFailures))

	m.recordIndexOutcome(ActionRebuild)
	m.recordIndexOutcome(ActionRebuild)
	m.recordIndexOutcome(ActionReorganize)
	assert.Equal(t, float64(2), counterValue(t, m.indexesByAction.WithLabelValues(string(ActionRebuild))))
	assert.Equal(t, float64(1), counterValue(t, m.indexesByAction.WithLabelValues(string(ActionReorganize))))
}
