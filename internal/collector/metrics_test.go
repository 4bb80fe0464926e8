package collector

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelsOf(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		out[l.GetName()] = l.GetValue()
	}
	return out
}

func TestMetricsRecordTaskOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observeTask(TaskUser, "success", 1500*time.Millisecond, 12)
	m.observeTask(TaskUser, "error", time.Second, 0)
	m.ObserveFetchAttempt("/user-stats", 1, errors.New("timeout"))
	m.ObserveFetchAttempt("/user-stats", 2, nil)

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	runs := byName["proxystats_task_runs_total"]
	require.NotNil(t, runs)
	require.Len(t, runs.GetMetric(), 2)
	for _, metric := range runs.GetMetric() {
		assert.Equal(t, "user_stats", labelsOf(metric)["task"])
		assert.Equal(t, 1.0, metric.GetCounter().GetValue())
	}

	records := byName["proxystats_task_records_total"]
	require.NotNil(t, records)
	require.Len(t, records.GetMetric(), 1)
	assert.Equal(t, 12.0, records.GetMetric()[0].GetCounter().GetValue())

	duration := byName["proxystats_task_duration_seconds"]
	require.NotNil(t, duration)
	assert.Equal(t, uint64(2), duration.GetMetric()[0].GetHistogram().GetSampleCount())
	assert.InDelta(t, 2.5, duration.GetMetric()[0].GetHistogram().GetSampleSum(), 1e-9)

	attempts := byName["proxystats_fetch_attempts_total"]
	require.NotNil(t, attempts)
	got := map[string]string{}
	for _, metric := range attempts.GetMetric() {
		l := labelsOf(metric)
		got[l["attempt"]] = l["outcome"]
	}
	assert.Equal(t, map[string]string{"1": "error", "2": "success"}, got)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.observeTask(TaskSystem, "success", time.Second, 3)
		m.ObserveFetchAttempt("/hourly-stats", 1, nil)
	})
}
