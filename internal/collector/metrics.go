package collector

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for the pipeline. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	taskRuns      *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	taskRecords   *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		taskRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proxystats",
				Name:      "task_runs_total",
				Help:      "Collection task executions by outcome.",
			},
			[]string{"task", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "proxystats",
				Name:      "task_duration_seconds",
				Help:      "Wall time of collection task executions.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"task"},
		),
		taskRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proxystats",
				Name:      "task_records_total",
				Help:      "Rows written by successful collection tasks.",
			},
			[]string{"task"},
		),
		fetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proxystats",
				Name:      "fetch_attempts_total",
				Help:      "HTTP attempts against the metrics source by outcome.",
			},
			[]string{"endpoint", "outcome", "attempt"},
		),
	}
	reg.MustRegister(m.taskRuns, m.taskDuration, m.taskRecords, m.fetchAttempts)
	return m
}

func (m *Metrics) observeTask(task TaskType, status string, elapsed time.Duration, records int) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(string(task), status).Inc()
	m.taskDuration.WithLabelValues(string(task)).Observe(elapsed.Seconds())
	if records > 0 {
		m.taskRecords.WithLabelValues(string(task)).Add(float64(records))
	}
}

// ObserveFetchAttempt matches source.AttemptObserver.
func (m *Metrics) ObserveFetchAttempt(endpoint string, attempt int, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetchAttempts.WithLabelValues(endpoint, outcome, strconv.Itoa(attempt)).Inc()
}
