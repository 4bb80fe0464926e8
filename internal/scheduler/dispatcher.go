package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"proxystats/internal/collector"
)

// Job identifies what a schedule entry or a manual trigger runs.
type Job string

const (
	JobDaily   Job = "daily"
	JobVehicle Job = "vehicle"
)

// UnknownJobError is returned for a schedule identifier that maps to no job.
type UnknownJobError struct {
	ID string
}

func (e *UnknownJobError) Error() string {
	return fmt.Sprintf("unknown schedule identifier %q", e.ID)
}

// ParseJob maps a schedule identifier to a Job.
func ParseJob(id string) (Job, error) {
	switch Job(id) {
	case JobDaily, JobVehicle:
		return Job(id), nil
	default:
		return "", &UnknownJobError{ID: id}
	}
}

// Runner is the part of the collector the dispatcher drives.
type Runner interface {
	CollectDaily(ctx context.Context) collector.DailyResult
	CollectVehicleDetails(ctx context.Context) (*collector.TaskResult, error)
}

// Result holds the outcome of one dispatched job. Exactly one of Daily or
// Vehicle is set when the job ran.
type Result struct {
	Job     Job                    `json:"job"`
	Daily   *collector.DailyResult `json:"daily,omitempty"`
	Vehicle *collector.TaskResult  `json:"vehicle,omitempty"`
}

// Value returns the job-specific result.
func (r Result) Value() any {
	if r.Daily != nil {
		return r.Daily
	}
	return r.Vehicle
}

// Dispatcher runs the job named by a schedule identifier under a deadline.
type Dispatcher struct {
	runner  Runner
	timeout time.Duration
	runs    *prometheus.CounterVec
}

// NewDispatcher returns a Dispatcher. A non-positive timeout disables the
// per-invocation deadline. reg may be nil.
func NewDispatcher(runner Runner, timeout time.Duration, reg prometheus.Registerer) *Dispatcher {
	d := &Dispatcher{
		runner:  runner,
		timeout: timeout,
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "proxystats",
				Name:      "scheduled_runs_total",
				Help:      "Dispatched job invocations by outcome.",
			},
			[]string{"job", "status"},
		),
	}
	if reg != nil {
		reg.MustRegister(d.runs)
	}
	return d
}

// Dispatch runs the job for id and waits for it. The daily job reports task
// failures inside its result and never returns an error; the vehicle job
// returns its task error unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) (Result, error) {
	job, err := ParseJob(id)
	if err != nil {
		return Result{}, err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	res := Result{Job: job}
	switch job {
	case JobDaily:
		daily := d.runner.CollectDaily(ctx)
		res.Daily = &daily
		status := "success"
		if len(daily.Errors) > 0 {
			status = "partial"
		}
		d.runs.WithLabelValues(string(job), status).Inc()
	case JobVehicle:
		res.Vehicle, err = d.runner.CollectVehicleDetails(ctx)
		if err != nil {
			d.runs.WithLabelValues(string(job), "error").Inc()
			return res, err
		}
		d.runs.WithLabelValues(string(job), "success").Inc()
	}
	return res, nil
}
