package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxystats/internal/collector"
)

type fakeRunner struct {
	daily      atomic.Int32
	vehicle    atomic.Int32
	vehicleErr error
	dailyErrs  []string
	block      chan struct{}
	deadline   atomic.Bool
}

func (f *fakeRunner) CollectDaily(ctx context.Context) collector.DailyResult {
	f.daily.Add(1)
	_, ok := ctx.Deadline()
	f.deadline.Store(ok)
	errs := f.dailyErrs
	if errs == nil {
		errs = []string{}
	}
	return collector.DailyResult{Errors: errs, Succeeded: 3 - len(errs), Total: 3}
}

func (f *fakeRunner) CollectVehicleDetails(ctx context.Context) (*collector.TaskResult, error) {
	f.vehicle.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.vehicleErr != nil {
		return nil, f.vehicleErr
	}
	return &collector.TaskResult{Success: true, RecordsCount: 7}, nil
}

func TestParseJob(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"daily", "vehicle"} {
		job, err := ParseJob(id)
		require.NoError(t, err)
		assert.Equal(t, Job(id), job)
	}
	for _, id := range []string{"", "Daily", "weekly", "5 0 * * *"} {
		_, err := ParseJob(id)
		var uj *UnknownJobError
		assert.ErrorAs(t, err, &uj, "id=%q", id)
	}
}

func TestDispatchDaily(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{dailyErrs: []string{"system_stats: boom"}}
	reg := prometheus.NewRegistry()
	d := NewDispatcher(r, time.Minute, reg)

	res, err := d.Dispatch(context.Background(), "daily")
	require.NoError(t, err, "partial failure is reported in the result")
	require.NotNil(t, res.Daily)
	assert.Nil(t, res.Vehicle)
	assert.Equal(t, 2, res.Daily.Succeeded)
	assert.Same(t, res.Daily, res.Value())
	assert.True(t, r.deadline.Load(), "job runs under a deadline")
	assert.Equal(t, int32(0), r.vehicle.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(d.runs.WithLabelValues("daily", "partial")))
}

func TestDispatchVehicleError(t *testing.T) {
	t.Parallel()
	errUpstream := errors.New("upstream down")
	r := &fakeRunner{vehicleErr: errUpstream}
	d := NewDispatcher(r, 0, nil)

	_, err := d.Dispatch(context.Background(), "vehicle")
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, int32(0), r.daily.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(d.runs.WithLabelValues("vehicle", "error")))
}

func TestDispatchUnknownID(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{}
	d := NewDispatcher(r, 0, nil)

	_, err := d.Dispatch(context.Background(), "*/15 * * * *")
	var uj *UnknownJobError
	require.ErrorAs(t, err, &uj)
	assert.Equal(t, int32(0), r.daily.Load()+r.vehicle.Load())
}

func TestDispatchTimeout(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{block: make(chan struct{})}
	d := NewDispatcher(r, 20*time.Millisecond, nil)

	_, err := d.Dispatch(context.Background(), "vehicle")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(&fakeRunner{}, 0, nil)

	_, err := New(d, time.UTC, map[Job]string{JobDaily: "61 * * * *"})
	require.Error(t, err)

	_, err = New(d, time.UTC, map[Job]string{"weekly": "0 0 * * 0"})
	var uj *UnknownJobError
	require.ErrorAs(t, err, &uj)
}

func TestSchedulerRegistersEntries(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(&fakeRunner{}, 0, nil)

	s, err := New(d, time.UTC, map[Job]string{
		JobDaily:   "5 0 * * *",
		JobVehicle: "*/30 * * * *",
	})
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)

	s.Start()
	s.Stop(context.Background())
}

func TestSchedulerRunSwallowsErrors(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{vehicleErr: errors.New("boom")}
	s, err := New(NewDispatcher(r, 0, nil), time.UTC, nil)
	require.NoError(t, err)

	s.run(JobVehicle)
	s.run(JobDaily)
	assert.Equal(t, int32(1), r.vehicle.Load())
	assert.Equal(t, int32(1), r.daily.Load())
}

func TestStopCancelsRunningJobs(t *testing.T) {
	t.Parallel()
	r := &fakeRunner{block: make(chan struct{})}
	s, err := New(NewDispatcher(r, 0, nil), time.UTC, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.run(JobVehicle)
		close(done)
	}()
	require.Eventually(t, func() bool { return r.vehicle.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Stop(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("running job was not cancelled")
	}
}
