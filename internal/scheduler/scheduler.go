// Package scheduler fires the collection jobs on their cron cadences.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// Scheduler owns one cron entry per job. Overlapping runs of the same entry
// are skipped.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *Dispatcher

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers a cron entry for every job in specs. Specs use the standard
// five-field syntax and are evaluated in loc.
func New(d *Dispatcher, loc *time.Location, specs map[Job]string) (*Scheduler, error) {
	logger := cronLogger{l: log.With().Str("component", "scheduler").Logger()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, dispatcher: d, ctx: ctx, cancel: cancel}

	for job, spec := range specs {
		if _, err := ParseJob(string(job)); err != nil {
			cancel()
			return nil, err
		}
		if _, err := c.AddFunc(spec, func() { s.run(job) }); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s %q: %w", job, spec, err)
		}
		log.Info().Str("job", string(job)).Str("schedule", spec).Str("tz", loc.String()).Msg("job scheduled")
	}
	return s, nil
}

// run is the cron callback. Errors end here, so they are logged at error level.
func (s *Scheduler) run(job Job) {
	res, err := s.dispatcher.Dispatch(s.ctx, string(job))
	if err != nil {
		log.Error().Err(err).Str("job", string(job)).Msg("scheduled job failed")
		return
	}
	if res.Daily != nil && len(res.Daily.Errors) > 0 {
		log.Warn().Str("job", string(job)).Strs("errors", res.Daily.Errors).Msg("scheduled job finished with errors")
	}
}

// Start begins firing entries in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs. If ctx expires first
// the running jobs are cancelled and Stop still waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("cancelling running jobs")
		s.cancel()
		<-done.Done()
	}
	s.cancel()
}
