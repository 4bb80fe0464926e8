package collector

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DailyResult is the outcome of one daily batch. A nil task result means
// that task failed; its error is in Errors.
type DailyResult struct {
	User           *TaskResult `json:"user"`
	VehicleSummary *TaskResult `json:"vehicleSummary"`
	System         *TaskResult `json:"system"`
	Errors         []string    `json:"errors"`
	Succeeded      int         `json:"succeeded"`
	Total          int         `json:"total"`
}

type dailyStep struct {
	task TaskType
	run  func(context.Context) (*TaskResult, error)
	out  **TaskResult
}

// CollectDaily runs the user, vehicle-summary and system tasks. A failing
// task never stops the others: its error message is appended to Errors and
// its result stays nil. CollectDaily itself does not fail.
func (c *Collector) CollectDaily(ctx context.Context) DailyResult {
	var res DailyResult
	steps := []dailyStep{
		{task: TaskUser, run: c.CollectUserStats, out: &res.User},
		{task: TaskVehicleSummary, run: c.CollectVehicleSummary, out: &res.VehicleSummary},
		{task: TaskSystem, run: c.CollectSystemStats, out: &res.System},
	}

	start := c.clock.Now()
	errs := make([]error, len(steps))
	if c.parallel {
		var g errgroup.Group
		var mu sync.Mutex
		for i, s := range steps {
			g.Go(func() error {
				r, err := s.run(ctx)
				mu.Lock()
				defer mu.Unlock()
				*s.out, errs[i] = r, err
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, s := range steps {
			*s.out, errs[i] = s.run(ctx)
		}
	}

	res.Errors = []string{}
	for i, err := range errs {
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", steps[i].task, err))
			continue
		}
		res.Succeeded++
	}
	res.Total = len(steps)

	ev := log.Info()
	if len(res.Errors) > 0 {
		ev = log.Warn().Strs("errors", res.Errors)
	}
	ev.Int("succeeded", res.Succeeded).
		Int("total", res.Total).
		Int64("duration_ms", c.clock.Since(start).Milliseconds()).
		Msg("daily collection finished")
	return res
}
