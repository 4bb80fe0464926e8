package collector

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"

	"proxystats/internal/db"
	"proxystats/internal/source"
)

// TaskType identifies a collection task in logs, metrics and collection_logs.
type TaskType string

const (
	TaskUser           TaskType = "user_stats"
	TaskVehicleDetail  TaskType = "vehicle_detail"
	TaskVehicleSummary TaskType = "vehicle_summary"
	TaskSystem         TaskType = "system_stats"
)

// TaskResult is returned by a successful task.
type TaskResult struct {
	Success      bool   `json:"success"`
	RecordsCount int    `json:"recordsCount"`
	DataDate     string `json:"dataDate,omitempty"`
}

// run executes fn and appends exactly one collection log row describing
// the outcome. The error from fn is always returned unchanged.
func (c *Collector) run(ctx context.Context, task TaskType, dataDate string, details datatypes.JSONMap, fn func(ctx context.Context) (int, error)) (*TaskResult, error) {
	runID := uuid.NewString()
	logger := log.With().Str("task", string(task)).Str("run_id", runID).Str("data_date", dataDate).Logger()
	logger.Info().Msg("collection task started")

	start := c.clock.Now()
	records, err := fn(ctx)
	elapsed := c.clock.Since(start)

	if details == nil {
		details = datatypes.JSONMap{}
	}
	details["runId"] = runID
	if dataDate != "" {
		details["dataDate"] = dataDate
	}

	entry := &db.CollectionLog{
		TaskType:        string(task),
		ExecutionTimeMs: elapsed.Milliseconds(),
		Details:         details,
		RecordedAt:      c.clock.Now(),
	}
	if err != nil {
		msg := err.Error()
		entry.Status = db.LogStatusError
		entry.ErrorMessage = &msg
	} else {
		entry.Status = db.LogStatusSuccess
		entry.RecordsCount = &records
	}

	// The log row must be written even when ctx is already cancelled.
	if lerr := c.store.WriteLog(context.WithoutCancel(ctx), entry); lerr != nil {
		logger.Error().Err(lerr).Str("status", entry.Status).Msg("failed to write collection log")
	}
	c.metrics.observeTask(task, entry.Status, elapsed, records)

	if err != nil {
		logger.Error().Err(err).Int64("duration_ms", entry.ExecutionTimeMs).Msg("collection task failed")
		return nil, err
	}
	logger.Info().Int("records", records).Int64("duration_ms", entry.ExecutionTimeMs).Msg("collection task finished")
	return &TaskResult{Success: true, RecordsCount: records, DataDate: dataDate}, nil
}

// transformFailure turns an undecodable body into a TransformError so that
// callers see one error kind for malformed payloads.
func transformFailure(record string, err error) error {
	var de *source.DecodeError
	if errors.As(err, &de) {
		return &TransformError{Record: record, Index: -1, Err: err}
	}
	return err
}

func missing(record, field string) error {
	return &TransformError{Record: record, Index: -1, Field: field, Err: errMissing}
}

// CollectUserStats stores yesterday's per-user counts and their summary.
func (c *Collector) CollectUserStats(ctx context.Context) (*TaskResult, error) {
	date := c.DataDate()
	details := datatypes.JSONMap{"endpoint": source.EndpointUserStats, "limit": c.limit}
	return c.run(ctx, TaskUser, date, details, func(ctx context.Context) (int, error) {
		resp, err := c.source.UserStats(ctx, c.limit)
		if err != nil {
			return 0, transformFailure("user stats", err)
		}
		if resp.AllUsers == nil {
			return 0, missing("user stats", "allUsers")
		}

		rows := make([]db.UserStatDetail, 0, len(resp.AllUsers))
		for i, raw := range resp.AllUsers {
			row, err := TransformUser(raw, date)
			if err != nil {
				return 0, withIndex(err, i)
			}
			rows = append(rows, row)
		}
		summary, err := TransformUserSummary(resp.Summary, date)
		if err != nil {
			return 0, err
		}

		if err := c.store.SaveUserStats(ctx, rows, &summary); err != nil {
			return 0, &PersistenceError{Op: "save user stats", Err: err}
		}
		return len(rows), nil
	})
}

// CollectVehicleDetails stores one snapshot row per vehicle, stamped with
// the fetch time. It runs intraday and has no data date.
func (c *Collector) CollectVehicleDetails(ctx context.Context) (*TaskResult, error) {
	details := datatypes.JSONMap{"endpoint": source.EndpointVehicleStats}
	return c.run(ctx, TaskVehicleDetail, "", details, func(ctx context.Context) (int, error) {
		resp, err := c.source.VehicleStats(ctx)
		if err != nil {
			return 0, transformFailure("vehicle stats", err)
		}
		if resp.Cars == nil {
			return 0, missing("vehicle stats", "cars")
		}

		recordedAt := c.clock.Now()
		rows := make([]db.VehicleStatDetail, 0, len(resp.Cars))
		for i, raw := range resp.Cars {
			row, err := TransformVehicle(raw, recordedAt)
			if err != nil {
				return 0, withIndex(err, i)
			}
			rows = append(rows, row)
		}

		if err := c.store.SaveVehicleDetails(ctx, rows); err != nil {
			return 0, &PersistenceError{Op: "save vehicle details", Err: err}
		}
		return len(rows), nil
	})
}

// CollectVehicleSummary stores only the aggregate of the vehicle snapshot
// under yesterday's data date.
func (c *Collector) CollectVehicleSummary(ctx context.Context) (*TaskResult, error) {
	date := c.DataDate()
	details := datatypes.JSONMap{"endpoint": source.EndpointVehicleStats}
	return c.run(ctx, TaskVehicleSummary, date, details, func(ctx context.Context) (int, error) {
		resp, err := c.source.VehicleStats(ctx)
		if err != nil {
			return 0, transformFailure("vehicle stats", err)
		}
		summary, err := TransformVehicleSummary(resp.Summary, date)
		if err != nil {
			return 0, err
		}
		if err := c.store.SaveVehicleSummary(ctx, &summary); err != nil {
			return 0, &PersistenceError{Op: "save vehicle summary", Err: err}
		}
		return 1, nil
	})
}

// CollectSystemStats stores yesterday's hourly request volume and the
// day-over-day summary.
func (c *Collector) CollectSystemStats(ctx context.Context) (*TaskResult, error) {
	date := c.DataDate()
	details := datatypes.JSONMap{"endpoint": source.EndpointHourlyStats}
	return c.run(ctx, TaskSystem, date, details, func(ctx context.Context) (int, error) {
		resp, err := c.source.HourlyStats(ctx)
		if err != nil {
			return 0, transformFailure("hourly stats", err)
		}
		if resp.Yesterday == nil {
			return 0, missing("hourly stats", "yesterday")
		}

		rows := make([]db.SystemStatDetail, 0, len(resp.Yesterday))
		for i, raw := range resp.Yesterday {
			row, err := TransformHour(raw, date)
			if err != nil {
				return 0, withIndex(err, i)
			}
			rows = append(rows, row)
		}
		summary, err := TransformSystemSummary(resp.Summary, date)
		if err != nil {
			return 0, err
		}

		if err := c.store.SaveSystemStats(ctx, rows, &summary); err != nil {
			return 0, &PersistenceError{Op: "save system stats", Err: err}
		}
		return len(rows), nil
	})
}
