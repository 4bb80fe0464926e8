package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"proxystats/internal/collector"
	dbpkg "proxystats/internal/db"
	httpctx "proxystats/internal/http/ctx"
)

const (
	defaultTrendDays = 7
	maxTrendDays     = 365
	defaultRankLimit = 20
	maxRankLimit     = 1000
	defaultLogLimit  = 50
	maxLogLimit      = 500
	defaultHours     = 24
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// sinceDate returns the first data date of a trend window ending yesterday.
func sinceDate(ctx *fasthttp.RequestCtx, loc *time.Location) (string, bool) {
	days, ok := intArg(ctx, "days", defaultTrendDays, maxTrendDays)
	if !ok {
		return "", false
	}
	y, m, d := nowFunc().In(loc).Date()
	return time.Date(y, m, d-days, 12, 0, 0, 0, loc).Format("2006-01-02"), true
}

func queryFailed(ctx *fasthttp.RequestCtx, err error) {
	httpctx.Logger(ctx).Error().Err(err).Bytes("path", ctx.Path()).Msg("stats query failed")
	errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query stats")
}

// UserTrend serves the daily user summaries of the last N days.
func UserTrend(db *gorm.DB, loc *time.Location) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		since, ok := sinceDate(ctx, loc)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "days must be a positive integer")
			return
		}
		rows, err := dbpkg.UserTrend(db, since)
		if err != nil {
			queryFailed(ctx, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"since": since, "series": rows})
	}
}

// UserRanking serves the top users of one data date, the latest by default.
func UserRanking(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		date, ok := dateArg(ctx, "date")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		window := string(ctx.QueryArgs().Peek("window"))
		switch window {
		case "":
			window = "24h"
		case "1h", "24h":
		default:
			errResponse(ctx, fasthttp.StatusBadRequest, `window must be "1h" or "24h"`)
			return
		}
		limit, ok := intArg(ctx, "limit", defaultRankLimit, maxRankLimit)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "limit must be a positive integer")
			return
		}

		if date == "" {
			latest, err := dbpkg.LatestUserDate(db)
			if err != nil {
				queryFailed(ctx, err)
				return
			}
			date = latest
		}

		users := []dbpkg.UserStatDetail{}
		if date != "" {
			var err error
			if users, err = dbpkg.UserRanking(db, date, window, limit); err != nil {
				queryFailed(ctx, err)
				return
			}
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"date": date, "window": window, "users": users})
	}
}

// VehicleTrend serves the daily vehicle summaries of the last N days.
func VehicleTrend(db *gorm.DB, loc *time.Location) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		since, ok := sinceDate(ctx, loc)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "days must be a positive integer")
			return
		}
		rows, err := dbpkg.VehicleTrend(db, since)
		if err != nil {
			queryFailed(ctx, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"since": since, "series": rows})
	}
}

// VehicleDistribution serves the car-type split of the latest snapshot.
func VehicleDistribution(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		cutoff, ok := parseHours(ctx, nowFunc(), defaultHours)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "hours must be a positive number")
			return
		}
		dist, at, err := dbpkg.CarTypeDistribution(db, cutoff)
		if err != nil {
			queryFailed(ctx, err)
			return
		}
		if dist == nil {
			dist = []dbpkg.CarTypeCount{}
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"recordedAt": at, "distribution": dist})
	}
}

// VehicleActivity serves hourly peaks of active vehicles and seated users.
func VehicleActivity(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		cutoff, ok := parseHours(ctx, nowFunc(), defaultHours)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "hours must be a positive number")
			return
		}
		buckets, err := dbpkg.VehicleActivity(db, cutoff)
		if err != nil {
			queryFailed(ctx, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"since": cutoff.UTC(), "buckets": buckets})
	}
}

// SystemHourly serves the hourly request volume of one data date,
// yesterday by default.
func SystemHourly(db *gorm.DB, loc *time.Location) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		date, ok := dateArg(ctx, "date")
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		if date == "" {
			date = collector.DataDate(nowFunc(), loc)
		}
		hours, summary, err := dbpkg.SystemHourly(db, date)
		if err != nil {
			queryFailed(ctx, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"date": date, "hours": hours, "summary": summary})
	}
}

// CollectionLogs serves recent collection log rows, newest first.
func CollectionLogs(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit, ok := intArg(ctx, "limit", defaultLogLimit, maxLogLimit)
		if !ok {
			errResponse(ctx, fasthttp.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter := dbpkg.LogFilter{
			TaskType: string(ctx.QueryArgs().Peek("task")),
			Status:   string(ctx.QueryArgs().Peek("status")),
			Limit:    limit,
		}
		switch collector.TaskType(filter.TaskType) {
		case "", collector.TaskUser, collector.TaskVehicleDetail, collector.TaskVehicleSummary, collector.TaskSystem:
		default:
			errResponse(ctx, fasthttp.StatusBadRequest, "unknown task")
			return
		}
		switch filter.Status {
		case "", dbpkg.LogStatusSuccess, dbpkg.LogStatusError:
		default:
			errResponse(ctx, fasthttp.StatusBadRequest, `status must be "success" or "error"`)
			return
		}
		if v := ctx.QueryArgs().Peek("offset"); len(v) > 0 {
			n, err := ctx.QueryArgs().GetUint("offset")
			if err != nil {
				errResponse(ctx, fasthttp.StatusBadRequest, "offset must be a non-negative integer")
				return
			}
			filter.Offset = n
		}

		rows, total, err := dbpkg.RecentLogs(db, filter)
		if err != nil {
			queryFailed(ctx, err)
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"logs": rows, "total": total})
	}
}
