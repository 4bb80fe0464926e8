// Package collector polls the proxy statistics API and persists normalized
// snapshots. Every task execution appends exactly one collection log row,
// whether it succeeds or fails, and failures are returned to the caller.
package collector

import (
	"context"
	"time"

	"github.com/coder/quartz"

	"proxystats/internal/db"
	"proxystats/internal/source"
)

// Source is the read side of the upstream metrics API.
type Source interface {
	UserStats(ctx context.Context, limit int) (*source.UserStatsResponse, error)
	VehicleStats(ctx context.Context) (*source.VehicleStatsResponse, error)
	HourlyStats(ctx context.Context) (*source.HourlyStatsResponse, error)
}

// Store persists collected rows and collection logs.
type Store interface {
	SaveUserStats(ctx context.Context, details []db.UserStatDetail, summary *db.UserStatSummary) error
	SaveVehicleDetails(ctx context.Context, rows []db.VehicleStatDetail) error
	SaveVehicleSummary(ctx context.Context, summary *db.VehicleStatSummary) error
	SaveSystemStats(ctx context.Context, details []db.SystemStatDetail, summary *db.SystemStatSummary) error
	WriteLog(ctx context.Context, entry *db.CollectionLog) error
}

// Options configures a Collector. Source and Store are required.
type Options struct {
	Source Source
	Store  Store

	// Clock defaults to the real clock.
	Clock quartz.Clock
	// Location is the timezone data dates are computed in. Defaults to UTC.
	Location *time.Location

	// UserPageLimit is passed as the limit of the user-stats request.
	UserPageLimit int

	// Parallel runs the daily tasks concurrently instead of in order.
	Parallel bool

	Metrics *Metrics
}

type Collector struct {
	source   Source
	store    Store
	clock    quartz.Clock
	loc      *time.Location
	limit    int
	parallel bool
	metrics  *Metrics
}

func New(opts Options) *Collector {
	c := &Collector{
		source:   opts.Source,
		store:    opts.Store,
		clock:    opts.Clock,
		loc:      opts.Location,
		limit:    opts.UserPageLimit,
		parallel: opts.Parallel,
		metrics:  opts.Metrics,
	}
	if c.clock == nil {
		c.clock = quartz.NewReal()
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.limit <= 0 {
		c.limit = 10000
	}
	return c
}

// DataDate returns the calendar day before now's date in loc as YYYY-MM-DD.
// The source publishes a day's totals once that day has completed, so the
// daily tasks always describe yesterday.
func DataDate(now time.Time, loc *time.Location) string {
	y, m, d := now.In(loc).Date()
	// Noon avoids DST transitions moving the result across a day boundary.
	return time.Date(y, m, d-1, 12, 0, 0, 0, loc).Format("2006-01-02")
}

// DataDate returns the data date for a daily task started now.
func (c *Collector) DataDate() string {
	return DataDate(c.clock.Now(), c.loc)
}
