package db

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"
)

// UserTrend returns the daily user summaries with DataDate >= since, oldest first.
func UserTrend(db *gorm.DB, since string) ([]UserStatSummary, error) {
	var rows []UserStatSummary
	err := db.Where("data_date >= ?", since).Order("data_date, id").Find(&rows).Error
	return rows, err
}

// VehicleTrend returns the daily vehicle summaries with DataDate >= since, oldest first.
func VehicleTrend(db *gorm.DB, since string) ([]VehicleStatSummary, error) {
	var rows []VehicleStatSummary
	err := db.Where("data_date >= ?", since).Order("data_date, id").Find(&rows).Error
	return rows, err
}

// LatestUserDate returns the most recent DataDate with user detail rows, or
// "" when nothing has been collected yet.
func LatestUserDate(db *gorm.DB) (string, error) {
	var row UserStatDetail
	err := db.Select("data_date").Order("data_date DESC").Limit(1).Find(&row).Error
	return row.DataDate, err
}

// UserRanking returns the top users of a data date ordered by the 1h or 24h count.
func UserRanking(db *gorm.DB, date string, window string, limit int) ([]UserStatDetail, error) {
	order := "count_24h DESC, user_id"
	if window == "1h" {
		order = "count_1h DESC, user_id"
	}
	var rows []UserStatDetail
	err := db.Where("data_date = ?", date).Order(order).Limit(limit).Find(&rows).Error
	return rows, err
}

// CarTypeCount is one slice of the car-type distribution chart.
type CarTypeCount struct {
	CarType      string `json:"carType"`
	Cars         int    `json:"cars"`
	ActiveCars   int    `json:"activeCars"`
	CurrentUsers int    `json:"currentUsers"`
}

// CarTypeDistribution groups the most recent vehicle snapshot taken at or
// after since by car type. It returns nil when no snapshot is in range.
func CarTypeDistribution(db *gorm.DB, since time.Time) ([]CarTypeCount, *time.Time, error) {
	var latest VehicleStatDetail
	err := db.Where("recorded_at >= ?", since).Order("recorded_at DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var rows []VehicleStatDetail
	if err := db.Where("recorded_at >= ?", latest.RecordedAt).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	byType := make(map[string]*CarTypeCount)
	for _, r := range rows {
		c, ok := byType[r.CarType]
		if !ok {
			c = &CarTypeCount{CarType: r.CarType}
			byType[r.CarType] = c
		}
		c.Cars++
		if r.IsActive {
			c.ActiveCars++
		}
		c.CurrentUsers += r.CurrentUsers
	}

	out := make([]CarTypeCount, 0, len(byType))
	for _, c := range byType {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CarType < out[j].CarType })
	at := latest.RecordedAt
	return out, &at, nil
}

// ActivityBucket is the peak vehicle activity observed within one hour.
type ActivityBucket struct {
	BucketStart time.Time `json:"bucketStart"`
	Samples     int       `json:"samples"`
	ActiveCars  int       `json:"activeCars"`
	PeakUsers   int       `json:"peakUsers"`
}

// VehicleActivity folds the vehicle snapshots recorded since the cutoff
// into hourly buckets (UTC). Each bucket reports the busiest snapshot in it.
// Grouping happens in Go so the query works on every backend.
func VehicleActivity(db *gorm.DB, since time.Time) ([]ActivityBucket, error) {
	var rows []VehicleStatDetail
	if err := db.Where("recorded_at >= ?", since).
		Select("recorded_at", "is_active", "current_users").
		Order("recorded_at").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	type snapshot struct {
		active int
		users  int
	}
	snapshots := make(map[int64]*snapshot)
	for _, r := range rows {
		k := r.RecordedAt.UnixNano()
		s, ok := snapshots[k]
		if !ok {
			s = &snapshot{}
			snapshots[k] = s
		}
		if r.IsActive {
			s.active++
		}
		s.users += r.CurrentUsers
	}

	buckets := make(map[time.Time]*ActivityBucket)
	for k, s := range snapshots {
		start := time.Unix(0, k).UTC().Truncate(time.Hour)
		b, ok := buckets[start]
		if !ok {
			b = &ActivityBucket{BucketStart: start}
			buckets[start] = b
		}
		b.Samples++
		if s.active > b.ActiveCars {
			b.ActiveCars = s.active
		}
		if s.users > b.PeakUsers {
			b.PeakUsers = s.users
		}
	}

	out := make([]ActivityBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart.Before(out[j].BucketStart) })
	return out, nil
}

// SystemHourly returns the hourly rows of a data date and its latest summary, if any.
func SystemHourly(db *gorm.DB, date string) ([]SystemStatDetail, *SystemStatSummary, error) {
	var rows []SystemStatDetail
	if err := db.Where("data_date = ?", date).Order("hour_timestamp").Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var summary SystemStatSummary
	err := db.Where("data_date = ?", date).Order("id DESC").First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rows, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return rows, &summary, nil
}

// LogFilter narrows RecentLogs. Empty fields match everything.
type LogFilter struct {
	TaskType string
	Status   string
	Limit    int
	Offset   int
}

// RecentLogs returns collection log rows newest first and the total matching count.
func RecentLogs(db *gorm.DB, f LogFilter) ([]CollectionLog, int64, error) {
	filtered := func() *gorm.DB {
		q := db.Model(&CollectionLog{})
		if f.TaskType != "" {
			q = q.Where("task_type = ?", f.TaskType)
		}
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []CollectionLog
	if err := filtered().Order("recorded_at DESC, id DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
