package db

import (
	"time"

	"gorm.io/datatypes"
)

// UserStatDetail is one user's request counts for a data date.
type UserStatDetail struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID      string `gorm:"size:128;index;not null" json:"userId"`
	DisplayName string `gorm:"size:255" json:"displayName"`
	Count1h     int64  `gorm:"column:count_1h;not null" json:"count1h"`
	Count24h    int64  `gorm:"column:count_24h;not null" json:"count24h"`
	Rank1h      int    `gorm:"column:rank_1h;not null" json:"rank1h"`
	Rank24h     int    `gorm:"column:rank_24h;not null" json:"rank24h"`

	// DataDate is the completed day (YYYY-MM-DD) the counts describe.
	DataDate string `gorm:"size:10;index;not null" json:"dataDate"`

	CreatedAt time.Time `json:"createdAt"`
}

// UserStatSummary aggregates user activity for a data date.
type UserStatSummary struct {
	ID uint `gorm:"primaryKey" json:"id"`

	TotalUsers1h  int64 `gorm:"column:total_users_1h;not null" json:"totalUsers1h"`
	TotalUsers24h int64 `gorm:"column:total_users_24h;not null" json:"totalUsers24h"`
	TotalCount1h  int64 `gorm:"column:total_count_1h;not null" json:"totalCount1h"`
	TotalCount24h int64 `gorm:"column:total_count_24h;not null" json:"totalCount24h"`

	DataDate  string    `gorm:"size:10;index;not null" json:"dataDate"`
	CreatedAt time.Time `json:"createdAt"`
}

// VehicleStatDetail is the state of one vehicle (shared proxy session) at
// fetch time. It is keyed by the raw fetch timestamp rather than a data date
// because it is sampled intraday.
type VehicleStatDetail struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CarID        string `gorm:"size:128;index;not null" json:"carId"`
	CurrentUsers int    `gorm:"not null" json:"currentUsers"`
	MaxUsers     int    `gorm:"not null" json:"maxUsers"`
	Count1h      int64  `gorm:"column:count_1h;not null" json:"count1h"`
	Count24h     int64  `gorm:"column:count_24h;not null" json:"count24h"`
	IsActive     bool   `gorm:"not null" json:"isActive"`

	// CarType is derived from MaxUsers when the row is written and never recomputed.
	CarType string `gorm:"size:16;index;not null" json:"carType"`

	UserEmail *string `gorm:"size:255" json:"userEmail"`
	TargetURL *string `gorm:"column:target_url;size:1024" json:"targetUrl"`

	RecordedAt time.Time `gorm:"index;not null" json:"recordedAt"`
}

// VehicleStatSummary aggregates vehicle metrics for a data date.
type VehicleStatSummary struct {
	ID uint `gorm:"primaryKey" json:"id"`

	TotalCars     int64 `gorm:"not null" json:"totalCars"`
	ActiveCars    int64 `gorm:"not null" json:"activeCars"`
	TotalUsers    int64 `gorm:"not null" json:"totalUsers"`
	TotalCount1h  int64 `gorm:"column:total_count_1h;not null" json:"totalCount1h"`
	TotalCount24h int64 `gorm:"column:total_count_24h;not null" json:"totalCount24h"`

	DataDate  string    `gorm:"size:10;index;not null" json:"dataDate"`
	CreatedAt time.Time `json:"createdAt"`
}

// SystemStatDetail is one hour of request volume within a data date.
type SystemStatDetail struct {
	ID uint `gorm:"primaryKey" json:"id"`

	HourTimestamp time.Time `gorm:"index;not null" json:"hourTimestamp"` // start of the hour (UTC)
	RequestCount  int64     `gorm:"not null" json:"requestCount"`
	UniqueUsers   int64     `gorm:"not null" json:"uniqueUsers"`

	DataDate  string    `gorm:"size:10;index;not null" json:"dataDate"`
	CreatedAt time.Time `json:"createdAt"`
}

// SystemStatSummary holds the day-over-day totals reported with the hourly series.
type SystemStatSummary struct {
	ID uint `gorm:"primaryKey" json:"id"`

	TodayTotal     int64 `gorm:"not null" json:"todayTotal"`
	TodayUsers     int64 `gorm:"not null" json:"todayUsers"`
	YesterdayTotal int64 `gorm:"not null" json:"yesterdayTotal"`
	YesterdayUsers int64 `gorm:"not null" json:"yesterdayUsers"`

	DataDate  string    `gorm:"size:10;index;not null" json:"dataDate"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
)

// CollectionLog is the append-only outcome record of one task execution.
type CollectionLog struct {
	ID uint `gorm:"primaryKey" json:"id"`

	TaskType string `gorm:"size:32;index;not null" json:"taskType"`
	Status   string `gorm:"size:16;index;not null" json:"status"`

	// RecordsCount is nil for failed runs.
	RecordsCount *int    `json:"recordsCount"`
	ErrorMessage *string `gorm:"type:text" json:"errorMessage"`

	ExecutionTimeMs int64 `gorm:"not null" json:"executionTimeMs"`

	// Details carries run metadata (run id, data date, endpoint) for operators.
	Details datatypes.JSONMap `gorm:"type:json" json:"details,omitempty"`

	RecordedAt time.Time `gorm:"index;not null" json:"recordedAt"`
}

// AllModels lists every table managed by AutoMigrate.
func AllModels() []any {
	return []any{
		&UserStatDetail{}, &UserStatSummary{},
		&VehicleStatDetail{}, &VehicleStatSummary{},
		&SystemStatDetail{}, &SystemStatSummary{},
		&CollectionLog{},
	}
}
