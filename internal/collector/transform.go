package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"proxystats/internal/db"
)

const (
	CarTypeSocial = "social"
	CarTypeBlack  = "black"
)

// ClassifyCarType derives the vehicle type from its seat limit: shared
// "social" vehicles are configured with 10 or 100 seats, everything else is
// a private "black" vehicle.
func ClassifyCarType(maxUsers int) string {
	switch maxUsers {
	case 10, 100:
		return CarTypeSocial
	default:
		return CarTypeBlack
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so errors match the upstream payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRecord unmarshals one upstream object into dst and validates it.
// Unknown fields are ignored. Required fields use pointer types so that a
// legitimate zero can be told apart from an absent field.
func decodeRecord(record string, raw json.RawMessage, dst any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &TransformError{Record: record, Index: -1, Err: errMissing}
	}
	if err := json.Unmarshal(trimmed, dst); err != nil {
		te := &TransformError{Record: record, Index: -1, Err: err}
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			te.Field = ute.Field
		}
		return te
	}
	if err := validate.Struct(dst); err != nil {
		te := &TransformError{Record: record, Index: -1, Err: err}
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			te.Field = ves[0].Field()
			if ves[0].Tag() == "required" {
				te.Err = errMissing
			}
		}
		return te
	}
	return nil
}

type userRecord struct {
	UserID      *string `json:"userId" validate:"required"`
	DisplayName *string `json:"displayName" validate:"required"`
	Count1Hour  *int64  `json:"count1Hour" validate:"required,min=0"`
	Count24Hour *int64  `json:"count24Hour" validate:"required,min=0"`
	Rank1Hour   *int    `json:"rank1Hour" validate:"required"`
	Rank24Hour  *int    `json:"rank24Hour" validate:"required"`
}

// TransformUser maps one element of allUsers to a UserStatDetail row.
func TransformUser(raw json.RawMessage, dataDate string) (db.UserStatDetail, error) {
	var r userRecord
	if err := decodeRecord("user", raw, &r); err != nil {
		return db.UserStatDetail{}, err
	}
	return db.UserStatDetail{
		UserID:      *r.UserID,
		DisplayName: *r.DisplayName,
		Count1h:     *r.Count1Hour,
		Count24h:    *r.Count24Hour,
		Rank1h:      *r.Rank1Hour,
		Rank24h:     *r.Rank24Hour,
		DataDate:    dataDate,
	}, nil
}

type userSummaryRecord struct {
	TotalUsers1Hour  *int64 `json:"totalUsers1Hour" validate:"required,min=0"`
	TotalUsers24Hour *int64 `json:"totalUsers24Hour" validate:"required,min=0"`
	TotalCount1Hour  *int64 `json:"totalCount1Hour" validate:"required,min=0"`
	TotalCount24Hour *int64 `json:"totalCount24Hour" validate:"required,min=0"`
}

// TransformUserSummary maps the user-stats summary object to a UserStatSummary row.
func TransformUserSummary(raw json.RawMessage, dataDate string) (db.UserStatSummary, error) {
	var r userSummaryRecord
	if err := decodeRecord("user summary", raw, &r); err != nil {
		return db.UserStatSummary{}, err
	}
	return db.UserStatSummary{
		TotalUsers1h:  *r.TotalUsers1Hour,
		TotalUsers24h: *r.TotalUsers24Hour,
		TotalCount1h:  *r.TotalCount1Hour,
		TotalCount24h: *r.TotalCount24Hour,
		DataDate:      dataDate,
	}, nil
}

type vehicleRecord struct {
	CarID        *string `json:"carId" validate:"required"`
	CurrentUsers *int    `json:"currentUsers" validate:"required,min=0"`
	MaxUsers     *int    `json:"maxUsers" validate:"required,min=0"`
	Count1Hour   *int64  `json:"count1Hour" validate:"required,min=0"`
	Count24Hour  *int64  `json:"count24Hour" validate:"required,min=0"`
	IsActive     *bool   `json:"isActive" validate:"required"`

	// Private vehicles report neither field.
	UserEmail *string `json:"userEmail"`
	TargetURL *string `json:"targetUrl"`
}

// TransformVehicle maps one element of cars to a VehicleStatDetail row
// stamped with the fetch time.
func TransformVehicle(raw json.RawMessage, recordedAt time.Time) (db.VehicleStatDetail, error) {
	var r vehicleRecord
	if err := decodeRecord("vehicle", raw, &r); err != nil {
		return db.VehicleStatDetail{}, err
	}
	return db.VehicleStatDetail{
		CarID:        *r.CarID,
		CurrentUsers: *r.CurrentUsers,
		MaxUsers:     *r.MaxUsers,
		Count1h:      *r.Count1Hour,
		Count24h:     *r.Count24Hour,
		IsActive:     *r.IsActive,
		CarType:      ClassifyCarType(*r.MaxUsers),
		UserEmail:    r.UserEmail,
		TargetURL:    r.TargetURL,
		RecordedAt:   recordedAt,
	}, nil
}

type vehicleSummaryRecord struct {
	TotalCars        *int64 `json:"totalCars" validate:"required,min=0"`
	ActiveCars       *int64 `json:"activeCars" validate:"required,min=0"`
	TotalUsers       *int64 `json:"totalUsers" validate:"required,min=0"`
	TotalCount1Hour  *int64 `json:"totalCount1Hour" validate:"required,min=0"`
	TotalCount24Hour *int64 `json:"totalCount24Hour" validate:"required,min=0"`
}

// TransformVehicleSummary maps the vehicle-stats summary object to a VehicleStatSummary row.
func TransformVehicleSummary(raw json.RawMessage, dataDate string) (db.VehicleStatSummary, error) {
	var r vehicleSummaryRecord
	if err := decodeRecord("vehicle summary", raw, &r); err != nil {
		return db.VehicleStatSummary{}, err
	}
	return db.VehicleStatSummary{
		TotalCars:     *r.TotalCars,
		ActiveCars:    *r.ActiveCars,
		TotalUsers:    *r.TotalUsers,
		TotalCount1h:  *r.TotalCount1Hour,
		TotalCount24h: *r.TotalCount24Hour,
		DataDate:      dataDate,
	}, nil
}

type hourRecord struct {
	// HourTimestamp is the start of the hour in Unix milliseconds.
	HourTimestamp *int64 `json:"hourTimestamp" validate:"required,min=0"`
	RequestCount  *int64 `json:"requestCount" validate:"required,min=0"`
	UniqueUsers   *int64 `json:"uniqueUsers" validate:"required,min=0"`
}

// TransformHour maps one element of the yesterday series to a SystemStatDetail row.
func TransformHour(raw json.RawMessage, dataDate string) (db.SystemStatDetail, error) {
	var r hourRecord
	if err := decodeRecord("hour", raw, &r); err != nil {
		return db.SystemStatDetail{}, err
	}
	return db.SystemStatDetail{
		HourTimestamp: time.UnixMilli(*r.HourTimestamp).UTC(),
		RequestCount:  *r.RequestCount,
		UniqueUsers:   *r.UniqueUsers,
		DataDate:      dataDate,
	}, nil
}

type systemSummaryRecord struct {
	TodayTotal     *int64 `json:"todayTotal" validate:"required,min=0"`
	TodayUsers     *int64 `json:"todayUsers" validate:"required,min=0"`
	YesterdayTotal *int64 `json:"yesterdayTotal" validate:"required,min=0"`
	YesterdayUsers *int64 `json:"yesterdayUsers" validate:"required,min=0"`
}

// TransformSystemSummary maps the hourly-stats summary object to a SystemStatSummary row.
func TransformSystemSummary(raw json.RawMessage, dataDate string) (db.SystemStatSummary, error) {
	var r systemSummaryRecord
	if err := decodeRecord("system summary", raw, &r); err != nil {
		return db.SystemStatSummary{}, err
	}
	return db.SystemStatSummary{
		TodayTotal:     *r.TodayTotal,
		TodayUsers:     *r.TodayUsers,
		YesterdayTotal: *r.YesterdayTotal,
		YesterdayUsers: *r.YesterdayUsers,
		DataDate:       dataDate,
	}, nil
}
