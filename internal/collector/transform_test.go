package collector

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCarType(t *testing.T) {
	t.Parallel()

	for _, n := range []int{10, 100} {
		assert.Equal(t, CarTypeSocial, ClassifyCarType(n), "maxUsers=%d", n)
	}
	for _, n := range []int{0, 1, 4, 9, 11, 50, 99, 101, 1000} {
		assert.Equal(t, CarTypeBlack, ClassifyCarType(n), "maxUsers=%d", n)
	}
	for n := 0; n <= 200; n++ {
		assert.Equal(t, ClassifyCarType(n), ClassifyCarType(n))
	}
}

func TestDataDate(t *testing.T) {
	t.Parallel()

	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		loc  *time.Location
		want string
	}{
		{"just after midnight", time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC), time.UTC, "2024-03-14"},
		{"late evening", time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC), time.UTC, "2024-03-14"},
		{"month boundary", time.Date(2024, 3, 1, 0, 5, 0, 0, time.UTC), time.UTC, "2024-02-29"},
		{"year boundary", time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC), time.UTC, "2024-12-31"},
		// 16:05 UTC on the 14th is already 00:05 on the 15th in Shanghai.
		{"converted to location", time.Date(2024, 3, 14, 16, 5, 0, 0, time.UTC), shanghai, "2024-03-14"},
		{"day after DST change", time.Date(2024, 3, 11, 0, 30, 0, 0, newYork), newYork, "2024-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DataDate(tt.now, tt.loc))
		})
	}
}

func TestTransformUser(t *testing.T) {
	t.Parallel()

	row, err := TransformUser(json.RawMessage(`{
		"userId": "u1", "displayName": "Alice",
		"count1Hour": 5, "count24Hour": 40, "rank1Hour": 2, "rank24Hour": 1,
		"avatar": "ignored"
	}`), "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, "u1", row.UserID)
	assert.Equal(t, "Alice", row.DisplayName)
	assert.Equal(t, int64(5), row.Count1h)
	assert.Equal(t, int64(40), row.Count24h)
	assert.Equal(t, 2, row.Rank1h)
	assert.Equal(t, 1, row.Rank24h)
	assert.Equal(t, "2024-03-14", row.DataDate)
}

func TestTransformUserZeroCountsAreValid(t *testing.T) {
	t.Parallel()

	row, err := TransformUser(json.RawMessage(`{
		"userId": "u2", "displayName": "",
		"count1Hour": 0, "count24Hour": 0, "rank1Hour": 0, "rank24Hour": 0
	}`), "2024-03-14")
	require.NoError(t, err)
	assert.Zero(t, row.Count1h)
	assert.Empty(t, row.DisplayName)
}

func TestTransformRejectsBadRecords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		transform func(json.RawMessage) error
		wantField string
	}{
		{
			name:      "user missing userId",
			raw:       `{"displayName":"A","count1Hour":1,"count24Hour":1,"rank1Hour":1,"rank24Hour":1}`,
			transform: func(r json.RawMessage) error { _, err := TransformUser(r, "d"); return err },
			wantField: "userId",
		},
		{
			name:      "user count as string",
			raw:       `{"userId":"u","displayName":"A","count1Hour":"1","count24Hour":1,"rank1Hour":1,"rank24Hour":1}`,
			transform: func(r json.RawMessage) error { _, err := TransformUser(r, "d"); return err },
			wantField: "count1Hour",
		},
		{
			name:      "user explicit null",
			raw:       `{"userId":null,"displayName":"A","count1Hour":1,"count24Hour":1,"rank1Hour":1,"rank24Hour":1}`,
			transform: func(r json.RawMessage) error { _, err := TransformUser(r, "d"); return err },
			wantField: "userId",
		},
		{
			name:      "vehicle missing isActive",
			raw:       `{"carId":"c","currentUsers":1,"maxUsers":4,"count1Hour":1,"count24Hour":1}`,
			transform: func(r json.RawMessage) error { _, err := TransformVehicle(r, time.Now()); return err },
			wantField: "isActive",
		},
		{
			name:      "vehicle negative seats",
			raw:       `{"carId":"c","currentUsers":1,"maxUsers":-4,"count1Hour":1,"count24Hour":1,"isActive":true}`,
			transform: func(r json.RawMessage) error { _, err := TransformVehicle(r, time.Now()); return err },
			wantField: "maxUsers",
		},
		{
			name:      "hour timestamp as string",
			raw:       `{"hourTimestamp":"2024-03-14T00:00:00Z","requestCount":1,"uniqueUsers":1}`,
			transform: func(r json.RawMessage) error { _, err := TransformHour(r, "d"); return err },
			wantField: "hourTimestamp",
		},
		{
			name:      "system summary missing",
			raw:       `null`,
			transform: func(r json.RawMessage) error { _, err := TransformSystemSummary(r, "d"); return err },
		},
		{
			name:      "vehicle summary absent",
			raw:       ``,
			transform: func(r json.RawMessage) error { _, err := TransformVehicleSummary(r, "d"); return err },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.transform(json.RawMessage(tt.raw))
			var te *TransformError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.wantField, te.Field)
		})
	}
}

func TestTransformVehicleOptionalFields(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	private, err := TransformVehicle(json.RawMessage(`{
		"carId":"c1","currentUsers":2,"maxUsers":4,"count1Hour":3,"count24Hour":9,"isActive":false
	}`), at)
	require.NoError(t, err)
	assert.Nil(t, private.UserEmail)
	assert.Nil(t, private.TargetURL)
	assert.False(t, private.IsActive)
	assert.Equal(t, CarTypeBlack, private.CarType)
	assert.Equal(t, at, private.RecordedAt)

	shared, err := TransformVehicle(json.RawMessage(`{
		"carId":"c2","currentUsers":37,"maxUsers":100,"count1Hour":3,"count24Hour":9,"isActive":true,
		"userEmail":"owner@example.com","targetUrl":"https://example.com"
	}`), at)
	require.NoError(t, err)
	require.NotNil(t, shared.UserEmail)
	assert.Equal(t, "owner@example.com", *shared.UserEmail)
	require.NotNil(t, shared.TargetURL)
	assert.Equal(t, CarTypeSocial, shared.CarType)
}

func TestTransformHour(t *testing.T) {
	t.Parallel()

	hour := time.Date(2024, 3, 14, 7, 0, 0, 0, time.UTC)
	row, err := TransformHour(json.RawMessage(`{"hourTimestamp":`+itoa(hour.UnixMilli())+`,"requestCount":120,"uniqueUsers":8}`), "2024-03-14")
	require.NoError(t, err)
	assert.True(t, hour.Equal(row.HourTimestamp))
	assert.Equal(t, int64(120), row.RequestCount)
	assert.Equal(t, int64(8), row.UniqueUsers)
}

func TestTransformErrorMessage(t *testing.T) {
	t.Parallel()

	err := withIndex(&TransformError{Record: "user", Index: -1, Field: "userId", Err: errMissing}, 3)
	assert.EqualError(t, err, "transform user[3]: field userId: required field is missing")
}
