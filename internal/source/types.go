package source

import "encoding/json"

// The response envelopes keep list elements and summaries raw so that each
// record can be validated on its own by the collector's transformers.

// UserStatsResponse is the body of GET /user-stats.
type UserStatsResponse struct {
	AllUsers []json.RawMessage `json:"allUsers"`
	Summary  json.RawMessage   `json:"summary"`
}

// VehicleStatsResponse is the body of GET /vehicle-stats.
type VehicleStatsResponse struct {
	Cars    []json.RawMessage `json:"cars"`
	Summary json.RawMessage   `json:"summary"`
}

// HourlyStatsResponse is the body of GET /hourly-stats. Only the completed
// "yesterday" series is persisted; "today" is still filling up.
type HourlyStatsResponse struct {
	Yesterday []json.RawMessage `json:"yesterday"`
	Today     []json.RawMessage `json:"today"`
	Summary   json.RawMessage   `json:"summary"`
}
