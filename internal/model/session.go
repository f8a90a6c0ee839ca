package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GpsPoint is one accumulated waypoint. The update path appends only
// latitude/longitude; speed and timestamp stay empty there (the persisted
// shape allows them for clients that supply full waypoints).
type GpsPoint struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Speed     *float64   `json:"speed,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// GpsHistory is a JSONB-backed ordered waypoint list.
type GpsHistory []GpsPoint

func (h GpsHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

func (h *GpsHistory) Scan(src any) error {
	return scanJSON(src, h)
}

// AlertTimes is a JSONB-backed ordered list of alert timestamps.
type AlertTimes []time.Time

func (a AlertTimes) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *AlertTimes) Scan(src any) error {
	return scanJSON(src, a)
}

func scanJSON(src, dest any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// Session is one real-world driving session. EndTime is null while active;
// at most one session per user is active at a time.
type Session struct {
	ID              string        `db:"id" json:"id"`
	UserID          string        `db:"user_id" json:"userId"`
	SessionToken    string        `db:"session_token" json:"sessionToken"`
	StartTime       time.Time     `db:"start_time" json:"startTime"`
	EndTime         *time.Time    `db:"end_time" json:"endTime,omitempty"`
	DurationSeconds float64       `db:"duration_seconds" json:"duration"`
	AvgEar          float64       `db:"avg_ear" json:"avgEar"`
	AvgMar          float64       `db:"avg_mar" json:"avgMar"`
	MaxScore        float64       `db:"max_score" json:"maxScore"`
	DrowsyCount     int           `db:"drowsy_count" json:"drowsyCount"`
	Status          SessionStatus `db:"status" json:"status"`
	UpdatesCount    int           `db:"updates_count" json:"updatesCount"`
	Alerts          AlertTimes    `db:"alerts" json:"alerts"`
	GpsHistory      GpsHistory    `db:"gps_history" json:"gpsHistory"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

func (s *Session) Ended() bool {
	return s.EndTime != nil
}

type CreateSessionParams struct {
	UserID       string
	SessionToken string
}

// UpdateSessionParams carries one incremental metrics update. Nil fields
// were absent from the request.
type UpdateSessionParams struct {
	Latitude  *float64
	Longitude *float64
	Ear       *float64
	Mar       *float64
	Alert     bool
}

// SessionSummary is the caller-supplied final report applied on stop.
// Absent fields overwrite the running values with zero.
type SessionSummary struct {
	Duration    float64 `json:"duration"`
	AvgEar      float64 `json:"avgEar"`
	AvgMar      float64 `json:"avgMar"`
	DrowsyCount int     `json:"drowsyCount"`
	MaxScore    float64 `json:"maxScore"`
}
