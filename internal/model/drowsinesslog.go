package model

import (
	"encoding/json"
	"time"
)

// DrowsinessLog is one immutable detection sample attached to a session.
type DrowsinessLog struct {
	ID             string        `db:"id" json:"id"`
	SessionID      string        `db:"session_id" json:"sessionId"`
	Ear            float64       `db:"ear" json:"ear"`
	Mar            float64       `db:"mar" json:"mar"`
	Tilt           float64       `db:"tilt" json:"tilt"`
	Score          float64       `db:"score" json:"score"`
	IsDrowsy       bool          `db:"is_drowsy" json:"isDrowsy"`
	AlertTriggered bool          `db:"alert_triggered" json:"alertTriggered"`
	AlertType      *string       `db:"alert_type" json:"alertType"`
	Status         SessionStatus `db:"status" json:"status"`
	GpsLat         float64       `db:"gps_lat" json:"-"`
	GpsLng         float64       `db:"gps_lng" json:"-"`
	SampleTime     time.Time     `db:"sample_time" json:"timestamp"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
}

// MarshalJSON folds the flat gps columns back into the nested wire shape.
func (l DrowsinessLog) MarshalJSON() ([]byte, error) {
	type alias DrowsinessLog
	return json.Marshal(struct {
		alias
		Gps map[string]float64 `json:"gps"`
	}{
		alias: alias(l),
		Gps:   map[string]float64{"lat": l.GpsLat, "lng": l.GpsLng},
	})
}

type CreateLogParams struct {
	SessionID      string
	Ear            float64
	Mar            float64
	Tilt           float64
	Score          float64
	IsDrowsy       bool
	AlertTriggered bool
	AlertType      *string
	Status         SessionStatus
	GpsLat         float64
	GpsLng         float64
}

// SessionStats is the log-derived aggregate view of a session. It is
// computed from the full log set and may disagree with the session's own
// running averages.
type SessionStats struct {
	TotalLogs   int     `db:"total_logs" json:"totalLogs"`
	TotalDrowsy int     `db:"total_drowsy" json:"totalDrowsy"`
	TotalAlerts int     `db:"total_alerts" json:"totalAlerts"`
	AvgEAR      float64 `db:"avg_ear" json:"avgEAR"`
	AvgMAR      float64 `db:"avg_mar" json:"avgMAR"`
	AvgTilt     float64 `db:"avg_tilt" json:"avgTilt"`
}
