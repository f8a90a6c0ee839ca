package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/driveguard/drowsy-server-go/internal/model"
)

type DrowsinessLogRepository interface {
	Create(ctx context.Context, params model.CreateLogParams) (*model.DrowsinessLog, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.DrowsinessLog, error)
	ListByUser(ctx context.Context, userID string) ([]model.DrowsinessLog, error)
	// StatsBySession aggregates over the full log set for a session,
	// independently of the session's own running averages.
	StatsBySession(ctx context.Context, sessionID string) (*model.SessionStats, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) DrowsinessLogRepository
}

type logDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type logRepo struct {
	db logDB
}

func NewDrowsinessLogRepository(db *sqlx.DB) DrowsinessLogRepository {
	return &logRepo{db: db}
}

func (r *logRepo) WithTx(tx *sqlx.Tx) DrowsinessLogRepository {
	return &logRepo{db: tx}
}

func (r *logRepo) Create(ctx context.Context, params model.CreateLogParams) (*model.DrowsinessLog, error) {
	var logEntry model.DrowsinessLog
	err := r.db.GetContext(ctx, &logEntry, `
		INSERT INTO drowsiness_logs (
			session_id, ear, mar, tilt, score,
			is_drowsy, alert_triggered, alert_type, status,
			gps_lat, gps_lng
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *
	`, params.SessionID, params.Ear, params.Mar, params.Tilt, params.Score,
		params.IsDrowsy, params.AlertTriggered, params.AlertType, params.Status,
		params.GpsLat, params.GpsLng)
	if err != nil {
		return nil, err
	}
	return &logEntry, nil
}

func (r *logRepo) ListBySession(ctx context.Context, sessionID string) ([]model.DrowsinessLog, error) {
	logs := []model.DrowsinessLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT * FROM drowsiness_logs
		WHERE session_id = $1
		ORDER BY sample_time ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *logRepo) ListByUser(ctx context.Context, userID string) ([]model.DrowsinessLog, error) {
	logs := []model.DrowsinessLog{}
	err := r.db.SelectContext(ctx, &logs, `
		SELECT l.* FROM drowsiness_logs l
		JOIN driving_sessions s ON s.id = l.session_id
		WHERE s.user_id = $1
		ORDER BY l.sample_time ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *logRepo) StatsBySession(ctx context.Context, sessionID string) (*model.SessionStats, error) {
	var stats model.SessionStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total_logs,
			COUNT(*) FILTER (WHERE is_drowsy) AS total_drowsy,
			COUNT(*) FILTER (WHERE alert_triggered) AS total_alerts,
			COALESCE(AVG(ear), 0) AS avg_ear,
			COALESCE(AVG(mar), 0) AS avg_mar,
			COALESCE(AVG(tilt), 0) AS avg_tilt
		FROM drowsiness_logs
		WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
