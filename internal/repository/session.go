package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/driveguard/drowsy-server-go/internal/model"
)

type SessionRepository interface {
	FindByToken(ctx context.Context, token string) (*model.Session, error)
	FindByIDAndUser(ctx context.Context, id string, userID string) (*model.Session, error)
	ListByUser(ctx context.Context, userID string) ([]model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// ApplyUpdate runs one incremental metrics update as a single atomic
	// statement guarded by end_time IS NULL. Returns false when no active
	// session matched the token.
	ApplyUpdate(ctx context.Context, token string, params model.UpdateSessionParams) (bool, error)
	// Finalize sets end_time and overwrites the running metrics with the
	// summary. Only an active session matches; returns nil otherwise.
	Finalize(ctx context.Context, token string, summary model.SessionSummary, status model.SessionStatus) (*model.Session, error)
	// End sets end_time without touching metrics or status.
	End(ctx context.Context, token string) (*model.Session, error)
	ForceCloseActive(ctx context.Context, userID string) (int64, error)
	CloseStale(ctx context.Context, cutoff time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

// sessionDB is an interface satisfied by both *sqlx.DB and *sqlx.Tx
type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM driving_sessions WHERE session_token = $1
	`, token)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByIDAndUser(ctx context.Context, id string, userID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM driving_sessions WHERE id = $1 AND user_id = $2
	`, id, userID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) ListByUser(ctx context.Context, userID string) ([]model.Session, error) {
	sessions := []model.Session{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM driving_sessions
		WHERE user_id = $1
		ORDER BY start_time DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO driving_sessions (user_id, session_token)
		VALUES ($1, $2)
		RETURNING *
	`, params.UserID, params.SessionToken)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ApplyUpdate recomputes the running means with the pre-call updates_count:
// every column reference on the right-hand side sees the row as it was
// before this statement, so concurrent updates serialize on the row lock
// instead of losing writes.
func (r *sessionRepo) ApplyUpdate(ctx context.Context, token string, p model.UpdateSessionParams) (bool, error) {
	hasGps := p.Latitude != nil && p.Longitude != nil
	var lat, lng float64
	if hasGps {
		lat, lng = *p.Latitude, *p.Longitude
	}
	var ear, mar float64
	if p.Ear != nil {
		ear = *p.Ear
	}
	if p.Mar != nil {
		mar = *p.Mar
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE driving_sessions SET
			gps_history = CASE WHEN $2::boolean
				THEN gps_history || jsonb_build_object('latitude', $3::float8, 'longitude', $4::float8)
				ELSE gps_history END,
			avg_ear = CASE WHEN $5::boolean
				THEN (avg_ear * updates_count + $6::float8) / (updates_count + 1)
				ELSE avg_ear END,
			avg_mar = CASE WHEN $7::boolean
				THEN (avg_mar * updates_count + $8::float8) / (updates_count + 1)
				ELSE avg_mar END,
			alerts = CASE WHEN $9::boolean
				THEN alerts || to_jsonb(NOW())
				ELSE alerts END,
			drowsy_count = drowsy_count + CASE WHEN $9::boolean THEN 1 ELSE 0 END,
			updates_count = updates_count + 1,
			updated_at = NOW()
		WHERE session_token = $1 AND end_time IS NULL
	`, token, hasGps, lat, lng, p.Ear != nil, ear, p.Mar != nil, mar, p.Alert)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *sessionRepo) Finalize(ctx context.Context, token string, summary model.SessionSummary, status model.SessionStatus) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE driving_sessions SET
			end_time = NOW(),
			duration_seconds = $2,
			avg_ear = $3,
			avg_mar = $4,
			drowsy_count = $5,
			max_score = $6,
			status = $7,
			updated_at = NOW()
		WHERE session_token = $1 AND end_time IS NULL
		RETURNING *
	`, token, summary.Duration, summary.AvgEar, summary.AvgMar, summary.DrowsyCount, summary.MaxScore, status)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) End(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		UPDATE driving_sessions SET
			end_time = NOW(),
			updated_at = NOW()
		WHERE session_token = $1 AND end_time IS NULL
		RETURNING *
	`, token)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) ForceCloseActive(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE driving_sessions SET
			end_time = NOW(),
			updated_at = NOW()
		WHERE user_id = $1 AND end_time IS NULL
	`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) CloseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE driving_sessions SET
			end_time = NOW(),
			updated_at = NOW()
		WHERE end_time IS NULL AND start_time < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
