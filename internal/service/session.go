package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/alerts"
	"github.com/driveguard/drowsy-server-go/internal/audit"
	"github.com/driveguard/drowsy-server-go/internal/database"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/repository"
)

type StartSessionResult struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// SessionService owns the session lifecycle: start, incremental metric
// updates while active, and finalization on stop. Update arithmetic happens
// in a single atomic SQL statement, so concurrent updates against the same
// token never lose writes.
type SessionService struct {
	db          TxRunner
	sessionRepo repository.SessionRepository
	broker      *alerts.Broker
}

func NewSessionService(db TxRunner, sessionRepo repository.SessionRepository, broker *alerts.Broker) *SessionService {
	return &SessionService{
		db:          db,
		sessionRepo: sessionRepo,
		broker:      broker,
	}
}

// Start force-closes any session the user still has active (end time only,
// no status recompute) and creates a fresh one with zeroed metrics. Both
// steps run in one transaction; when a concurrent start wins the insert on
// the one-active-session index, the whole transaction is retried once so
// the later caller closes the winner and takes over.
func (s *SessionService) Start(ctx context.Context, userID string) (*StartSessionResult, error) {
	session, err := s.startOnce(ctx, userID)
	if repository.IsUniqueViolation(err) {
		session, err = s.startOnce(ctx, userID)
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("sessionId", session.ID).
		Str("userId", userID).
		Msg("session started")

	return &StartSessionResult{
		Token: session.SessionToken,
		ID:    session.ID,
	}, nil
}

func (s *SessionService) startOnce(ctx context.Context, userID string) (*model.Session, error) {
	var session *model.Session
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		repo := s.sessionRepo.WithTx(tx)

		closed, err := repo.ForceCloseActive(ctx, userID)
		if err != nil {
			return err
		}
		if closed > 0 {
			log.Warn().
				Str("userId", userID).
				Int64("count", closed).
				Msg("force-closed active session before start")
			audit.Log(ctx, audit.Event{Type: audit.EventSessionForceStop, UserID: userID})
		}

		session, err = repo.Create(ctx, model.CreateSessionParams{
			UserID:       userID,
			SessionToken: uuid.NewString(),
		})
		return err
	})
	return session, err
}

// Update applies one incremental metrics update to the caller's active
// session. The update counter advances once per call regardless of which
// fields were present; calls without ear/mar therefore dilute the running
// means (kept from the source system, see DESIGN.md).
func (s *SessionService) Update(ctx context.Context, userID, token string, params model.UpdateSessionParams) error {
	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return apperrors.Database(err)
	}
	if session == nil || session.UserID != userID {
		return apperrors.NotFound("Session")
	}
	if session.Ended() {
		return apperrors.SessionEnded()
	}

	ok, err := s.sessionRepo.ApplyUpdate(ctx, token, params)
	if err != nil {
		return apperrors.Database(err)
	}
	if !ok {
		// Ended between the lookup and the update.
		return apperrors.SessionEnded()
	}

	if params.Alert {
		s.publishAlert(ctx, session, params)
	}

	return nil
}

func (s *SessionService) publishAlert(ctx context.Context, session *model.Session, params model.UpdateSessionParams) {
	payload := map[string]any{
		"sessionId": session.ID,
		"raisedAt":  time.Now().Format(time.RFC3339),
	}
	if params.Latitude != nil && params.Longitude != nil {
		payload["latitude"] = *params.Latitude
		payload["longitude"] = *params.Longitude
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.broker.Publish(ctx, session.UserID, alerts.Event{Type: "drowsy_alert", Data: data}); err != nil {
		log.Warn().Err(err).Str("sessionId", session.ID).Msg("failed to publish drowsy alert")
	}
}

// Stop finalizes the session. A supplied summary overwrites every running
// value (absent fields decode as zero) and the status is re-derived from
// the summary's counts; without a summary only the end time is set. A
// second stop fails with SESSION_ENDED and never touches the stored state.
func (s *SessionService) Stop(ctx context.Context, userID, token string, summary *model.SessionSummary) (*model.Session, error) {
	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.UserID != userID {
		return nil, apperrors.NotFound("Session")
	}
	if session.Ended() {
		return nil, apperrors.SessionEnded()
	}

	var finalized *model.Session
	if summary != nil {
		status := model.DeriveStatus(summary.DrowsyCount, summary.MaxScore)
		finalized, err = s.sessionRepo.Finalize(ctx, token, *summary, status)
	} else {
		finalized, err = s.sessionRepo.End(ctx, token)
	}
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if finalized == nil {
		return nil, apperrors.SessionEnded()
	}

	log.Info().
		Str("sessionId", finalized.ID).
		Str("status", string(finalized.Status)).
		Bool("summary", summary != nil).
		Msg("session stopped")

	return finalized, nil
}

// Get returns the caller's session document. Sessions belonging to other
// users are reported as not found.
func (s *SessionService) Get(ctx context.Context, userID, token string) (*model.Session, error) {
	session, err := s.sessionRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || session.UserID != userID {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

func (s *SessionService) GpsHistory(ctx context.Context, userID, token string) (model.GpsHistory, error) {
	session, err := s.Get(ctx, userID, token)
	if err != nil {
		return nil, err
	}
	return session.GpsHistory, nil
}

func (s *SessionService) ListByUser(ctx context.Context, userID string) ([]model.Session, error) {
	sessions, err := s.sessionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(fmt.Errorf("list sessions: %w", err))
	}
	return sessions, nil
}
