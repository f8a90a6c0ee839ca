package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/repository"
)

// DrowsinessService ingests immutable detection samples and serves the
// log-derived read paths. Stats are recomputed from the full log set and
// are allowed to disagree with the session's own running averages.
type DrowsinessService struct {
	logRepo     repository.DrowsinessLogRepository
	sessionRepo repository.SessionRepository
}

func NewDrowsinessService(
	logRepo repository.DrowsinessLogRepository,
	sessionRepo repository.SessionRepository,
) *DrowsinessService {
	return &DrowsinessService{
		logRepo:     logRepo,
		sessionRepo: sessionRepo,
	}
}

// Ingest attaches one sample to a session the caller owns. A session that
// does not exist and a session owned by someone else produce the same
// not-found outcome, so callers cannot probe for foreign session ids.
func (s *DrowsinessService) Ingest(ctx context.Context, userID string, params model.CreateLogParams) (*model.DrowsinessLog, error) {
	session, err := s.sessionRepo.FindByIDAndUser(ctx, params.SessionID, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	logEntry, err := s.logRepo.Create(ctx, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Debug().
		Str("sessionId", params.SessionID).
		Bool("isDrowsy", params.IsDrowsy).
		Bool("alertTriggered", params.AlertTriggered).
		Msg("drowsiness sample ingested")

	return logEntry, nil
}

func (s *DrowsinessService) ListBySession(ctx context.Context, userID, sessionID string) ([]model.DrowsinessLog, error) {
	session, err := s.sessionRepo.FindByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	logs, err := s.logRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return logs, nil
}

func (s *DrowsinessService) ListByUser(ctx context.Context, userID string) ([]model.DrowsinessLog, error) {
	logs, err := s.logRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return logs, nil
}

// Stats aggregates over every log of the session. Zero logs is not found,
// matching the source system.
func (s *DrowsinessService) Stats(ctx context.Context, userID, sessionID string) (*model.SessionStats, error) {
	session, err := s.sessionRepo.FindByIDAndUser(ctx, sessionID, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}

	stats, err := s.logRepo.StatsBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if stats.TotalLogs == 0 {
		return nil, apperrors.NotFound("Logs")
	}
	return stats, nil
}
