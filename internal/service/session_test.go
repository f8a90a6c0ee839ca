package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/driveguard/drowsy-server-go/internal/database"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/repository"
)

// Mock repositories
type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByToken(ctx context.Context, token string) (*model.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) FindByIDAndUser(ctx context.Context, id string, userID string) (*model.Session, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) ListByUser(ctx context.Context, userID string) ([]model.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Session), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) ApplyUpdate(ctx context.Context, token string, params model.UpdateSessionParams) (bool, error) {
	args := m.Called(ctx, token, params)
	return args.Bool(0), args.Error(1)
}

func (m *mockSessionRepo) Finalize(ctx context.Context, token string, summary model.SessionSummary, status model.SessionStatus) (*model.Session, error) {
	args := m.Called(ctx, token, summary, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) End(ctx context.Context, token string) (*model.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *mockSessionRepo) ForceCloseActive(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) CloseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

// fakeTxRunner executes the transactional function directly; the mock repo
// ignores the tx handle anyway.
type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn database.TxFunc) error {
	f.calls++
	return fn(nil)
}

func activeSession(userID, token string) *model.Session {
	return &model.Session{
		ID:           "11111111-1111-1111-1111-111111111111",
		UserID:       userID,
		SessionToken: token,
		StartTime:    time.Now().Add(-time.Hour),
		Status:       model.SessionStatusSafe,
	}
}

func endedSession(userID, token string) *model.Session {
	s := activeSession(userID, token)
	now := time.Now()
	s.EndTime = &now
	return s
}

func TestSessionService_Start(t *testing.T) {
	t.Run("force-closes active session before creating a new one", func(t *testing.T) {
		repo := new(mockSessionRepo)
		tx := new(fakeTxRunner)
		svc := NewSessionService(tx, repo, nil)

		repo.On("ForceCloseActive", mock.Anything, "user-1").Return(int64(1), nil)
		repo.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateSessionParams) bool {
			return p.UserID == "user-1" && p.SessionToken != ""
		})).Return(activeSession("user-1", "tok-1"), nil)

		result, err := svc.Start(context.Background(), "user-1")

		require.NoError(t, err)
		assert.Equal(t, "tok-1", result.Token)
		assert.NotEmpty(t, result.ID)
		assert.Equal(t, 1, tx.calls)
		repo.AssertExpectations(t)
	})

	t.Run("starts cleanly when no session is active", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("ForceCloseActive", mock.Anything, "user-1").Return(int64(0), nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(activeSession("user-1", "tok-2"), nil)

		result, err := svc.Start(context.Background(), "user-1")

		require.NoError(t, err)
		assert.Equal(t, "tok-2", result.Token)
	})

	t.Run("retries once when a concurrent start wins the insert", func(t *testing.T) {
		repo := new(mockSessionRepo)
		tx := new(fakeTxRunner)
		svc := NewSessionService(tx, repo, nil)

		repo.On("ForceCloseActive", mock.Anything, "user-1").Return(int64(0), nil).Once()
		repo.On("Create", mock.Anything, mock.Anything).
			Return(nil, &pq.Error{Code: "23505"}).Once()
		repo.On("ForceCloseActive", mock.Anything, "user-1").Return(int64(1), nil).Once()
		repo.On("Create", mock.Anything, mock.Anything).
			Return(activeSession("user-1", "tok-3"), nil).Once()

		result, err := svc.Start(context.Background(), "user-1")

		require.NoError(t, err)
		assert.Equal(t, "tok-3", result.Token)
		assert.Equal(t, 2, tx.calls)
		repo.AssertExpectations(t)
	})

	t.Run("persistent insert conflict surfaces as database error", func(t *testing.T) {
		repo := new(mockSessionRepo)
		tx := new(fakeTxRunner)
		svc := NewSessionService(tx, repo, nil)

		repo.On("ForceCloseActive", mock.Anything, "user-1").Return(int64(0), nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil, &pq.Error{Code: "23505"})

		_, err := svc.Start(context.Background(), "user-1")

		assert.Equal(t, apperrors.ErrCodeDatabase, apperrors.GetCode(err))
		assert.Equal(t, 2, tx.calls)
	})

	t.Run("force-close emits an audit event", func(t *testing.T) {
		var buf bytes.Buffer
		prev := log.Logger
		log.Logger = zerolog.New(&buf)
		defer func() { log.Logger = prev }()

		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("ForceCloseActive", mock.Anything, "user-1").Return(int64(1), nil)
		repo.On("Create", mock.Anything, mock.Anything).Return(activeSession("user-1", "tok-4"), nil)

		_, err := svc.Start(context.Background(), "user-1")

		require.NoError(t, err)
		assert.Contains(t, buf.String(), "session_force_closed")
	})
}

func TestSessionService_Update(t *testing.T) {
	ear := 0.25
	mar := 0.6

	t.Run("applies update to active session", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		params := model.UpdateSessionParams{Ear: &ear, Mar: &mar}
		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-1", "tok-1"), nil)
		repo.On("ApplyUpdate", mock.Anything, "tok-1", params).Return(true, nil)

		err := svc.Update(context.Background(), "user-1", "tok-1", params)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("unknown token is not found", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "missing").Return(nil, nil)

		err := svc.Update(context.Background(), "user-1", "missing", model.UpdateSessionParams{})

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "ApplyUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("another user's session is reported as not found", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-2", "tok-1"), nil)

		err := svc.Update(context.Background(), "user-1", "tok-1", model.UpdateSessionParams{})

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "ApplyUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ended session rejects updates without mutating", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "tok-1").Return(endedSession("user-1", "tok-1"), nil)

		err := svc.Update(context.Background(), "user-1", "tok-1", model.UpdateSessionParams{Ear: &ear})

		assert.Equal(t, apperrors.ErrCodeSessionEnded, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "ApplyUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("session ending between lookup and update surfaces as ended", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-1", "tok-1"), nil)
		repo.On("ApplyUpdate", mock.Anything, "tok-1", mock.Anything).Return(false, nil)

		err := svc.Update(context.Background(), "user-1", "tok-1", model.UpdateSessionParams{Ear: &ear})

		assert.Equal(t, apperrors.ErrCodeSessionEnded, apperrors.GetCode(err))
	})
}

func TestSessionService_Stop(t *testing.T) {
	t.Run("summary overwrites metrics and derives status", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		summary := model.SessionSummary{Duration: 3600, AvgEar: 0.22, AvgMar: 0.5, DrowsyCount: 7, MaxScore: 4}
		finalized := endedSession("user-1", "tok-1")
		finalized.Status = model.SessionStatusDanger

		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-1", "tok-1"), nil)
		repo.On("Finalize", mock.Anything, "tok-1", summary, model.SessionStatusDanger).Return(finalized, nil)

		session, err := svc.Stop(context.Background(), "user-1", "tok-1", &summary)

		require.NoError(t, err)
		assert.Equal(t, model.SessionStatusDanger, session.Status)
		repo.AssertExpectations(t)
	})

	t.Run("stop without summary only ends the session", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-1", "tok-1"), nil)
		repo.On("End", mock.Anything, "tok-1").Return(endedSession("user-1", "tok-1"), nil)

		_, err := svc.Stop(context.Background(), "user-1", "tok-1", nil)

		require.NoError(t, err)
		repo.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("second stop fails and never touches stored state", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		summary := model.SessionSummary{Duration: 10}
		repo.On("FindByToken", mock.Anything, "tok-1").Return(endedSession("user-1", "tok-1"), nil)

		_, err := svc.Stop(context.Background(), "user-1", "tok-1", &summary)

		assert.Equal(t, apperrors.ErrCodeSessionEnded, apperrors.GetCode(err))
		repo.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "End", mock.Anything, mock.Anything)
	})

	t.Run("another user's session is reported as not found", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-2", "tok-1"), nil)

		_, err := svc.Stop(context.Background(), "user-1", "tok-1", nil)

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestSessionService_Get(t *testing.T) {
	t.Run("owner reads their session", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-1", "tok-1"), nil)

		session, err := svc.Get(context.Background(), "user-1", "tok-1")

		require.NoError(t, err)
		assert.Equal(t, "tok-1", session.SessionToken)
	})

	t.Run("foreign session is not found", func(t *testing.T) {
		repo := new(mockSessionRepo)
		svc := NewSessionService(new(fakeTxRunner), repo, nil)

		repo.On("FindByToken", mock.Anything, "tok-1").Return(activeSession("user-2", "tok-1"), nil)

		_, err := svc.Get(context.Background(), "user-1", "tok-1")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}
