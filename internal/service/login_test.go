package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/driveguard/drowsy-server-go/internal/auth"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/repository"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) UpdateEmergencyContact(ctx context.Context, id string, contact string) (*model.User, error) {
	args := m.Called(ctx, id, contact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) Verify(ctx context.Context, idToken string) (*IdentityProfile, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IdentityProfile), args.Error(1)
}

const testJWTSecret = "test-secret-used-only-in-unit-tests"

func TestLoginService_LoginWithGoogle(t *testing.T) {
	profile := &IdentityProfile{
		Subject: "google-sub-1",
		Email:   "driver@example.com",
		Name:    "Test Driver",
		Picture: "https://example.com/avatar.png",
	}

	t.Run("existing user logs in without a create", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		verifier := new(mockVerifier)
		svc := NewLoginService(userRepo, verifier, testJWTSecret)

		verifier.On("Verify", mock.Anything, "id-token").Return(profile, nil)
		userRepo.On("FindByEmail", mock.Anything, "driver@example.com").
			Return(&model.User{ID: "user-1", Email: "driver@example.com"}, nil)

		result, err := svc.LoginWithGoogle(context.Background(), "id-token")

		require.NoError(t, err)
		assert.Equal(t, "user-1", result.User.ID)
		userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

		claims, err := auth.ParseToken(result.Token, []byte(testJWTSecret))
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID)
		assert.Equal(t, "driver@example.com", claims.Email)
		assert.Equal(t, model.RoleUser, claims.Role)
	})

	t.Run("first login creates the user from the provider profile", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		verifier := new(mockVerifier)
		svc := NewLoginService(userRepo, verifier, testJWTSecret)

		verifier.On("Verify", mock.Anything, "id-token").Return(profile, nil)
		userRepo.On("FindByEmail", mock.Anything, "driver@example.com").Return(nil, nil)
		userRepo.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateUserParams) bool {
			return p.GoogleID == "google-sub-1" &&
				p.Email == "driver@example.com" &&
				p.Name == "Test Driver" &&
				p.Avatar != nil && *p.Avatar == "https://example.com/avatar.png"
		})).Return(&model.User{ID: "user-2", Email: "driver@example.com"}, nil)

		result, err := svc.LoginWithGoogle(context.Background(), "id-token")

		require.NoError(t, err)
		assert.Equal(t, "user-2", result.User.ID)
		userRepo.AssertExpectations(t)
	})

	t.Run("rejected provider token maps to invalid token", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		verifier := new(mockVerifier)
		svc := NewLoginService(userRepo, verifier, testJWTSecret)

		verifier.On("Verify", mock.Anything, "bad-token").Return(nil, errors.New("audience mismatch"))

		_, err := svc.LoginWithGoogle(context.Background(), "bad-token")

		assert.Equal(t, apperrors.ErrCodeInvalidToken, apperrors.GetCode(err))
		userRepo.AssertNotCalled(t, "FindByEmail", mock.Anything, mock.Anything)
	})
}
