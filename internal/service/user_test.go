package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
)

func TestUserService_UpdateEmergencyContact(t *testing.T) {
	t.Run("stores the contact as given", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewUserService(userRepo)

		userRepo.On("UpdateEmergencyContact", mock.Anything, "user-1", "+91 98765 43210").
			Return(userWithContact("+91 98765 43210"), nil)

		user, err := svc.UpdateEmergencyContact(context.Background(), "user-1", "+91 98765 43210")

		require.NoError(t, err)
		require.NotNil(t, user.EmergencyContact)
		assert.Equal(t, "+91 98765 43210", *user.EmergencyContact)
	})

	t.Run("empty contact is rejected before hitting the store", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewUserService(userRepo)

		_, err := svc.UpdateEmergencyContact(context.Background(), "user-1", "")

		assert.Equal(t, apperrors.ErrCodeMissingRequired, apperrors.GetCode(err))
		userRepo.AssertNotCalled(t, "UpdateEmergencyContact", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUserService_GetByID(t *testing.T) {
	t.Run("unknown user is not found", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewUserService(userRepo)

		userRepo.On("FindByID", mock.Anything, "missing").Return(nil, nil)

		_, err := svc.GetByID(context.Background(), "missing")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}

func TestUserService_Delete(t *testing.T) {
	t.Run("deletes an existing user", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewUserService(userRepo)

		userRepo.On("Delete", mock.Anything, "user-1").Return(true, nil)

		err := svc.Delete(context.Background(), "user-1")

		require.NoError(t, err)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		userRepo := new(mockUserRepo)
		svc := NewUserService(userRepo)

		userRepo.On("Delete", mock.Anything, "missing").Return(false, nil)

		err := svc.Delete(context.Background(), "missing")

		assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetCode(err))
	})
}
