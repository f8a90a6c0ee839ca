package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/driveguard/drowsy-server-go/internal/audit"
	apperrors "github.com/driveguard/drowsy-server-go/internal/errors"
	"github.com/driveguard/drowsy-server-go/internal/model"
	"github.com/driveguard/drowsy-server-go/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id string, params model.UpdateUserParams) (*model.User, error) {
	user, err := s.userRepo.UpdateProfile(ctx, id, params)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

func (s *UserService) UpdateEmergencyContact(ctx context.Context, id string, contact string) (*model.User, error) {
	if contact == "" {
		return nil, apperrors.MissingRequired("Phone number")
	}

	user, err := s.userRepo.UpdateEmergencyContact(ctx, id, contact)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.NotFound("User")
	}
	return user, nil
}

// Delete removes the user; sessions and logs go with it through the
// foreign-key cascade.
func (s *UserService) Delete(ctx context.Context, id string) error {
	deleted, err := s.userRepo.Delete(ctx, id)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("User")
	}

	log.Info().Str("userId", id).Msg("user deleted")
	audit.Log(ctx, audit.Event{Type: audit.EventUserDelete, UserID: id})
	return nil
}
