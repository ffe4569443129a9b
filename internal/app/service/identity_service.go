package service

import (
	"context"
	"errors"
	"strings"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/domain/repository"

	"github.com/google/uuid"
)

// IdentityProvider fetches profile data for a principal the provider has
// already authenticated.
type IdentityProvider interface {
	GetProfile(ctx context.Context, externalID string) (*model.IdentityProfile, error)
}

type IdentityService struct {
	userRepo repository.UserRepository
	provider IdentityProvider
}

func NewIdentityService(userRepo repository.UserRepository, provider IdentityProvider) *IdentityService {
	return &IdentityService{userRepo: userRepo, provider: provider}
}

// Resolve maps an external principal id to a local user, creating the user on
// first sight. Two requests racing on the same unseen principal both try to
// insert; the unique index rejects the loser, which then reads the winner's row.
func (s *IdentityService) Resolve(ctx context.Context, externalID string) (*model.User, error) {
	if strings.TrimSpace(externalID) == "" {
		return nil, common.ErrUnauthorized
	}

	user, err := s.userRepo.FindByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, common.Errorf("failed to find user: %w", err)
	}

	profile, err := s.provider.GetProfile(ctx, externalID)
	if err != nil {
		return nil, common.Errorf("failed to fetch identity profile: %w", err)
	}

	user = &model.User{
		ID:             uuid.NewString(),
		ExternalID:     externalID,
		Email:          strings.ToLower(strings.TrimSpace(profile.Email)),
		Name:           strings.TrimSpace(profile.Name),
		ProfilePicture: profile.AvatarURL,
		Skills:         []string{},
	}
	if user.Name == "" {
		user.Name = "Anonymous"
	}

	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		if !errors.Is(err, common.ErrConflict) {
			return nil, common.Errorf("failed to create user: %w", err)
		}
		existing, findErr := s.userRepo.FindByExternalID(ctx, externalID)
		if findErr != nil {
			// The conflict came from another principal holding the same email.
			return nil, common.Errorf("failed to create user: %w", err)
		}
		return existing, nil
	}
	return user, nil
}
