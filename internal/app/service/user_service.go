package service

import (
	"context"
	"strings"

	"problem_market/internal/common"
	"problem_market/internal/domain/model"
	"problem_market/internal/domain/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) GetMe(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, common.Errorf("user %s: %w", userID, err)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in model.UpdateProfileInput) (*model.User, error) {
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		in.Name = &n
	}
	if in.Skills != nil {
		skills := make([]string, 0, len(in.Skills))
		for _, sk := range in.Skills {
			skills = append(skills, strings.TrimSpace(sk))
		}
		in.Skills = skills
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, common.Errorf("user %s: %w", userID, err)
	}
	user.Apply(in)
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, common.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}
