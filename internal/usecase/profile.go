package usecase

import (
	"fmt"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// ProfileService manages the caller's own profile.
type ProfileService struct {
	Profiles domain.ProfileRepository
}

// NewProfileService constructs a ProfileService.
func NewProfileService(p domain.ProfileRepository) ProfileService {
	return ProfileService{Profiles: p}
}

// Get returns the caller's profile, creating it from the token claims on
// first access.
func (s ProfileService) Get(ctx domain.Context, userID, email string) (domain.Profile, error) {
	p, err := s.Profiles.Ensure(ctx, userID, email)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.get: %w", err)
	}
	return p, nil
}

// Update changes the user-editable fields. Nil fields stay as they are.
func (s ProfileService) Update(ctx domain.Context, userID, email string, upd domain.ProfileUpdate) (domain.Profile, error) {
	if _, err := s.Profiles.Ensure(ctx, userID, email); err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.update: %w", err)
	}
	p, err := s.Profiles.Update(ctx, userID, upd)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("op=profile.update: %w", err)
	}
	return p, nil
}
