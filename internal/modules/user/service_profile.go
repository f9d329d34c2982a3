package user

import (
	"context"
	"errors"
	"time"
)

// UpdateProfileInput defines the updatable fields for a user's profile.
// Using pointers allows us to distinguish between a field not being provided (nil)
// and a field being set to its zero value (e.g., an empty string).
type UpdateProfileInput struct {
	Username *string
	Image    *string
}

// GetProfile retrieves a single user's profile by their ID.
func (s *service) GetProfile(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound.WithCause(err)
		}
		s.logger.Error("failed to get user profile from repository", "error", err, "user_id", userID)
		return nil, ErrInternal.WithCause(err)
	}
	return user, nil
}

// UpdateProfile updates a user's profile information.
func (s *service) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound.WithCause(err)
		}
		s.logger.Error("failed to find user for profile update", "error", err, "user_id", userID)
		return nil, ErrInternal.WithCause(err)
	}

	if input.Username != nil && *input.Username != user.Username {
		// Usernames are unique; reject a taken one up front.
		existing, err := s.repo.FindByUsername(ctx, *input.Username)
		if err == nil && existing.ID != user.ID {
			return nil, ErrUsernameExists
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, ErrInternal.WithCause(err)
		}
		user.Username = *input.Username
	}
	if input.Image != nil {
		user.Image = input.Image
	}

	user.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, user); err != nil {
		s.logger.Error("failed to update user profile in repository", "error", err, "user_id", userID)
		return nil, ErrInternal.WithCause(err)
	}

	s.logger.Info("user profile updated successfully", "user_id", user.ID)
	return user, nil
}
