package user

import (
	"context"
	"time"

	"github.com/adsight/adsight-api/internal/contextx"
	"github.com/adsight/adsight-api/internal/httpx"
	"github.com/adsight/adsight-api/internal/validation"
)

// --- DTOs & Mappers ---

// ProfileResponse is the DTO for a user's profile.
type ProfileResponse struct {
	Body struct {
		ID          string     `json:"id"`
		Email       string     `json:"email"`
		Username    string     `json:"username"`
		Image       string     `json:"image,omitempty"`
		Plan        string     `json:"plan"`
		CreatedAt   time.Time  `json:"createdAt"`
		LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	}
}

// toProfileResponse maps a domain User object to a ProfileResponse DTO.
func toProfileResponse(u *User) *ProfileResponse {
	var resp ProfileResponse
	resp.Body.ID = u.ID
	resp.Body.Email = u.Email
	resp.Body.Username = u.Username
	if u.Image != nil {
		resp.Body.Image = *u.Image
	}
	resp.Body.Plan = string(u.Plan)
	resp.Body.CreatedAt = u.CreatedAt
	resp.Body.LastLoginAt = u.LastLoginAt
	return &resp
}

// UpdateProfileRequest defines the fields that can be updated on a user's profile.
type UpdateProfileRequest struct {
	Body struct {
		Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=32"`
		Image    *string `json:"image,omitempty" validate:"omitempty,url"`
	}
}

// --- Handlers ---

// GetProfileHandler retrieves the profile of the currently authenticated user.
// It relies on the session middleware to have set the user's ID in the context.
func (h *Handler) GetProfileHandler(ctx context.Context, _ *struct{}) (*ProfileResponse, error) {
	userID, ok := ctx.Value(contextx.UserIDKey).(string)
	if !ok || userID == "" {
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	u, err := h.service.GetProfile(ctx, userID)
	if err != nil {
		h.logger.Error("failed to get user profile", "user_id", userID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	return toProfileResponse(u), nil
}

// UpdateProfileHandler updates the profile of the currently authenticated user.
func (h *Handler) UpdateProfileHandler(ctx context.Context, input *UpdateProfileRequest) (*ProfileResponse, error) {
	userID, ok := ctx.Value(contextx.UserIDKey).(string)
	if !ok || userID == "" {
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}
	if err := validation.ValidateStruct(input.Body); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	h.logger.Info("handling update profile request", "user_id", userID)

	updated, err := h.service.UpdateProfile(ctx, userID, UpdateProfileInput{
		Username: input.Body.Username,
		Image:    input.Body.Image,
	})
	if err != nil {
		h.logger.Error("failed to update user profile", "user_id", userID, "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	return toProfileResponse(updated), nil
}
