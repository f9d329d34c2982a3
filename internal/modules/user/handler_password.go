package user

import (
	"context"

	"github.com/adsight/adsight-api/internal/httpx"
	"github.com/adsight/adsight-api/internal/validation"
)

// --- DTOs ---

// ForgotPasswordRequest defines the structure for initiating a password reset.
type ForgotPasswordRequest struct {
	Body struct {
		Email string `json:"email" validate:"required,email"`
	}
}

// ForgotPasswordResponse always looks successful regardless of whether the
// email exists.
type ForgotPasswordResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// ResetPasswordRequest defines the structure for finalizing a password reset.
type ResetPasswordRequest struct {
	Body struct {
		Token           string `json:"token" validate:"required"`
		Password        string `json:"password" validate:"required,min=8"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	}
}

// ResetPasswordResponse is an empty successful response.
type ResetPasswordResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// VerifyEmailRequest carries the verification token.
type VerifyEmailRequest struct {
	Body struct {
		Token string `json:"token" validate:"required"`
	}
}

// VerifyEmailResponse acknowledges verification.
type VerifyEmailResponse struct {
	Body struct {
		Message string `json:"message"`
	}
}

// --- Handlers ---

// ForgotPasswordHandler handles the request to initiate a password reset.
func (h *Handler) ForgotPasswordHandler(ctx context.Context, input *ForgotPasswordRequest) (*ForgotPasswordResponse, error) {
	if err := validation.ValidateStruct(input.Body); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	h.logger.Info("handling forgot password request", "email", input.Body.Email)

	if err := h.service.InitiatePasswordReset(ctx, input.Body.Email); err != nil {
		// To prevent email enumeration attacks, we do not reveal if the email
		// was found or not. We log the real error for debugging but return a
		// success-shaped response to the client in all cases.
		h.logger.Error("failed to initiate password reset", "email", input.Body.Email, "error", err)
	}

	resp := &ForgotPasswordResponse{}
	resp.Body.Message = "if that email exists, a reset link has been sent"
	return resp, nil
}

// ResetPasswordHandler handles the request to set a new password using a reset token.
func (h *Handler) ResetPasswordHandler(ctx context.Context, input *ResetPasswordRequest) (*ResetPasswordResponse, error) {
	if err := validation.ValidateStruct(input.Body); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	h.logger.Info("handling reset password request")

	if err := h.service.FinalizePasswordReset(ctx, input.Body.Token, input.Body.Password); err != nil {
		h.logger.Warn("failed to reset password", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &ResetPasswordResponse{}
	resp.Body.Message = "password updated"
	return resp, nil
}

// VerifyEmailHandler consumes an email verification token.
func (h *Handler) VerifyEmailHandler(ctx context.Context, input *VerifyEmailRequest) (*VerifyEmailResponse, error) {
	if err := validation.ValidateStruct(input.Body); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	if err := h.service.VerifyEmail(ctx, input.Body.Token); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &VerifyEmailResponse{}
	resp.Body.Message = "email verified"
	return resp, nil
}
