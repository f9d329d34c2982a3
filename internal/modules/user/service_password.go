package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adsight/adsight-api/internal/notification"
)

// InitiatePasswordReset handles the logic for initiating a password reset.
// It finds a user by email, generates a secure reset token, stores the token's
// hash, and sends a password reset email.
func (s *service) InitiatePasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		// If the user is not found, we return nil to prevent email enumeration.
		// An attacker should not be able to determine if an email is registered.
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("password reset requested for non-existent email", "email", email)
			return nil
		}
		s.logger.Error("failed to find user by email for password reset", "error", err)
		return ErrInternal.WithCause(err)
	}

	rawToken, err := generateSecureToken(32)
	if err != nil {
		s.logger.Error("failed to generate secure token for password reset", "error", err)
		return ErrInternal.WithCause(err)
	}

	// Only one outstanding reset token per user.
	if err := s.repo.DeleteTokensByUserAndType(ctx, user.ID, TokenTypeResetPassword); err != nil {
		s.logger.Warn("failed to delete prior reset tokens", "user_id", user.ID, "error", err)
	}

	tokenID, err := uuid.NewV7()
	if err != nil {
		return ErrInternal.WithCause(err)
	}
	if err := s.repo.CreateToken(ctx, &Token{
		ID:        tokenID.String(),
		UserID:    user.ID,
		Type:      TokenTypeResetPassword,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}); err != nil {
		s.logger.Error("failed to store password reset token", "error", err)
		return ErrInternal.WithCause(err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.AppBaseURL, rawToken)
	subject, body := notification.PasswordResetBody(resetURL)
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		// Delivery failure is logged but not surfaced: the endpoint always
		// returns a success-shaped response.
		s.logger.Error("failed to send password reset email", "user_id", user.ID, "error", err)
	}

	return nil
}

// FinalizePasswordReset validates a password reset token and updates the
// user's password.
func (s *service) FinalizePasswordReset(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return ErrInvalidResetToken
	}

	token, err := s.repo.FindTokenByHash(ctx, hashToken(rawToken), TokenTypeResetPassword)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Same error for not found, expired, or invalid tokens.
			return ErrInvalidResetToken
		}
		s.logger.Error("failed to find password reset token", "error", err)
		return ErrInternal.WithCause(err)
	}

	if time.Now().After(token.ExpiresAt) {
		_ = s.repo.DeleteToken(ctx, token.ID)
		return ErrInvalidResetToken
	}

	newPasswordHash, err := hashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password during reset", "error", err)
		return ErrInternal.WithCause(err)
	}

	if err := s.repo.UpdatePassword(ctx, token.UserID, newPasswordHash); err != nil {
		s.logger.Error("failed to update user password after reset", "error", err)
		return ErrInternal.WithCause(err)
	}

	// The token is single-use; all refresh tokens are revoked so stolen
	// sessions die with the old password.
	_ = s.repo.DeleteToken(ctx, token.ID)
	_ = s.repo.DeleteTokensByUserAndType(ctx, token.UserID, TokenTypeRefresh)

	s.logger.Info("user password has been reset successfully", "user_id", token.UserID)
	return nil
}
