package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adsight/adsight-api/internal/notification"
	"github.com/adsight/adsight-api/internal/policy"
)

// SignUp handles the business logic for creating a new user with a password.
func (s *service) SignUp(ctx context.Context, email, username, password string) (*User, *AuthTokens, error) {
	// Check if a user with the given email already exists.
	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, nil, ErrEmailExists
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, nil, ErrInternal.WithCause(err)
	}

	// Same for the username.
	_, err = s.repo.FindByUsername(ctx, username)
	if err == nil {
		return nil, nil, ErrUsernameExists
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, nil, ErrInternal.WithCause(err)
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, nil, ErrInternal.WithCause(err)
	}

	newUserID, err := uuid.NewV7()
	if err != nil {
		return nil, nil, ErrInternal.WithCause(err)
	}
	newUser := &User{
		ID:           newUserID.String(),
		Email:        email,
		Username:     username,
		PasswordHash: &hashedPassword,
		Plan:         policy.PlanFreemium,
	}

	if err := s.repo.Create(ctx, newUser); err != nil {
		s.logger.Error("failed to create user", "error", err)
		return nil, nil, ErrInternal.WithCause(err)
	}

	s.logger.Info("user registered successfully", "user_id", newUser.ID)

	// Kick off email verification; delivery failure never fails the sign-up.
	if err := s.sendVerificationEmail(ctx, newUser); err != nil {
		s.logger.Warn("failed to send verification email", "user_id", newUser.ID, "error", err)
	}

	tokens, err := s.issueAuthTokens(ctx, newUser.ID)
	if err != nil {
		return nil, nil, err
	}

	return newUser, tokens, nil
}

// SignIn handles the business logic for authenticating a user.
func (s *service) SignIn(ctx context.Context, email, password string) (*User, *AuthTokens, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Use a generic error to avoid telling attackers that the email exists.
			return nil, nil, ErrInvalidCredentials
		}
		s.logger.Error("failed to find user by email", "error", err)
		return nil, nil, ErrInternal.WithCause(err)
	}

	// OAuth-only accounts have no password to check.
	if !user.HasPassword() || !checkPasswordHash(password, *user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn("failed to update last login timestamp", "user_id", user.ID, "error", err)
	}

	tokens, err := s.issueAuthTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("user signed in successfully", "user_id", user.ID)
	return user, tokens, nil
}

// SignOut revokes the stored refresh token. It is deliberately best-effort:
// logout must always succeed from the client's perspective (cookies cleared)
// even if server-side cleanup fails.
func (s *service) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	token, err := s.repo.FindTokenByHash(ctx, hashToken(refreshToken), TokenTypeRefresh)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("sign-out token lookup failed", "error", err)
		}
		return nil
	}
	if err := s.repo.DeleteToken(ctx, token.ID); err != nil {
		s.logger.Warn("sign-out token deletion failed", "error", err)
	}
	return nil
}

// RefreshSession validates a refresh token and rotates it, returning a fresh
// token pair. An expired token is deleted on the spot (lazy cleanup).
func (s *service) RefreshSession(ctx context.Context, refreshToken string) (*User, *AuthTokens, error) {
	if refreshToken == "" {
		return nil, nil, ErrInvalidToken
	}

	token, err := s.repo.FindTokenByHash(ctx, hashToken(refreshToken), TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		s.logger.Error("failed to look up refresh token", "error", err)
		return nil, nil, ErrInternal.WithCause(err)
	}

	if time.Now().After(token.ExpiresAt) {
		// Lazy cleanup of the expired row.
		_ = s.repo.DeleteToken(ctx, token.ID)
		return nil, nil, ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, ErrInternal.WithCause(err)
	}

	// Rotation: issueAuthTokens deletes all prior refresh tokens for the user.
	tokens, err := s.issueAuthTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	return user, tokens, nil
}

// VerifyEmail consumes a VERIFICATION_EMAIL token.
func (s *service) VerifyEmail(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return ErrInvalidToken
	}
	token, err := s.repo.FindTokenByHash(ctx, hashToken(rawToken), TokenTypeVerificationEmail)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return ErrInternal.WithCause(err)
	}
	defer func() { _ = s.repo.DeleteToken(ctx, token.ID) }()

	if time.Now().After(token.ExpiresAt) {
		return ErrInvalidToken
	}

	s.logger.Info("email verified", "user_id", token.UserID)
	return nil
}

// issueAuthTokens creates a new access JWT plus an opaque refresh token,
// replacing any previously stored refresh token for the user.
func (s *service) issueAuthTokens(ctx context.Context, userID string) (*AuthTokens, error) {
	accessExpiry := time.Now().Add(accessTokenTTL)
	accessToken, err := generateAccessJWT(s.config.TokenSecret, userID, accessExpiry)
	if err != nil {
		s.logger.Error("failed to generate access token", "error", err)
		return nil, ErrInternal.WithCause(err)
	}

	rawRefresh, err := generateSecureToken(32)
	if err != nil {
		return nil, ErrInternal.WithCause(err)
	}

	// Only one active refresh token per user: delete before insert.
	if err := s.repo.DeleteTokensByUserAndType(ctx, userID, TokenTypeRefresh); err != nil {
		s.logger.Warn("failed to delete prior refresh tokens", "user_id", userID, "error", err)
	}

	tokenID, err := uuid.NewV7()
	if err != nil {
		return nil, ErrInternal.WithCause(err)
	}
	refreshExpiry := time.Now().Add(refreshTokenTTL)
	if err := s.repo.CreateToken(ctx, &Token{
		ID:        tokenID.String(),
		UserID:    userID,
		Type:      TokenTypeRefresh,
		TokenHash: hashToken(rawRefresh),
		ExpiresAt: refreshExpiry,
	}); err != nil {
		s.logger.Error("failed to store refresh token", "error", err)
		return nil, ErrInternal.WithCause(err)
	}

	return &AuthTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// sendVerificationEmail issues a VERIFICATION_EMAIL token and mails the link.
func (s *service) sendVerificationEmail(ctx context.Context, u *User) error {
	rawToken, err := generateSecureToken(32)
	if err != nil {
		return err
	}
	tokenID, err := uuid.NewV7()
	if err != nil {
		return err
	}
	if err := s.repo.CreateToken(ctx, &Token{
		ID:        tokenID.String(),
		UserID:    u.ID,
		Type:      TokenTypeVerificationEmail,
		TokenHash: hashToken(rawToken),
		ExpiresAt: time.Now().Add(verifyTokenTTL),
	}); err != nil {
		return err
	}

	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.config.AppBaseURL, rawToken)
	subject, body := notification.VerificationBody(verifyURL)
	return s.mailer.Send(ctx, u.Email, subject, body)
}
