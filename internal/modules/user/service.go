package user

import (
	"context"
	"log/slog"

	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/notification"
)

// Service defines the interface for the user module's business logic.
// It orchestrates the flow of data between the handlers and the repository,
// and contains the core business rules.
type Service interface {
	// Auth-related methods
	SignUp(ctx context.Context, email, username, password string) (*User, *AuthTokens, error)
	SignIn(ctx context.Context, email, password string) (*User, *AuthTokens, error)
	SignOut(ctx context.Context, refreshToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*User, *AuthTokens, error)

	// Profile-related methods
	GetProfile(ctx context.Context, userID string) (*User, error)
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*User, error)

	// Password-related methods
	InitiatePasswordReset(ctx context.Context, email string) error
	FinalizePasswordReset(ctx context.Context, token, newPassword string) error

	// Email verification
	VerifyEmail(ctx context.Context, token string) error
}

// service implements the Service interface.
type service struct {
	repo   Repository
	logger *slog.Logger
	config *config.Config
	mailer notification.Mailer
}

// Config holds the dependencies for the user service.
type Config struct {
	Repo   Repository
	Logger *slog.Logger
	Config *config.Config
	Mailer notification.Mailer
}

// NewService creates a new user service with the given dependencies.
func NewService(cfg *Config) Service {
	return &service{
		repo:   cfg.Repo,
		logger: cfg.Logger,
		config: cfg.Config,
		mailer: cfg.Mailer,
	}
}
