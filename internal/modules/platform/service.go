package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
	"github.com/adsight/adsight-api/internal/session"
)

// Service defines the business logic for platform connections: the OAuth
// connect flow, disconnects, token refresh, and the store-backed connection
// views that route handlers must consult instead of trusting the session
// cookie.
type Service interface {
	// InitiateConnect starts the OAuth flow for a platform. It validates the
	// platform against the user's plan (when a user is present), stores the
	// state nonce and PKCE verifier in the session, and returns the
	// provider's authorization URL for the client to follow.
	InitiateConnect(ctx context.Context, userID string, p policy.Platform, sess *session.Data) (string, error)

	// HandleCallback completes the OAuth flow. It never returns a domain
	// error for flow failures: those become a redirect URL carrying an
	// error code so the UI flow stays usable.
	HandleCallback(ctx context.Context, in CallbackInput) *CallbackResult

	// Disconnect removes a stored platform connection.
	Disconnect(ctx context.Context, userID string, p policy.Platform) error

	// ActiveProviders returns the user's stored connections. This is the
	// authoritative view; the session's platform map is advisory only.
	ActiveProviders(ctx context.Context, userID string) ([]*AuthProvider, error)

	// SessionSummaries projects the stored connections into the small
	// per-platform summaries embedded in the session cookie.
	SessionSummaries(ctx context.Context, userID string) (map[policy.Platform]*session.PlatformSummary, error)

	// RefreshAllUserTokens refreshes every connected provider token that is
	// expired or about to expire. Per-provider failures are isolated.
	RefreshAllUserTokens(ctx context.Context, userID string) (*RefreshReport, error)
}

// ProviderFactory builds the OAuth strategy for a platform. Injectable so
// tests can substitute fakes for the real provider implementations.
type ProviderFactory func(cfg *config.Config, p policy.Platform) (OAuthProvider, error)

type service struct {
	repo      Repository
	users     user.Repository
	logger    *slog.Logger
	config    *config.Config
	providers ProviderFactory
	now       func() time.Time
}

// Config holds the dependencies for the platform service.
type Config struct {
	Repo      Repository
	Users     user.Repository
	Logger    *slog.Logger
	Config    *config.Config
	Providers ProviderFactory // defaults to the real implementations
}

// NewService creates a new platform service with the given dependencies.
func NewService(cfg *Config) Service {
	factory := cfg.Providers
	if factory == nil {
		factory = newOAuthProvider
	}
	return &service{
		repo:      cfg.Repo,
		users:     cfg.Users,
		logger:    cfg.Logger,
		config:    cfg.Config,
		providers: factory,
		now:       time.Now,
	}
}

func (s *service) Disconnect(ctx context.Context, userID string, p policy.Platform) error {
	if !p.Valid() {
		return ErrUnsupportedPlatform
	}
	if err := s.repo.Delete(ctx, userID, p); err != nil {
		return err
	}
	s.logger.Info("platform disconnected", "userId", userID, "platform", p)
	return nil
}

func (s *service) ActiveProviders(ctx context.Context, userID string) ([]*AuthProvider, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) SessionSummaries(ctx context.Context, userID string) (map[policy.Platform]*session.PlatformSummary, error) {
	providers, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make(map[policy.Platform]*session.PlatformSummary, len(providers))
	for _, p := range providers {
		summary := &session.PlatformSummary{AccountID: p.ProviderAccountID}
		if p.Username != nil {
			summary.Username = *p.Username
		}
		if p.ExpiresAt != nil {
			summary.TokenExpiry = p.ExpiresAt.Unix()
		}
		summaries[p.Provider] = summary
	}
	return summaries, nil
}
