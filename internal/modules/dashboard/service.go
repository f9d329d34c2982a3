package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/adsight/adsight-api/internal/modules/platform"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
)

// Service defines the dashboard's read-side business logic. Connection
// checks always go to the store, never the session cookie.
type Service interface {
	// Data aggregates analytics across every connected platform.
	Data(ctx context.Context, userID string) (*Data, error)

	// Analytics returns the tagged analytics payload for one platform.
	Analytics(ctx context.Context, userID string, p policy.Platform) (*AnalyticsResult, error)
}

type service struct {
	platforms platform.Service
	users     user.Repository
	fetcher   Fetcher
	dedup     Deduper
	logger    *slog.Logger
	now       func() time.Time
}

// Config holds the dependencies for the dashboard service.
type Config struct {
	Platforms platform.Service
	Users     user.Repository
	Fetcher   Fetcher
	Dedup     Deduper // defaults to a process-local in-flight map
	Logger    *slog.Logger
}

// NewService creates a new dashboard service with the given dependencies.
func NewService(cfg *Config) Service {
	dedup := cfg.Dedup
	if dedup == nil {
		dedup = NewDeduper()
	}
	return &service{
		platforms: cfg.Platforms,
		users:     cfg.Users,
		fetcher:   cfg.Fetcher,
		dedup:     dedup,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

func (s *service) Analytics(ctx context.Context, userID string, p policy.Platform) (*AnalyticsResult, error) {
	if !p.Valid() {
		return nil, platform.ErrUnsupportedPlatform
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !policy.CanUsePlatform(u.Plan, p) {
		return nil, platform.ErrPlatformNotAllowed
	}

	val, err := s.dedup.Do(userID+":"+string(p), func() (any, error) {
		conn, err := s.findConnection(ctx, userID, p)
		if err != nil {
			return nil, err
		}
		return s.fetchTagged(ctx, conn), nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*AnalyticsResult), nil
}

func (s *service) Data(ctx context.Context, userID string) (*Data, error) {
	val, err := s.dedup.Do(userID+":dashboard", func() (any, error) {
		conns, err := s.platforms.ActiveProviders(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := s.now()
		data := &Data{
			Platforms: make([]Overview, 0, len(conns)),
			FetchedAt: now,
		}
		for _, conn := range conns {
			result := s.fetchTagged(ctx, conn)
			overview := Overview{
				Platform:   conn.Provider,
				Source:     result.Source,
				Metrics:    result.Data,
				TokenState: string(conn.TokenState(now)),
			}
			if conn.Username != nil {
				overview.Username = *conn.Username
			}
			data.Platforms = append(data.Platforms, overview)

			data.Totals.Followers += result.Data.Followers
			data.Totals.Posts += result.Data.Posts
			data.Totals.Impressions += result.Data.Impressions
			data.Totals.Engagements += result.Data.Engagements
			data.Totals.Clicks += result.Data.Clicks
			data.Totals.AdSpend += result.Data.AdSpend
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*Data), nil
}

// findConnection resolves the stored connection for (userID, platform) from
// the store. A missing row is a 404, regardless of what the session claims.
func (s *service) findConnection(ctx context.Context, userID string, p policy.Platform) (*platform.AuthProvider, error) {
	conns, err := s.platforms.ActiveProviders(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		if conn.Provider == p {
			return conn, nil
		}
	}
	return nil, platform.ErrPlatformNotConnected
}

// fetchTagged fetches live metrics, degrading to the stored analytics
// summary on upstream failure. The result is always tagged with its source.
func (s *service) fetchTagged(ctx context.Context, conn *platform.AuthProvider) *AnalyticsResult {
	result := &AnalyticsResult{
		Platform:  conn.Provider,
		FetchedAt: s.now(),
	}

	metrics, err := s.fetcher.Fetch(ctx, conn)
	if err == nil {
		result.Source = SourceLive
		result.Data = *metrics
		return result
	}

	s.logger.Warn("live analytics fetch failed, serving fallback", "platform", conn.Provider, "userId", conn.UserID, "error", err)
	result.Source = SourceFallback
	result.Data = s.fallbackMetrics(conn)
	return result
}

// fallbackMetrics prefers the last stored analytics summary, degrading to
// the connection's cached counters when none exists.
func (s *service) fallbackMetrics(conn *platform.AuthProvider) Metrics {
	if len(conn.AnalyticsSummary) > 0 {
		var m Metrics
		if err := json.Unmarshal(conn.AnalyticsSummary, &m); err == nil {
			return m
		}
		s.logger.Warn("stored analytics summary is unreadable", "platform", conn.Provider)
	}
	return Metrics{
		Followers: conn.FollowerCount,
		Posts:     conn.MediaCount,
	}
}
