package platform

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/adsight/adsight-api/internal/database"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
)

// Repository defines the database operations for stored platform connections.
type Repository interface {
	// Upsert inserts the connection or, when a row for (userID, provider)
	// already exists, updates it in place. Reconnect is idempotent.
	Upsert(ctx context.Context, p *AuthProvider) error

	FindByUserAndProvider(ctx context.Context, userID string, provider policy.Platform) (*AuthProvider, error)
	FindByProviderAccount(ctx context.Context, provider policy.Platform, providerAccountID string) (*AuthProvider, error)
	ListByUser(ctx context.Context, userID string) ([]*AuthProvider, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	UpdateToken(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time) error
	Delete(ctx context.Context, userID string, provider policy.Platform) error
}

type repository struct {
	db   database.DBTX
	psql squirrel.StatementBuilderType
}

// NewRepository creates a new platform repository with the given database connection.
func NewRepository(db database.DBTX) Repository {
	return &repository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *repository) Upsert(ctx context.Context, p *AuthProvider) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query, args, err := r.psql.Insert("auth_providers").
		Columns("id", "user_id", "provider", "provider_account_id", "username",
			"access_token", "refresh_token", "expires_at",
			"can_manage_ads", "can_publish_content", "can_access_insights",
			"follower_count", "media_count", "analytics_summary",
			"created_at", "updated_at").
		Values(p.ID, p.UserID, p.Provider, p.ProviderAccountID, p.Username,
			p.AccessToken, p.RefreshToken, p.ExpiresAt,
			p.CanManageAds, p.CanPublishContent, p.CanAccessInsights,
			p.FollowerCount, p.MediaCount, p.AnalyticsSummary,
			p.CreatedAt, p.UpdatedAt).
		Suffix(`ON CONFLICT (user_id, provider) DO UPDATE SET
			provider_account_id = EXCLUDED.provider_account_id,
			username = EXCLUDED.username,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			can_manage_ads = EXCLUDED.can_manage_ads,
			can_publish_content = EXCLUDED.can_publish_content,
			can_access_insights = EXCLUDED.can_access_insights,
			follower_count = EXCLUDED.follower_count,
			media_count = EXCLUDED.media_count,
			analytics_summary = EXCLUDED.analytics_summary,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

func (r *repository) FindByUserAndProvider(ctx context.Context, userID string, provider policy.Platform) (*AuthProvider, error) {
	return r.findOne(ctx, squirrel.Eq{"user_id": userID, "provider": provider})
}

func (r *repository) FindByProviderAccount(ctx context.Context, provider policy.Platform, providerAccountID string) (*AuthProvider, error) {
	return r.findOne(ctx, squirrel.Eq{"provider": provider, "provider_account_id": providerAccountID})
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]*AuthProvider, error) {
	query, args, err := r.psql.Select("*").
		From("auth_providers").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("provider").
		ToSql()
	if err != nil {
		return nil, err
	}

	var providers []*AuthProvider
	if err := pgxscan.Select(ctx, r.db, &providers, query, args...); err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repository) CountByUser(ctx context.Context, userID string) (int, error) {
	query, args, err := r.psql.Select("COUNT(*)").
		From("auth_providers").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) UpdateToken(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	query, args, err := r.psql.Update("auth_providers").
		Set("access_token", accessToken).
		Set("refresh_token", refreshToken).
		Set("expires_at", expiresAt).
		Set("updated_at", time.Now()).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, userID string, provider policy.Platform) error {
	query, args, err := r.psql.Delete("auth_providers").
		Where(squirrel.Eq{"user_id": userID, "provider": provider}).
		ToSql()
	if err != nil {
		return err
	}

	ct, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrPlatformNotConnected
	}
	return nil
}

func (r *repository) findOne(ctx context.Context, condition squirrel.Sqlizer) (*AuthProvider, error) {
	query, args, err := r.psql.Select("*").
		From("auth_providers").
		Where(condition).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var p AuthProvider
	err = pgxscan.Get(ctx, r.db, &p, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound.WithCause(err)
		}
		return nil, err
	}

	return &p, nil
}
