package platform

import (
	"time"

	"github.com/adsight/adsight-api/internal/policy"
)

// AuthProvider is a stored third-party account connection: one row per user
// per platform, upserted on reconnect.
type AuthProvider struct {
	ID                string          `db:"id"`
	UserID            string          `db:"user_id"`
	Provider          policy.Platform `db:"provider"`
	ProviderAccountID string          `db:"provider_account_id"`
	Username          *string         `db:"username"`
	AccessToken       string          `db:"access_token"`
	RefreshToken      *string         `db:"refresh_token"`
	ExpiresAt         *time.Time      `db:"expires_at"`
	CanManageAds      bool            `db:"can_manage_ads"`
	CanPublishContent bool            `db:"can_publish_content"`
	CanAccessInsights bool            `db:"can_access_insights"`
	FollowerCount     int64           `db:"follower_count"`
	MediaCount        int64           `db:"media_count"`
	AnalyticsSummary  []byte          `db:"analytics_summary"` // JSONB blob
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// expiryThreshold is how close to expiry a token counts as expiring soon.
const expiryThreshold = 5 * time.Minute

// TokenState classifies a stored provider token's lifecycle position.
type TokenState string

const (
	TokenStateValid        TokenState = "VALID"
	TokenStateExpiringSoon TokenState = "EXPIRING_SOON"
	TokenStateExpired      TokenState = "EXPIRED"
)

// TokenState returns the token's current lifecycle state. Tokens without a
// recorded expiry never expire from our point of view.
func (p *AuthProvider) TokenState(now time.Time) TokenState {
	if p.ExpiresAt == nil {
		return TokenStateValid
	}
	switch {
	case now.After(*p.ExpiresAt):
		return TokenStateExpired
	case now.After(p.ExpiresAt.Add(-expiryThreshold)):
		return TokenStateExpiringSoon
	default:
		return TokenStateValid
	}
}

// NeedsRefresh reports whether a refresh attempt is due.
func (p *AuthProvider) NeedsRefresh(now time.Time) bool {
	return p.TokenState(now) != TokenStateValid
}

// RefreshStatus is the per-provider outcome of a refresh pass.
type RefreshStatus string

const (
	// RefreshStatusValid means the token was not near expiry; no attempt made.
	RefreshStatusValid RefreshStatus = "valid"
	// RefreshStatusRefreshed means a new token was obtained and persisted.
	RefreshStatusRefreshed RefreshStatus = "refreshed"
	// RefreshStatusReconnectRequired means the refresh attempt failed; the
	// user has to go through the OAuth flow again.
	RefreshStatusReconnectRequired RefreshStatus = "reconnect_required"
)

// RefreshOutcome records what happened to one provider during a refresh pass.
type RefreshOutcome struct {
	Status RefreshStatus `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// RefreshReport is the aggregate result of RefreshAllUserTokens. Success is
// true whenever the pass completed; individual providers may still have
// failed (partial failure is isolated, not fatal).
type RefreshReport struct {
	Success bool                               `json:"success"`
	Results map[policy.Platform]RefreshOutcome `json:"results"`
}
