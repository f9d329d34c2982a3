package user

import (
	"time"

	"github.com/adsight/adsight-api/internal/policy"
)

// User represents an account in the system.
// This is the core entity for the user module, used across the repository, service, and handler layers.
type User struct {
	ID           string      `db:"id"`
	Email        string      `db:"email"`
	Username     string      `db:"username"`
	PasswordHash *string     `db:"password_hash"` // nil for OAuth-only accounts
	Image        *string     `db:"image"`
	Plan         policy.Plan `db:"plan"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLoginAt  *time.Time  `db:"last_login_at"`
}

// HasPassword reports whether this account can sign in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// TokenType classifies first-party tokens (separate from OAuth provider tokens).
type TokenType string

const (
	TokenTypeAccess            TokenType = "ACCESS_USER"
	TokenTypeRefresh           TokenType = "REFRESH_USER"
	TokenTypeResetPassword     TokenType = "RESET_PASSWORD"
	TokenTypeVerificationEmail TokenType = "VERIFICATION_EMAIL"
)

// Token is a stored first-party token. Only the SHA-256 hash of the raw
// token is persisted. Validating an expired token deletes it (lazy cleanup),
// and refresh rotation replaces the previous REFRESH_USER row.
type Token struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Type      TokenType `db:"type"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// AuthTokens is the pair issued to a signed-in user on the password path.
// The access token is a short-lived JWT; the refresh token is opaque and
// stored hashed.
type AuthTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
