package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/adsight/adsight-api/internal/policy"
)

var (
	ErrInvalid = errors.New("session invalid")
	ErrExpired = errors.New("session expired")
)

// PlatformSummary is the small per-platform token projection embedded in the
// session cookie. Large provider payloads (ad account lists, business
// accounts) stay in the database and are re-fetched on demand; only what is
// needed to render the connections tab without a round trip lives here.
type PlatformSummary struct {
	AccountID   string `json:"accountId"`
	Username    string `json:"username,omitempty"`
	TokenExpiry int64  `json:"tokenExpiry,omitempty"` // unix seconds
}

// PendingOAuth binds an in-flight OAuth authorization to this session.
// The state nonce must match on callback or the flow is rejected.
type PendingOAuth struct {
	State     string          `json:"state"`
	Provider  policy.Platform `json:"provider"`
	Verifier  string          `json:"verifier,omitempty"` // PKCE code verifier
	ExpiresAt int64           `json:"expiresAt"`          // unix seconds
}

// Data is the claim set carried by the session cookie.
//
// UserID may be empty for a pending session that exists only to carry an
// OAuth state nonce through a sign-in-via-provider flow.
//
// The cookie is a derived, potentially stale cache of store state. Any
// authorization decision with real stakes must re-verify against the store.
type Data struct {
	UserID    string                               `json:"userId,omitempty"`
	Plan      policy.Plan                          `json:"plan,omitempty"`
	Email     string                               `json:"email,omitempty"`
	Username  string                               `json:"username,omitempty"`
	Image     string                               `json:"image,omitempty"`
	Platforms map[policy.Platform]*PlatformSummary `json:"platforms,omitempty"`
	Pending   *PendingOAuth                        `json:"pending,omitempty"`
}

// Platform returns the summary for a platform, or nil when not connected.
func (d *Data) Platform(p policy.Platform) *PlatformSummary {
	if d == nil || d.Platforms == nil {
		return nil
	}
	return d.Platforms[p]
}

// SetPlatform merges a platform summary into the session.
func (d *Data) SetPlatform(p policy.Platform, summary *PlatformSummary) {
	if d.Platforms == nil {
		d.Platforms = make(map[policy.Platform]*PlatformSummary)
	}
	d.Platforms[p] = summary
}

// RemovePlatform drops a platform's summary from the session.
func (d *Data) RemovePlatform(p policy.Platform) {
	delete(d.Platforms, p)
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Session Data `json:"sess"`
}

// Codec signs session data into a compact cookie value and back.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec builds a Codec with the given HMAC secret and session lifetime.
// A zero ttl defaults to 7 days.
func NewCodec(secret string, ttl time.Duration) *Codec {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Encode serializes the session data into a signed cookie value.
func (c *Codec) Encode(data *Data) (string, error) {
	now := c.now()
	claims := &sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   data.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Session: *data,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Decode validates a cookie value and returns the session data. It fails
// closed: any malformed, expired, or signature-mismatched value yields an
// error, and callers treat every error as "no session".
func (c *Codec) Decode(cookieValue string) (*Data, error) {
	if cookieValue == "" {
		return nil, ErrInvalid
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(cookieValue, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !token.Valid {
		return nil, ErrInvalid
	}

	data := claims.Session
	return &data, nil
}

// NewStateNonce draws a single-use OAuth state nonce from crypto/rand.
// 32 bytes gives 256 bits of entropy.
func NewStateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
