package user

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/middleware"
	"github.com/adsight/adsight-api/internal/policy"
	"github.com/adsight/adsight-api/internal/session"
)

// PlatformSource supplies the connected-platform summaries for a user when
// building a session cookie. Implemented by the platform module's service;
// abstracted here so the user module does not depend on it.
type PlatformSource interface {
	SessionSummaries(ctx context.Context, userID string) (map[policy.Platform]*session.PlatformSummary, error)
}

// Handler holds the dependencies for the user module's HTTP handlers.
type Handler struct {
	service   Service
	logger    *slog.Logger
	codec     *session.Codec
	cfg       *config.Config
	platforms PlatformSource
}

// NewHandler creates a new handler for the user module.
func NewHandler(service Service, logger *slog.Logger, codec *session.Codec, cfg *config.Config, platforms PlatformSource) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		codec:     codec,
		cfg:       cfg,
		platforms: platforms,
	}
}

// RegisterRoutes sets up the routing for the user module.
// It defines all the API endpoints and connects them to their respective handler functions.
func (h *Handler) RegisterRoutes(api huma.API) {
	authed := huma.Middlewares{middleware.RequireUser(h.logger)}

	// --- Authentication Routes ---
	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/signup",
		Summary: "Register a new user",
	}, h.SignUpHandler)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/signin",
		Summary: "Sign in a user",
	}, h.SignInHandler)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/signout",
		Summary: "Sign out the current user",
	}, h.SignOutHandler)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/refresh-session",
		Summary: "Rotate the refresh token and rebuild the session",
	}, h.RefreshSessionHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/auth/session",
		Summary:     "Return the current session payload",
		Middlewares: authed,
	}, h.GetSessionHandler)

	// --- Password Management Routes ---
	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/password/forgot",
		Summary: "Initiate password reset",
	}, h.ForgotPasswordHandler)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/password/reset",
		Summary: "Reset password with a token",
	}, h.ResetPasswordHandler)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/verify-email",
		Summary: "Verify an email address with a token",
	}, h.VerifyEmailHandler)

	// --- Profile Routes ---
	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/user/profile",
		Summary:     "Get the current user's profile",
		Middlewares: authed,
	}, h.GetProfileHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPatch,
		Path:        "/api/user/profile",
		Summary:     "Update the current user's profile",
		Middlewares: authed,
	}, h.UpdateProfileHandler)
}

// secureCookies reports whether cookies should carry the Secure attribute.
func (h *Handler) secureCookies() bool {
	return h.cfg.Server.Env == "production"
}

// buildSession assembles the session payload for a signed-in user, pulling
// the connected-platform summaries from the store.
func (h *Handler) buildSession(ctx context.Context, u *User) *session.Data {
	data := &session.Data{
		UserID:   u.ID,
		Plan:     u.Plan,
		Email:    u.Email,
		Username: u.Username,
	}
	if u.Image != nil {
		data.Image = *u.Image
	}
	if h.platforms != nil {
		summaries, err := h.platforms.SessionSummaries(ctx, u.ID)
		if err != nil {
			// The cookie is an advisory cache; an empty platform map just means
			// a store round trip later.
			h.logger.Warn("failed to load platform summaries for session", "user_id", u.ID, "error", err)
		} else {
			data.Platforms = summaries
		}
	}
	return data
}

// sessionCookies encodes the session and renders the full Set-Cookie set for
// a sign-in response.
func (h *Handler) sessionCookies(data *session.Data, tokens *AuthTokens) ([]string, error) {
	encoded, err := h.codec.Encode(data)
	if err != nil {
		return nil, err
	}
	secure := h.secureCookies()
	cookies := []string{
		session.Cookie(session.CookieName, encoded, 7*24*time.Hour, secure),
	}
	if tokens != nil {
		cookies = append(cookies,
			session.Cookie(session.AccessTokenCookie, tokens.AccessToken, time.Until(tokens.AccessExpiresAt), secure),
			session.Cookie(session.RefreshTokenCookie, tokens.RefreshToken, time.Until(tokens.RefreshExpiresAt), secure),
		)
	}
	return cookies, nil
}

// clearAuthCookies renders the Set-Cookie set that signs a client out.
func (h *Handler) clearAuthCookies() []string {
	secure := h.secureCookies()
	return []string{
		session.ClearCookie(session.CookieName, secure),
		session.ClearCookie(session.AccessTokenCookie, secure),
		session.ClearCookie(session.RefreshTokenCookie, secure),
	}
}
