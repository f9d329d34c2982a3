package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/adsight/adsight-api/internal/contextx"
	apphttpx "github.com/adsight/adsight-api/internal/httpx"
	"github.com/adsight/adsight-api/internal/session"
)

// TokenValidator checks an access token and returns the user ID it belongs
// to. Wired to the user module's JWT validation in server setup.
type TokenValidator func(token string) (string, error)

// SessionHuma is a router-agnostic Huma middleware that decodes the session
// cookie and injects the session data and user ID into the request context.
// When no session cookie decodes, it falls back to the access-token cookie
// and then the Authorization bearer header.
//
// It is deliberately soft: a missing or invalid credential simply leaves the
// context unauthenticated. Handlers that require a user register RequireUser
// on their operations; the OAuth callback path needs to run with a pending
// (anonymous) session.
func SessionHuma(codec *session.Codec, validate TokenValidator, logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		userID := ""
		cookie, err := huma.ReadCookie(ctx, session.CookieName)
		if err == nil && cookie != nil && cookie.Value != "" {
			data, decodeErr := codec.Decode(cookie.Value)
			if decodeErr != nil {
				// Fail closed: treat every decode error as "no session".
				logger.Debug("discarding undecodable session cookie", "error", decodeErr)
			} else {
				ctx = huma.WithValue(ctx, contextx.SessionKey, data)
				userID = data.UserID
			}
		}

		if userID == "" && validate != nil {
			accessToken := ""
			if c, err := huma.ReadCookie(ctx, session.AccessTokenCookie); err == nil && c != nil {
				accessToken = c.Value
			}
			if accessToken == "" {
				accessToken = bearerToken(ctx.Header("Authorization"))
			}
			if accessToken != "" {
				id, tokenErr := validate(accessToken)
				if tokenErr != nil {
					logger.Debug("rejecting invalid access token", "error", tokenErr)
				} else {
					userID = id
				}
			}
		}

		if userID != "" {
			ctx = huma.WithValue(ctx, contextx.UserIDKey, userID)
		}
		next(ctx)
	}
}

// bearerToken extracts the token from an "Authorization: Bearer ..." header.
func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// RequireUser rejects requests that carry no authenticated user with an
// RFC7807 401 problem. Registered per-operation on authenticated routes.
func RequireUser(logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		userID, _ := ctx.Context().Value(contextx.UserIDKey).(string)
		if userID == "" {
			writeProblem(ctx, &apphttpx.Problem{
				Type:   "urn:problem:auth/err-unauthorized",
				Title:  http.StatusText(http.StatusUnauthorized),
				Status: http.StatusUnauthorized,
				Detail: "authentication required",
				Code:   "ErrUnauthorized",
			})
			return
		}
		next(ctx)
	}
}

// writeProblem emits an RFC7807 problem+json response directly from
// middleware, bypassing Huma's handler pipeline.
func writeProblem(ctx huma.Context, p *apphttpx.Problem) {
	r, w := humachi.Unwrap(ctx)
	if p.RequestID == "" {
		p.RequestID = chimw.GetReqID(r.Context())
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.GetStatus())
	_ = json.NewEncoder(w).Encode(p)
}
