package session

import (
	"net/http"
	"time"
)

// CookieName is the name of the HTTP-only session cookie.
const CookieName = "adsight_session"

// First-party token cookies for the password-based auth path.
const (
	AccessTokenCookie  = "adsight_access"
	RefreshTokenCookie = "adsight_refresh"
)

// Cookie renders a Set-Cookie header value for a session-style cookie:
// HttpOnly, SameSite=Lax, Secure when requested. Returning the rendered
// string (rather than writing it) lets handlers compose it with other
// response headers without clobbering.
func Cookie(name, value string, maxAge time.Duration, secure bool) string {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return c.String()
}

// ClearCookie renders a Set-Cookie header value that expires the named
// cookie immediately.
func ClearCookie(name string, secure bool) string {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return c.String()
}
