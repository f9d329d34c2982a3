package user

import (
	"context"
	"errors"

	"github.com/adsight/adsight-api/internal/contextx"
	"github.com/adsight/adsight-api/internal/httpx"
	"github.com/adsight/adsight-api/internal/session"
	"github.com/adsight/adsight-api/internal/validation"
)

// --- DTOs (Data Transfer Objects) ---

// SignUpRequest defines the structure for the user registration request body.
type SignUpRequest struct {
	Body struct {
		Email           string `json:"email" validate:"required,email"`
		Username        string `json:"username" validate:"required,min=3,max=32"`
		Password        string `json:"password" validate:"required,min=8"`
		ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	}
}

// AuthResponse is the shared response shape for signup/signin/refresh.
type AuthResponse struct {
	SetCookie []string `header:"Set-Cookie"`
	Body      struct {
		User    UserView     `json:"user"`
		Session session.Data `json:"session"`
	}
}

// UserView is the public projection of a User.
type UserView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Image    string `json:"image,omitempty"`
	Plan     string `json:"plan"`
}

// SignInRequest defines the structure for the sign-in request body.
type SignInRequest struct {
	Body struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
}

// SignOutRequest carries the refresh cookie so the stored token can be revoked.
type SignOutRequest struct {
	RefreshToken string `cookie:"adsight_refresh" required:"false"`
}

// SignOutResponse clears the auth cookies.
type SignOutResponse struct {
	SetCookie []string `header:"Set-Cookie"`
	Body      struct {
		Message string `json:"message"`
	}
}

// RefreshSessionRequest carries the refresh cookie.
type RefreshSessionRequest struct {
	RefreshToken string `cookie:"adsight_refresh" required:"false"`
}

// SessionResponse returns the decoded session payload.
type SessionResponse struct {
	Body struct {
		Session session.Data `json:"session"`
	}
}

// --- Mappers ---

func toUserView(u *User) UserView {
	view := UserView{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		Plan:     string(u.Plan),
	}
	if u.Image != nil {
		view.Image = *u.Image
	}
	return view
}

// --- Handlers ---

// SignUpHandler handles the user registration endpoint.
func (h *Handler) SignUpHandler(ctx context.Context, input *SignUpRequest) (*AuthResponse, error) {
	if err := validation.ValidateStruct(input.Body); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	h.logger.Info("handling user sign-up request", "email", input.Body.Email)

	u, tokens, err := h.service.SignUp(ctx, input.Body.Email, input.Body.Username, input.Body.Password)
	if err != nil {
		h.logger.Warn("sign-up failed", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	return h.authResponse(ctx, u, tokens)
}

// SignInHandler handles the user sign-in endpoint.
func (h *Handler) SignInHandler(ctx context.Context, input *SignInRequest) (*AuthResponse, error) {
	if err := validation.ValidateStruct(input.Body); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	h.logger.Info("handling user sign-in request", "email", input.Body.Email)

	u, tokens, err := h.service.SignIn(ctx, input.Body.Email, input.Body.Password)
	if err != nil {
		// For both invalid credentials and user not found, return a generic
		// unauthorized error to prevent email enumeration attacks.
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrNotFound) {
			return nil, httpx.ToProblem(ctx, ErrInvalidCredentials)
		}
		return nil, httpx.ToProblem(ctx, err)
	}

	return h.authResponse(ctx, u, tokens)
}

// SignOutHandler clears the auth cookies. Server-side cleanup is best-effort:
// the cookie-clearing response is emitted even when the store is unreachable.
func (h *Handler) SignOutHandler(ctx context.Context, input *SignOutRequest) (*SignOutResponse, error) {
	if err := h.service.SignOut(ctx, input.RefreshToken); err != nil {
		// cookies are cleared regardless of store cleanup
		h.logger.Warn("sign-out cleanup failed", "error", err)
	}

	resp := &SignOutResponse{SetCookie: h.clearAuthCookies()}
	resp.Body.Message = "signed out"
	return resp, nil
}

// RefreshSessionHandler rotates the refresh token and re-issues the session
// cookie with fresh platform summaries from the store.
func (h *Handler) RefreshSessionHandler(ctx context.Context, input *RefreshSessionRequest) (*AuthResponse, error) {
	u, tokens, err := h.service.RefreshSession(ctx, input.RefreshToken)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return h.authResponse(ctx, u, tokens)
}

// GetSessionHandler returns the decoded session for the current request.
func (h *Handler) GetSessionHandler(ctx context.Context, _ *struct{}) (*SessionResponse, error) {
	data, ok := ctx.Value(contextx.SessionKey).(*session.Data)
	if !ok || data == nil || data.UserID == "" {
		return nil, httpx.ToProblem(ctx, ErrUnauthorized)
	}

	resp := &SessionResponse{}
	resp.Body.Session = *data
	return resp, nil
}

// authResponse builds the common sign-in-shaped response: session cookie,
// token cookies, and the user/session payload.
func (h *Handler) authResponse(ctx context.Context, u *User, tokens *AuthTokens) (*AuthResponse, error) {
	data := h.buildSession(ctx, u)
	cookies, err := h.sessionCookies(data, tokens)
	if err != nil {
		h.logger.Error("failed to encode session cookie", "error", err)
		return nil, httpx.ToProblem(ctx, ErrInternal.WithCause(err))
	}

	resp := &AuthResponse{SetCookie: cookies}
	resp.Body.User = toUserView(u)
	resp.Body.Session = *data
	return resp, nil
}
