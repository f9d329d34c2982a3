package platform

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/contextx"
	"github.com/adsight/adsight-api/internal/httpx"
	"github.com/adsight/adsight-api/internal/middleware"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
	"github.com/adsight/adsight-api/internal/session"
)

// Handler holds the dependencies for the platform module's HTTP handlers.
type Handler struct {
	service Service
	logger  *slog.Logger
	codec   *session.Codec
	cfg     *config.Config
}

// NewHandler creates a new handler for the platform module.
func NewHandler(service Service, logger *slog.Logger, codec *session.Codec, cfg *config.Config) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		codec:   codec,
		cfg:     cfg,
	}
}

// RegisterRoutes sets up the routing for the platform module. Initiate and
// callback stay open: both must run for anonymous visitors linking their
// first account.
func (h *Handler) RegisterRoutes(api huma.API) {
	authed := huma.Middlewares{middleware.RequireUser(h.logger)}

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/auth/{platform}",
		Summary: "Start the OAuth flow for a platform",
	}, h.InitiateConnectHandler)

	huma.Register(api, huma.Operation{
		Method:  http.MethodGet,
		Path:    "/api/auth/{platform}/callback",
		Summary: "Complete the OAuth flow for a platform",
	}, h.CallbackHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/auth/{platform}/logout",
		Summary:     "Disconnect a platform",
		Middlewares: authed,
	}, h.DisconnectHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/platforms/connections",
		Summary:     "List connected platforms",
		Middlewares: authed,
	}, h.ConnectionsHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/platforms/refresh-tokens",
		Summary:     "Refresh expiring provider tokens",
		Middlewares: authed,
	}, h.RefreshTokensHandler)
}

func (h *Handler) secureCookies() bool {
	return h.cfg.Server.Env == "production"
}

// currentSession returns the decoded session from the request context, or a
// fresh empty one for anonymous requests.
func currentSession(ctx context.Context) *session.Data {
	if data, ok := ctx.Value(contextx.SessionKey).(*session.Data); ok && data != nil {
		return data
	}
	return &session.Data{}
}

// --- Initiate ---

// InitiateConnectRequest identifies the platform to connect.
type InitiateConnectRequest struct {
	Platform string `path:"platform"`
}

// InitiateConnectResponse hands the authorization URL to the client and
// binds the state nonce to the session cookie.
type InitiateConnectResponse struct {
	SetCookie []string `header:"Set-Cookie"`
	Body      struct {
		AuthURL string `json:"authUrl"`
	}
}

// InitiateConnectHandler starts the OAuth flow. The authorization URL is
// returned to the client rather than redirected to server-side.
func (h *Handler) InitiateConnectHandler(ctx context.Context, input *InitiateConnectRequest) (*InitiateConnectResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	sess := currentSession(ctx)

	authURL, err := h.service.InitiateConnect(ctx, userID, policy.Platform(input.Platform), sess)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	encoded, err := h.codec.Encode(sess)
	if err != nil {
		h.logger.Error("failed to encode pending session", "error", err)
		return nil, httpx.ToProblem(ctx, user.ErrInternal.WithCause(err))
	}

	resp := &InitiateConnectResponse{
		SetCookie: []string{session.Cookie(session.CookieName, encoded, 7*24*time.Hour, h.secureCookies())},
	}
	resp.Body.AuthURL = authURL
	return resp, nil
}

// --- Callback ---

// CallbackRequest carries the provider's redirect query parameters.
type CallbackRequest struct {
	Platform string `path:"platform"`
	Code     string `query:"code"`
	State    string `query:"state"`
	Error    string `query:"error"`
}

// CallbackResponse is always a redirect back to the app, with either a
// refreshed session cookie or an error code in the target URL.
type CallbackResponse struct {
	Status    int
	Location  string   `header:"Location"`
	SetCookie []string `header:"Set-Cookie"`
}

// CallbackHandler completes the OAuth flow. Flow failures never surface as
// HTTP errors; they redirect to the profile page with a machine-readable
// error code.
func (h *Handler) CallbackHandler(ctx context.Context, input *CallbackRequest) (*CallbackResponse, error) {
	p := policy.Platform(input.Platform)
	if !p.Valid() {
		return nil, httpx.ToProblem(ctx, ErrUnsupportedPlatform)
	}

	result := h.service.HandleCallback(ctx, CallbackInput{
		Platform: p,
		Code:     input.Code,
		State:    input.State,
		ErrParam: input.Error,
		Session:  currentSession(ctx),
	})

	resp := &CallbackResponse{
		Status:   http.StatusFound,
		Location: result.RedirectURL,
	}
	if result.Session != nil {
		encoded, err := h.codec.Encode(result.Session)
		if err != nil {
			h.logger.Error("failed to encode session after callback", "error", err)
		} else {
			resp.SetCookie = []string{session.Cookie(session.CookieName, encoded, 7*24*time.Hour, h.secureCookies())}
		}
	}
	return resp, nil
}

// --- Disconnect ---

// DisconnectRequest identifies the platform to disconnect.
type DisconnectRequest struct {
	Platform string `path:"platform"`
}

// DisconnectResponse drops the platform from the session cookie.
type DisconnectResponse struct {
	SetCookie []string `header:"Set-Cookie"`
	Body      struct {
		Message string `json:"message"`
	}
}

// DisconnectHandler removes a stored platform connection.
func (h *Handler) DisconnectHandler(ctx context.Context, input *DisconnectRequest) (*DisconnectResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	p := policy.Platform(input.Platform)
	if err := h.service.Disconnect(ctx, userID, p); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	sess := currentSession(ctx)
	sess.RemovePlatform(p)

	resp := &DisconnectResponse{}
	resp.Body.Message = "platform disconnected"
	if encoded, err := h.codec.Encode(sess); err == nil {
		resp.SetCookie = []string{session.Cookie(session.CookieName, encoded, 7*24*time.Hour, h.secureCookies())}
	}
	return resp, nil
}

// --- Connections ---

// ConnectionView is the public projection of a stored connection. Tokens
// never leave the server.
type ConnectionView struct {
	Platform          policy.Platform `json:"platform"`
	AccountID         string          `json:"accountId"`
	Username          string          `json:"username,omitempty"`
	TokenState        TokenState      `json:"tokenState"`
	CanManageAds      bool            `json:"canManageAds"`
	CanPublishContent bool            `json:"canPublishContent"`
	CanAccessInsights bool            `json:"canAccessInsights"`
	FollowerCount     int64           `json:"followerCount"`
	MediaCount        int64           `json:"mediaCount"`
	ConnectedAt       time.Time       `json:"connectedAt"`
}

// ConnectionsResponse lists the user's connected platforms.
type ConnectionsResponse struct {
	Body struct {
		Connections []ConnectionView `json:"connections"`
	}
}

// ConnectionsHandler lists the user's stored connections from the store.
func (h *Handler) ConnectionsHandler(ctx context.Context, _ *struct{}) (*ConnectionsResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	providers, err := h.service.ActiveProviders(ctx, userID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	now := time.Now()
	resp := &ConnectionsResponse{}
	resp.Body.Connections = make([]ConnectionView, 0, len(providers))
	for _, p := range providers {
		view := ConnectionView{
			Platform:          p.Provider,
			AccountID:         p.ProviderAccountID,
			TokenState:        p.TokenState(now),
			CanManageAds:      p.CanManageAds,
			CanPublishContent: p.CanPublishContent,
			CanAccessInsights: p.CanAccessInsights,
			FollowerCount:     p.FollowerCount,
			MediaCount:        p.MediaCount,
			ConnectedAt:       p.CreatedAt,
		}
		if p.Username != nil {
			view.Username = *p.Username
		}
		resp.Body.Connections = append(resp.Body.Connections, view)
	}
	return resp, nil
}

// --- Refresh ---

// RefreshTokensResponse reports the per-provider refresh outcomes.
type RefreshTokensResponse struct {
	Body RefreshReport
}

// RefreshTokensHandler refreshes every expiring provider token for the user.
func (h *Handler) RefreshTokensHandler(ctx context.Context, _ *struct{}) (*RefreshTokensResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	report, err := h.service.RefreshAllUserTokens(ctx, userID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &RefreshTokensResponse{Body: *report}, nil
}
