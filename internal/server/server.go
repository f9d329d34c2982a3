package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/adsight/adsight-api/internal/cache"
	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/middleware"
	"github.com/adsight/adsight-api/internal/modules/billing"
	"github.com/adsight/adsight-api/internal/modules/dashboard"
	"github.com/adsight/adsight-api/internal/modules/platform"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/session"
)

// Handlers groups the per-module HTTP handlers wired in main.
type Handlers struct {
	User      *user.Handler
	Platform  *platform.Handler
	Dashboard *dashboard.Handler
	Billing   *billing.Handler
}

// New creates and configures a new server instance.
func New(cfg *config.Config, log *slog.Logger, codec *session.Codec, store cache.Store, handlers Handlers) chi.Router {
	router := chi.NewMux()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Logger)
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(60 * time.Second))

	apiConfig := huma.DefaultConfig("Adsight API", "1.0.0")
	apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"cookie": {
			Type: "apiKey",
			In:   "cookie",
			Name: session.CookieName,
		},
	}
	api := humachi.New(router, apiConfig)

	// Session decoding runs on every request; clients without a session
	// cookie can still authenticate with the short-lived access token.
	// Rate limiting protects the whole API surface with a fixed window per
	// client IP and path.
	validate := func(token string) (string, error) {
		return user.ValidateAccessToken(cfg.TokenSecret, token)
	}
	api.UseMiddleware(middleware.SessionHuma(codec, validate, log))
	api.UseMiddleware(middleware.RateLimitHuma(store, 100, time.Minute, log))

	handlers.User.RegisterRoutes(api)
	handlers.Platform.RegisterRoutes(api)
	handlers.Dashboard.RegisterRoutes(api)
	handlers.Billing.RegisterRoutes(api)

	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health Check",
		Description: "Responds with the server's health status.",
	}, func(ctx context.Context, input *struct{}) (*struct {
		Body struct {
			Status string `json:"status"`
		}
	}, error) {
		resp := &struct {
			Body struct {
				Status string `json:"status"`
			}
		}{}
		resp.Body.Status = "ok"
		return resp, nil
	})

	return router
}
