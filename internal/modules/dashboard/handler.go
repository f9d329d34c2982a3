package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/adsight/adsight-api/internal/contextx"
	"github.com/adsight/adsight-api/internal/httpx"
	"github.com/adsight/adsight-api/internal/middleware"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
)

// Handler holds the dependencies for the dashboard module's HTTP handlers.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new handler for the dashboard module.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes sets up the routing for the dashboard module.
func (h *Handler) RegisterRoutes(api huma.API) {
	authed := huma.Middlewares{middleware.RequireUser(h.logger)}

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/dashboard/data",
		Summary:     "Aggregated analytics across connected platforms",
		Middlewares: authed,
	}, h.DataHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/dashboard/analytics",
		Summary:     "Analytics for one connected platform",
		Middlewares: authed,
	}, h.AnalyticsHandler)
}

// DataResponse wraps the aggregated dashboard payload.
type DataResponse struct {
	Body Data
}

func (h *Handler) DataHandler(ctx context.Context, _ *struct{}) (*DataResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	data, err := h.service.Data(ctx, userID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &DataResponse{Body: *data}, nil
}

// AnalyticsRequest selects the platform via query parameter.
type AnalyticsRequest struct {
	Platform string `query:"platform" required:"true"`
}

// AnalyticsResponse wraps the tagged per-platform analytics payload.
type AnalyticsResponse struct {
	Body AnalyticsResult
}

func (h *Handler) AnalyticsHandler(ctx context.Context, input *AnalyticsRequest) (*AnalyticsResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	result, err := h.service.Analytics(ctx, userID, policy.Platform(input.Platform))
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}
	return &AnalyticsResponse{Body: *result}, nil
}
