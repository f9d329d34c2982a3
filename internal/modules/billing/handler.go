package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/adsight/adsight-api/internal/contextx"
	"github.com/adsight/adsight-api/internal/httpx"
	"github.com/adsight/adsight-api/internal/middleware"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
	"github.com/adsight/adsight-api/internal/validation"
)

// Handler holds the dependencies for the billing module's HTTP handlers.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// NewHandler creates a new handler for the billing module.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes sets up the routing for the billing module. The webhook
// stays open: Stripe authenticates with its signature header, not a session.
func (h *Handler) RegisterRoutes(api huma.API) {
	authed := huma.Middlewares{middleware.RequireUser(h.logger)}

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/payments/create-checkout",
		Summary:     "Create a Stripe checkout session",
		Middlewares: authed,
	}, h.CreateCheckoutHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/api/payments/create-portal",
		Summary:     "Create a Stripe billing portal session",
		Middlewares: authed,
	}, h.CreatePortalHandler)

	huma.Register(api, huma.Operation{
		Method:  http.MethodPost,
		Path:    "/api/payments/webhook",
		Summary: "Stripe webhook receiver",
	}, h.WebhookHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/payments/subscription",
		Summary:     "Get the current user's subscription",
		Middlewares: authed,
	}, h.SubscriptionHandler)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/api/payments/invoices",
		Summary:     "List the current user's invoices",
		Middlewares: authed,
	}, h.InvoicesHandler)
}

// --- Checkout ---

// CreateCheckoutRequest selects the plan to subscribe to.
type CreateCheckoutRequest struct {
	Body struct {
		Plan string `json:"plan" validate:"required,oneof=PREMIUM_MONTHLY PREMIUM_YEARLY"`
	}
}

// CreateCheckoutResponse returns the hosted checkout URL.
type CreateCheckoutResponse struct {
	Body struct {
		URL string `json:"url"`
	}
}

func (h *Handler) CreateCheckoutHandler(ctx context.Context, input *CreateCheckoutRequest) (*CreateCheckoutResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}
	if err := validation.ValidateStruct(input.Body); err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	url, err := h.service.CreateCheckoutSession(ctx, userID, policy.Plan(input.Body.Plan))
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &CreateCheckoutResponse{}
	resp.Body.URL = url
	return resp, nil
}

// --- Portal ---

// CreatePortalResponse returns the hosted billing portal URL.
type CreatePortalResponse struct {
	Body struct {
		URL string `json:"url"`
	}
}

func (h *Handler) CreatePortalHandler(ctx context.Context, _ *struct{}) (*CreatePortalResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	url, err := h.service.CreatePortalSession(ctx, userID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &CreatePortalResponse{}
	resp.Body.URL = url
	return resp, nil
}

// --- Webhook ---

// WebhookRequest carries the raw payload for signature verification; the
// body must not be parsed before the signature check.
type WebhookRequest struct {
	Signature string `header:"Stripe-Signature"`
	RawBody   []byte
}

// WebhookResponse acknowledges the event.
type WebhookResponse struct {
	Body struct {
		Received bool `json:"received"`
	}
}

func (h *Handler) WebhookHandler(ctx context.Context, input *WebhookRequest) (*WebhookResponse, error) {
	if err := h.service.HandleWebhook(ctx, input.RawBody, input.Signature); err != nil {
		h.logger.Error("stripe webhook rejected", "error", err)
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &WebhookResponse{}
	resp.Body.Received = true
	return resp, nil
}

// --- Subscription / invoices ---

// SubscriptionView is the public projection of a mirrored subscription.
type SubscriptionView struct {
	Plan               policy.Plan        `json:"plan"`
	Status             SubscriptionStatus `json:"status"`
	CurrentPeriodStart time.Time          `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time          `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool               `json:"cancelAtPeriodEnd"`
}

// SubscriptionResponse wraps the current subscription.
type SubscriptionResponse struct {
	Body SubscriptionView
}

func (h *Handler) SubscriptionHandler(ctx context.Context, _ *struct{}) (*SubscriptionResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	sub, err := h.service.GetSubscription(ctx, userID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	return &SubscriptionResponse{Body: SubscriptionView{
		Plan:               sub.Plan,
		Status:             sub.Status,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}}, nil
}

// InvoiceView is the public projection of a mirrored invoice.
type InvoiceView struct {
	ID         string    `json:"id"`
	AmountDue  int64     `json:"amountDue"`
	AmountPaid int64     `json:"amountPaid"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// InvoicesResponse lists the user's invoices.
type InvoicesResponse struct {
	Body struct {
		Invoices []InvoiceView `json:"invoices"`
	}
}

func (h *Handler) InvoicesHandler(ctx context.Context, _ *struct{}) (*InvoicesResponse, error) {
	userID, _ := ctx.Value(contextx.UserIDKey).(string)
	if userID == "" {
		return nil, httpx.ToProblem(ctx, user.ErrUnauthorized)
	}

	invoices, err := h.service.ListInvoices(ctx, userID)
	if err != nil {
		return nil, httpx.ToProblem(ctx, err)
	}

	resp := &InvoicesResponse{}
	resp.Body.Invoices = make([]InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		resp.Body.Invoices = append(resp.Body.Invoices, InvoiceView{
			ID:         inv.StripeInvoiceID,
			AmountDue:  inv.AmountDue,
			AmountPaid: inv.AmountPaid,
			Currency:   inv.Currency,
			Status:     inv.Status,
			CreatedAt:  inv.CreatedAt,
		})
	}
	return resp, nil
}
