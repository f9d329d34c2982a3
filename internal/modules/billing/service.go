package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	billingportalsession "github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
)

// Service defines the billing operations: Stripe checkout/portal session
// creation and the webhook path that keeps the local mirror and the user's
// plan in sync with Stripe.
type Service interface {
	CreateCheckoutSession(ctx context.Context, userID string, plan policy.Plan) (string, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	GetSubscription(ctx context.Context, userID string) (*Subscription, error)
	ListInvoices(ctx context.Context, userID string) ([]*Invoice, error)
}

type service struct {
	repo   Repository
	users  user.Repository
	logger *slog.Logger
	config *config.Config
}

// Config holds the dependencies for the billing service.
type Config struct {
	Repo   Repository
	Users  user.Repository
	Logger *slog.Logger
	Config *config.Config
}

// NewService creates a new billing service and configures the Stripe client.
func NewService(cfg *Config) Service {
	stripe.Key = cfg.Config.Stripe.SecretKey
	return &service{
		repo:   cfg.Repo,
		users:  cfg.Users,
		logger: cfg.Logger,
		config: cfg.Config,
	}
}

// planToPriceID maps a premium plan onto its configured Stripe price.
func (s *service) planToPriceID(plan policy.Plan) string {
	switch plan {
	case policy.PlanPremiumMonth:
		return s.config.Stripe.PriceMonthlyID
	case policy.PlanPremiumYear:
		return s.config.Stripe.PriceYearlyID
	default:
		return ""
	}
}

// priceToPlan is the inverse mapping, used by the webhook path.
func (s *service) priceToPlan(priceID string) policy.Plan {
	switch priceID {
	case s.config.Stripe.PriceMonthlyID:
		return policy.PlanPremiumMonth
	case s.config.Stripe.PriceYearlyID:
		return policy.PlanPremiumYear
	default:
		return policy.PlanFreemium
	}
}

func (s *service) CreateCheckoutSession(ctx context.Context, userID string, plan policy.Plan) (string, error) {
	priceID := s.planToPriceID(plan)
	if priceID == "" {
		return "", ErrInvalidPlan.WithDetail(fmt.Sprintf("no checkout price for plan %q", plan))
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(u.ID),
		CustomerEmail:     stripe.String(u.Email),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": u.ID},
		},
		SuccessURL: stripe.String(s.config.AppBaseURL + "/profile?tab=billing&success=true"),
		CancelURL:  stripe.String(s.config.AppBaseURL + "/profile?tab=billing&canceled=true"),
	}

	session, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	s.logger.Info("checkout session created", "userId", u.ID, "plan", plan)
	return session.URL, nil
}

func (s *service) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	sub, err := s.repo.FindSubscriptionByUser(ctx, userID)
	if err != nil {
		return "", err
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(sub.StripeCustomerID),
		ReturnURL: stripe.String(s.config.AppBaseURL + "/profile?tab=billing"),
	}

	session, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return session.URL, nil
}

func (s *service) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	return s.repo.FindSubscriptionByUser(ctx, userID)
}

func (s *service) ListInvoices(ctx context.Context, userID string) ([]*Invoice, error) {
	return s.repo.ListInvoicesByUser(ctx, userID)
}

// HandleWebhook verifies the Stripe signature and applies the event to the
// local mirror. Unhandled event types are acknowledged without action so
// Stripe does not retry them.
func (s *service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, s.config.Stripe.WebhookSecret)
	if err != nil {
		return ErrWebhookSignature.WithCause(err)
	}
	return s.applyEvent(ctx, &event)
}

func (s *service) applyEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to unmarshal subscription: %w", err)
		}
		return s.syncSubscription(ctx, &sub, false)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to unmarshal subscription: %w", err)
		}
		return s.syncSubscription(ctx, &sub, true)

	case "invoice.paid", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("failed to unmarshal invoice: %w", err)
		}
		return s.syncInvoice(ctx, &inv)

	default:
		s.logger.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

// syncSubscription mirrors the Stripe subscription locally and moves the
// user's plan to match its entitlement.
func (s *service) syncSubscription(ctx context.Context, sub *stripe.Subscription, deleted bool) error {
	userID := sub.Metadata["user_id"]
	if userID == "" {
		// Older subscriptions may predate the metadata; fall back to the mirror.
		existing, err := s.repo.FindSubscriptionByStripeID(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("cannot attribute subscription %s to a user: %w", sub.ID, err)
		}
		userID = existing.UserID
	}

	plan := policy.PlanFreemium
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		plan = s.priceToPlan(sub.Items.Data[0].Price.ID)
	}

	status := statusFromStripe(sub.Status)
	if deleted {
		status = StatusCanceled
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	mirror := &Subscription{
		ID:                   id.String(),
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		Plan:                 plan,
		Status:               status,
		CurrentPeriodStart:   time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		mirror.StripeCustomerID = sub.Customer.ID
	}
	if err := s.repo.UpsertSubscription(ctx, mirror); err != nil {
		return fmt.Errorf("failed to mirror subscription: %w", err)
	}

	effectivePlan := plan
	if !status.Active() {
		effectivePlan = policy.PlanFreemium
	}
	if err := s.users.UpdatePlan(ctx, userID, effectivePlan); err != nil {
		return fmt.Errorf("failed to update user plan: %w", err)
	}

	s.logger.Info("subscription synced", "userId", userID, "status", status, "plan", effectivePlan)
	return nil
}

func (s *service) syncInvoice(ctx context.Context, inv *stripe.Invoice) error {
	var subscriptionID *string
	userID := ""
	if inv.Subscription != nil {
		mirror, err := s.repo.FindSubscriptionByStripeID(ctx, inv.Subscription.ID)
		if err == nil {
			userID = mirror.UserID
			subscriptionID = &mirror.ID
		}
	}
	if userID == "" {
		// An invoice that cannot be attributed is logged but acknowledged;
		// Stripe retrying it would not help.
		s.logger.Warn("skipping unattributable invoice", "invoiceId", inv.ID)
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	mirror := &Invoice{
		ID:              id.String(),
		UserID:          userID,
		StripeInvoiceID: inv.ID,
		SubscriptionID:  subscriptionID,
		AmountDue:       inv.AmountDue,
		AmountPaid:      inv.AmountPaid,
		Currency:        string(inv.Currency),
		Status:          string(inv.Status),
	}
	if err := s.repo.UpsertInvoice(ctx, mirror); err != nil {
		return fmt.Errorf("failed to mirror invoice: %w", err)
	}

	s.logger.Info("invoice synced", "userId", userID, "status", inv.Status)
	return nil
}

// statusFromStripe maps Stripe's lowercase status values onto the local enum.
func statusFromStripe(status stripe.SubscriptionStatus) SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusCanceled:
		return StatusCanceled
	case stripe.SubscriptionStatusIncomplete:
		return StatusIncomplete
	case stripe.SubscriptionStatusIncompleteExpired:
		return StatusIncompleteExpired
	case stripe.SubscriptionStatusPastDue:
		return StatusPastDue
	case stripe.SubscriptionStatusTrialing:
		return StatusTrialing
	case stripe.SubscriptionStatusUnpaid:
		return StatusUnpaid
	default:
		return StatusIncomplete
	}
}
