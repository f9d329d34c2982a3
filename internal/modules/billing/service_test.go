package billing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/adsight/adsight-api/internal/config"
	"github.com/adsight/adsight-api/internal/modules/user"
	"github.com/adsight/adsight-api/internal/policy"
)

// --- Fakes ---

type fakeRepo struct {
	subsByStripeID map[string]*Subscription
	subsByUser     map[string]*Subscription
	invoices       map[string]*Invoice
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subsByStripeID: make(map[string]*Subscription),
		subsByUser:     make(map[string]*Subscription),
		invoices:       make(map[string]*Invoice),
	}
}

func (f *fakeRepo) UpsertSubscription(_ context.Context, sub *Subscription) error {
	if existing, ok := f.subsByStripeID[sub.StripeSubscriptionID]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	}
	f.subsByStripeID[sub.StripeSubscriptionID] = sub
	f.subsByUser[sub.UserID] = sub
	return nil
}

func (f *fakeRepo) FindSubscriptionByUser(_ context.Context, userID string) (*Subscription, error) {
	if sub, ok := f.subsByUser[userID]; ok {
		return sub, nil
	}
	return nil, ErrNoSubscription
}

func (f *fakeRepo) FindSubscriptionByStripeID(_ context.Context, id string) (*Subscription, error) {
	if sub, ok := f.subsByStripeID[id]; ok {
		return sub, nil
	}
	return nil, ErrNoSubscription
}

func (f *fakeRepo) UpsertInvoice(_ context.Context, inv *Invoice) error {
	f.invoices[inv.StripeInvoiceID] = inv
	return nil
}

func (f *fakeRepo) ListInvoicesByUser(_ context.Context, userID string) ([]*Invoice, error) {
	var out []*Invoice
	for _, inv := range f.invoices {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out, nil
}

type fakeUsers struct {
	plans map[string]policy.Plan
}

func (f *fakeUsers) UpdatePlan(_ context.Context, userID string, plan policy.Plan) error {
	f.plans[userID] = plan
	return nil
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*user.User, error) {
	if plan, ok := f.plans[id]; ok {
		return &user.User{ID: id, Email: id + "@test.local", Plan: plan}, nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) Create(context.Context, *user.User) error                   { panic("not used") }
func (f *fakeUsers) FindByEmail(context.Context, string) (*user.User, error)    { panic("not used") }
func (f *fakeUsers) FindByUsername(context.Context, string) (*user.User, error) { panic("not used") }
func (f *fakeUsers) Update(context.Context, *user.User) error                   { panic("not used") }
func (f *fakeUsers) UpdateLastLogin(context.Context, string, time.Time) error   { panic("not used") }
func (f *fakeUsers) UpdatePassword(context.Context, string, string) error       { panic("not used") }
func (f *fakeUsers) CreateToken(context.Context, *user.Token) error             { panic("not used") }
func (f *fakeUsers) FindTokenByHash(context.Context, string, user.TokenType) (*user.Token, error) {
	panic("not used")
}
func (f *fakeUsers) DeleteToken(context.Context, string) error { panic("not used") }
func (f *fakeUsers) DeleteTokensByUserAndType(context.Context, string, user.TokenType) error {
	panic("not used")
}
func (f *fakeUsers) DeleteExpiredTokens(context.Context) error { panic("not used") }

// --- Harness ---

func newTestService() (*service, *fakeRepo, *fakeUsers) {
	repo := newFakeRepo()
	users := &fakeUsers{plans: map[string]policy.Plan{"user-1": policy.PlanFreemium}}
	cfg := &config.Config{AppBaseURL: "https://app.test"}
	cfg.Stripe.SecretKey = "sk_test_123"
	cfg.Stripe.WebhookSecret = "whsec_test"
	cfg.Stripe.PriceMonthlyID = "price_monthly"
	cfg.Stripe.PriceYearlyID = "price_yearly"

	svc := NewService(&Config{
		Repo:   repo,
		Users:  users,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
	})
	return svc.(*service), repo, users
}

func subscriptionEvent(t *testing.T, eventType string, sub map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return &stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

// --- Tests ---

func TestApplyEvent_SubscriptionCreatedUpgradesPlan(t *testing.T) {
	svc, repo, users := newTestService()

	event := subscriptionEvent(t, "customer.subscription.created", map[string]any{
		"id":                   "sub_1",
		"status":               "active",
		"current_period_start": 1700000000,
		"current_period_end":   1702592000,
		"cancel_at_period_end": false,
		"customer":             map[string]any{"id": "cus_1"},
		"metadata":             map[string]string{"user_id": "user-1"},
		"items": map[string]any{
			"data": []map[string]any{{"price": map[string]any{"id": "price_monthly"}}},
		},
	})

	require.NoError(t, svc.applyEvent(context.Background(), event))

	mirror := repo.subsByStripeID["sub_1"]
	require.NotNil(t, mirror)
	assert.Equal(t, "user-1", mirror.UserID)
	assert.Equal(t, policy.PlanPremiumMonth, mirror.Plan)
	assert.Equal(t, StatusActive, mirror.Status)
	assert.Equal(t, "cus_1", mirror.StripeCustomerID)
	assert.Equal(t, time.Unix(1700000000, 0), mirror.CurrentPeriodStart)

	assert.Equal(t, policy.PlanPremiumMonth, users.plans["user-1"])
}

func TestApplyEvent_SubscriptionDeletedDowngradesPlan(t *testing.T) {
	svc, repo, users := newTestService()
	users.plans["user-1"] = policy.PlanPremiumYear

	event := subscriptionEvent(t, "customer.subscription.deleted", map[string]any{
		"id":       "sub_1",
		"status":   "canceled",
		"metadata": map[string]string{"user_id": "user-1"},
		"items": map[string]any{
			"data": []map[string]any{{"price": map[string]any{"id": "price_yearly"}}},
		},
	})

	require.NoError(t, svc.applyEvent(context.Background(), event))

	assert.Equal(t, StatusCanceled, repo.subsByStripeID["sub_1"].Status)
	assert.Equal(t, policy.PlanFreemium, users.plans["user-1"], "losing the subscription reverts to freemium")
}

func TestApplyEvent_PastDueKeepsMirrorButRevokesPlan(t *testing.T) {
	svc, repo, users := newTestService()
	users.plans["user-1"] = policy.PlanPremiumMonth

	event := subscriptionEvent(t, "customer.subscription.updated", map[string]any{
		"id":       "sub_1",
		"status":   "past_due",
		"metadata": map[string]string{"user_id": "user-1"},
		"items": map[string]any{
			"data": []map[string]any{{"price": map[string]any{"id": "price_monthly"}}},
		},
	})

	require.NoError(t, svc.applyEvent(context.Background(), event))

	mirror := repo.subsByStripeID["sub_1"]
	assert.Equal(t, StatusPastDue, mirror.Status)
	assert.Equal(t, policy.PlanPremiumMonth, mirror.Plan, "the mirror keeps the purchased plan")
	assert.Equal(t, policy.PlanFreemium, users.plans["user-1"], "an inactive subscription grants nothing")
}

func TestApplyEvent_SubscriptionWithoutMetadataFallsBackToMirror(t *testing.T) {
	svc, repo, users := newTestService()
	repo.subsByStripeID["sub_1"] = &Subscription{ID: "local-1", UserID: "user-1", StripeSubscriptionID: "sub_1"}

	event := subscriptionEvent(t, "customer.subscription.updated", map[string]any{
		"id":     "sub_1",
		"status": "active",
		"items": map[string]any{
			"data": []map[string]any{{"price": map[string]any{"id": "price_yearly"}}},
		},
	})

	require.NoError(t, svc.applyEvent(context.Background(), event))
	assert.Equal(t, policy.PlanPremiumYear, users.plans["user-1"])
}

func TestApplyEvent_InvoicePaidMirrored(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.subsByStripeID["sub_1"] = &Subscription{ID: "local-1", UserID: "user-1", StripeSubscriptionID: "sub_1"}

	event := subscriptionEvent(t, "invoice.paid", map[string]any{
		"id":           "in_1",
		"amount_due":   999,
		"amount_paid":  999,
		"currency":     "usd",
		"status":       "paid",
		"subscription": map[string]any{"id": "sub_1"},
	})

	require.NoError(t, svc.applyEvent(context.Background(), event))

	inv := repo.invoices["in_1"]
	require.NotNil(t, inv)
	assert.Equal(t, "user-1", inv.UserID)
	assert.Equal(t, int64(999), inv.AmountPaid)
	assert.Equal(t, "usd", inv.Currency)
	assert.Equal(t, "paid", inv.Status)
}

func TestApplyEvent_UnattributableInvoiceAcknowledged(t *testing.T) {
	svc, repo, _ := newTestService()

	event := subscriptionEvent(t, "invoice.payment_failed", map[string]any{
		"id":     "in_orphan",
		"status": "open",
	})

	require.NoError(t, svc.applyEvent(context.Background(), event))
	assert.Empty(t, repo.invoices, "nothing to mirror without a known subscription")
}

func TestApplyEvent_IgnoresUnknownEventTypes(t *testing.T) {
	svc, repo, _ := newTestService()

	event := &stripe.Event{Type: "payment_intent.created", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	require.NoError(t, svc.applyEvent(context.Background(), event))
	assert.Empty(t, repo.subsByStripeID)
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrWebhookSignature)
}

func TestCreateCheckoutSession_RejectsNonPremiumPlan(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateCheckoutSession(context.Background(), "user-1", policy.PlanFreemium)
	assert.ErrorIs(t, err, ErrInvalidPlan)

	_, err = svc.CreateCheckoutSession(context.Background(), "user-1", policy.Plan("LIFETIME"))
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestStatusFromStripe(t *testing.T) {
	cases := map[stripe.SubscriptionStatus]SubscriptionStatus{
		stripe.SubscriptionStatusActive:            StatusActive,
		stripe.SubscriptionStatusCanceled:          StatusCanceled,
		stripe.SubscriptionStatusIncomplete:        StatusIncomplete,
		stripe.SubscriptionStatusIncompleteExpired: StatusIncompleteExpired,
		stripe.SubscriptionStatusPastDue:           StatusPastDue,
		stripe.SubscriptionStatusTrialing:          StatusTrialing,
		stripe.SubscriptionStatusUnpaid:            StatusUnpaid,
	}
	for in, want := range cases {
		assert.Equal(t, want, statusFromStripe(in))
	}

	assert.True(t, StatusActive.Active())
	assert.True(t, StatusTrialing.Active())
	assert.False(t, StatusPastDue.Active())
}
