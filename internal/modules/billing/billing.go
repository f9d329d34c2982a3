package billing

import (
	"time"

	"github.com/adsight/adsight-api/internal/policy"
)

// SubscriptionStatus mirrors Stripe's subscription status enum.
type SubscriptionStatus string

const (
	StatusActive            SubscriptionStatus = "ACTIVE"
	StatusCanceled          SubscriptionStatus = "CANCELED"
	StatusIncomplete        SubscriptionStatus = "INCOMPLETE"
	StatusIncompleteExpired SubscriptionStatus = "INCOMPLETE_EXPIRED"
	StatusPastDue           SubscriptionStatus = "PAST_DUE"
	StatusTrialing          SubscriptionStatus = "TRIALING"
	StatusUnpaid            SubscriptionStatus = "UNPAID"
)

// Active reports whether the subscription grants its plan's entitlements.
func (s SubscriptionStatus) Active() bool {
	return s == StatusActive || s == StatusTrialing
}

// Subscription is the local mirror of a Stripe subscription. Written only by
// the webhook path; read by the dashboard and the user's billing views.
type Subscription struct {
	ID                   string             `db:"id"`
	UserID               string             `db:"user_id"`
	StripeCustomerID     string             `db:"stripe_customer_id"`
	StripeSubscriptionID string             `db:"stripe_subscription_id"`
	Plan                 policy.Plan        `db:"plan"`
	Status               SubscriptionStatus `db:"status"`
	CurrentPeriodStart   time.Time          `db:"current_period_start"`
	CurrentPeriodEnd     time.Time          `db:"current_period_end"`
	CancelAtPeriodEnd    bool               `db:"cancel_at_period_end"`
	CreatedAt            time.Time          `db:"created_at"`
	UpdatedAt            time.Time          `db:"updated_at"`
}

// Invoice is the local mirror of a Stripe invoice.
type Invoice struct {
	ID              string    `db:"id"`
	UserID          string    `db:"user_id"`
	StripeInvoiceID string    `db:"stripe_invoice_id"`
	SubscriptionID  *string   `db:"subscription_id"`
	AmountDue       int64     `db:"amount_due"` // smallest currency unit
	AmountPaid      int64     `db:"amount_paid"`
	Currency        string    `db:"currency"`
	Status          string    `db:"status"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
