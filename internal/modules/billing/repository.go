package billing

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/adsight/adsight-api/internal/database"
)

// Repository defines the database operations for the Stripe mirror tables.
type Repository interface {
	UpsertSubscription(ctx context.Context, sub *Subscription) error
	FindSubscriptionByUser(ctx context.Context, userID string) (*Subscription, error)
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)

	UpsertInvoice(ctx context.Context, inv *Invoice) error
	ListInvoicesByUser(ctx context.Context, userID string) ([]*Invoice, error)
}

type repository struct {
	db   database.DBTX
	psql squirrel.StatementBuilderType
}

// NewRepository creates a new billing repository with the given database connection.
func NewRepository(db database.DBTX) Repository {
	return &repository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *repository) UpsertSubscription(ctx context.Context, sub *Subscription) error {
	now := time.Now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	query, args, err := r.psql.Insert("subscriptions").
		Columns("id", "user_id", "stripe_customer_id", "stripe_subscription_id",
			"plan", "status", "current_period_start", "current_period_end",
			"cancel_at_period_end", "created_at", "updated_at").
		Values(sub.ID, sub.UserID, sub.StripeCustomerID, sub.StripeSubscriptionID,
			sub.Plan, sub.Status, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
			sub.CancelAtPeriodEnd, sub.CreatedAt, sub.UpdatedAt).
		Suffix(`ON CONFLICT (stripe_subscription_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

func (r *repository) FindSubscriptionByUser(ctx context.Context, userID string) (*Subscription, error) {
	return r.findSubscription(ctx, squirrel.Eq{"user_id": userID})
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error) {
	return r.findSubscription(ctx, squirrel.Eq{"stripe_subscription_id": stripeSubscriptionID})
}

func (r *repository) findSubscription(ctx context.Context, condition squirrel.Sqlizer) (*Subscription, error) {
	query, args, err := r.psql.Select("*").
		From("subscriptions").
		Where(condition).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var sub Subscription
	err = pgxscan.Get(ctx, r.db, &sub, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSubscription.WithCause(err)
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpsertInvoice(ctx context.Context, inv *Invoice) error {
	now := time.Now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	query, args, err := r.psql.Insert("invoices").
		Columns("id", "user_id", "stripe_invoice_id", "subscription_id",
			"amount_due", "amount_paid", "currency", "status",
			"created_at", "updated_at").
		Values(inv.ID, inv.UserID, inv.StripeInvoiceID, inv.SubscriptionID,
			inv.AmountDue, inv.AmountPaid, inv.Currency, inv.Status,
			inv.CreatedAt, inv.UpdatedAt).
		Suffix(`ON CONFLICT (stripe_invoice_id) DO UPDATE SET
			amount_due = EXCLUDED.amount_due,
			amount_paid = EXCLUDED.amount_paid,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

func (r *repository) ListInvoicesByUser(ctx context.Context, userID string) ([]*Invoice, error) {
	query, args, err := r.psql.Select("*").
		From("invoices").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var invoices []*Invoice
	if err := pgxscan.Select(ctx, r.db, &invoices, query, args...); err != nil {
		return nil, err
	}
	return invoices, nil
}
