package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgadmin/backend/internal/domain"
)

var (
	// ErrNoPendingPurchase means no purchase was opened for the payment reference.
	ErrNoPendingPurchase = errors.New("no pending purchase for payment reference")
	// ErrPurchaseMismatch means the reference belongs to another item kind or organization.
	ErrPurchaseMismatch = errors.New("payment reference does not match purchase")
)

const (
	purchasePending   = "pending"
	purchaseConfirmed = "confirmed"
)

// SubscriptionRepository stores pending purchases and the plans and modules
// they activate.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// OpenPurchase records which item and organization a payment reference pays for.
func (r *SubscriptionRepository) OpenPurchase(ctx context.Context, p *domain.PendingPurchase) error {
	query := `
		INSERT INTO pending_purchases (reference, kind, item_id, organization_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.Exec(ctx, query, p.Reference, string(p.Kind), p.ItemID, p.OrganizationID, purchasePending, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to open purchase: %w", err)
	}
	return nil
}

func lockPurchase(ctx context.Context, tx pgx.Tx, reference string) (*domain.PendingPurchase, error) {
	var p domain.PendingPurchase
	var kind string
	err := tx.QueryRow(ctx, `
		SELECT reference, kind, item_id, organization_id, status, created_at
		FROM pending_purchases WHERE reference = $1 FOR UPDATE
	`, reference).Scan(&p.Reference, &kind, &p.ItemID, &p.OrganizationID, &p.Status, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPendingPurchase
		}
		return nil, fmt.Errorf("failed to load purchase: %w", err)
	}
	p.Kind = domain.ItemKind(kind)
	return &p, nil
}

// ActivatePlan confirms the plan purchase for reference and creates the
// organization's subscription. Confirming an already confirmed purchase
// returns the subscription created the first time.
func (r *SubscriptionRepository) ActivatePlan(ctx context.Context, reference string, organizationID int64, now time.Time) (*domain.Subscription, error) {
	var sub *domain.Subscription
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		p, err := lockPurchase(ctx, tx, reference)
		if err != nil {
			return err
		}
		if p.Kind != domain.ItemPlan || (p.OrganizationID != 0 && p.OrganizationID != organizationID) {
			return ErrPurchaseMismatch
		}

		if p.Status == purchaseConfirmed {
			sub, err = findSubscriptionByProvider(ctx, tx, reference)
			return err
		}

		sub = &domain.Subscription{
			ID:                 uuid.New().String(),
			OrganizationID:     organizationID,
			PlanID:             p.ItemID,
			Status:             domain.SubscriptionStatusActive,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.AddDate(0, 1, 0),
			PaymentProviderID:  reference,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		// A new plan replaces whatever the organization had before.
		if _, err := tx.Exec(ctx, `
			UPDATE subscriptions SET status = 'canceled', updated_at = $2
			WHERE organization_id = $1 AND status = 'active'
		`, organizationID, now); err != nil {
			return fmt.Errorf("failed to cancel previous subscription: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO subscriptions (id, organization_id, plan_id, status, current_period_start, current_period_end, payment_provider_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, sub.ID, sub.OrganizationID, sub.PlanID, sub.Status,
			sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.PaymentProviderID,
			sub.CreatedAt, sub.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		return markConfirmed(ctx, tx, reference)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// ActivateModule confirms the module purchase for reference.
func (r *SubscriptionRepository) ActivateModule(ctx context.Context, reference string, now time.Time) (*domain.ModuleActivation, error) {
	var act *domain.ModuleActivation
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		p, err := lockPurchase(ctx, tx, reference)
		if err != nil {
			return err
		}
		if p.Kind != domain.ItemModule {
			return ErrPurchaseMismatch
		}

		if p.Status == purchaseConfirmed {
			act, err = findActivationByProvider(ctx, tx, reference)
			return err
		}

		var cycle string
		if err := tx.QueryRow(ctx, `SELECT billing_cycle FROM modules WHERE id = $1`, p.ItemID).Scan(&cycle); err != nil {
			return fmt.Errorf("failed to load module %d: %w", p.ItemID, err)
		}
		until := now.AddDate(0, 1, 0)
		if domain.BillingCycle(cycle) == domain.CycleYearly {
			until = now.AddDate(1, 0, 0)
		}

		act = &domain.ModuleActivation{
			ID:                uuid.New().String(),
			OrganizationID:    p.OrganizationID,
			ModuleID:          p.ItemID,
			BillingCycle:      domain.BillingCycle(cycle),
			Status:            domain.SubscriptionStatusActive,
			ActiveUntil:       until,
			PaymentProviderID: reference,
			CreatedAt:         now,
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO module_activations (id, organization_id, module_id, billing_cycle, status, active_until, payment_provider_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, act.ID, act.OrganizationID, act.ModuleID, string(act.BillingCycle), act.Status,
			act.ActiveUntil, act.PaymentProviderID, act.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to activate module: %w", err)
		}
		return markConfirmed(ctx, tx, reference)
	})
	if err != nil {
		return nil, err
	}
	return act, nil
}

// FindByOrganization returns the active subscription of an organization, or nil.
func (r *SubscriptionRepository) FindByOrganization(ctx context.Context, organizationID int64) (*domain.Subscription, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, organization_id, plan_id, status, current_period_start, current_period_end, payment_provider_id, created_at, updated_at
		FROM subscriptions WHERE organization_id = $1 AND status = 'active' ORDER BY created_at DESC LIMIT 1
	`, organizationID)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

func markConfirmed(ctx context.Context, tx pgx.Tx, reference string) error {
	if _, err := tx.Exec(ctx, `UPDATE pending_purchases SET status = $2 WHERE reference = $1`, reference, purchaseConfirmed); err != nil {
		return fmt.Errorf("failed to confirm purchase: %w", err)
	}
	return nil
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := row.Scan(
		&sub.ID, &sub.OrganizationID, &sub.PlanID, &sub.Status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.PaymentProviderID,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func findSubscriptionByProvider(ctx context.Context, tx pgx.Tx, reference string) (*domain.Subscription, error) {
	sub, err := scanSubscription(tx.QueryRow(ctx, `
		SELECT id, organization_id, plan_id, status, current_period_start, current_period_end, payment_provider_id, created_at, updated_at
		FROM subscriptions WHERE payment_provider_id = $1 ORDER BY created_at DESC LIMIT 1
	`, reference))
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription for %s: %w", reference, err)
	}
	return sub, nil
}

func findActivationByProvider(ctx context.Context, tx pgx.Tx, reference string) (*domain.ModuleActivation, error) {
	var act domain.ModuleActivation
	var cycle string
	err := tx.QueryRow(ctx, `
		SELECT id, organization_id, module_id, billing_cycle, status, active_until, payment_provider_id, created_at
		FROM module_activations WHERE payment_provider_id = $1 ORDER BY created_at DESC LIMIT 1
	`, reference).Scan(&act.ID, &act.OrganizationID, &act.ModuleID, &cycle, &act.Status, &act.ActiveUntil, &act.PaymentProviderID, &act.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to find module activation for %s: %w", reference, err)
	}
	act.BillingCycle = domain.BillingCycle(cycle)
	return &act, nil
}
