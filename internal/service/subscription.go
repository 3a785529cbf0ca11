package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/repository"
)

// OwningSystem is the part of the platform that sells plans and modules and
// activates them once paid.
type OwningSystem interface {
	GetPurchasableItem(ctx context.Context, kind domain.ItemKind, id int64) (*domain.PurchasableItem, error)
	// OpenPurchase remembers what a payment reference is paying for.
	OpenPurchase(ctx context.Context, p *domain.PendingPurchase) error
	ConfirmPlanPayment(ctx context.Context, transactionID string, organizationID int64) error
	ConfirmModulePayment(ctx context.Context, transactionID string) error
}

type catalogStore interface {
	ListPlans(ctx context.Context) ([]*domain.Plan, error)
	GetPlan(ctx context.Context, id int64) (*domain.Plan, error)
	UpsertPlan(ctx context.Context, p *domain.Plan) error
	ListModules(ctx context.Context) ([]*domain.Module, error)
	GetModule(ctx context.Context, id int64) (*domain.Module, error)
	UpsertModule(ctx context.Context, m *domain.Module) error
}

type purchaseStore interface {
	OpenPurchase(ctx context.Context, p *domain.PendingPurchase) error
	ActivatePlan(ctx context.Context, reference string, organizationID int64, now time.Time) (*domain.Subscription, error)
	ActivateModule(ctx context.Context, reference string, now time.Time) (*domain.ModuleActivation, error)
	FindByOrganization(ctx context.Context, organizationID int64) (*domain.Subscription, error)
}

// SubscriptionService is the Postgres backed OwningSystem. It also serves the
// public catalog.
type SubscriptionService struct {
	catalog   catalogStore
	purchases purchaseStore
	currency  string
	now       func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(catalog catalogStore, purchases purchaseStore, currency string) *SubscriptionService {
	return &SubscriptionService{
		catalog:   catalog,
		purchases: purchases,
		currency:  currency,
		now:       time.Now,
	}
}

// GetPurchasableItem resolves a plan or module to what the checkout page shows.
func (s *SubscriptionService) GetPurchasableItem(ctx context.Context, kind domain.ItemKind, id int64) (*domain.PurchasableItem, error) {
	switch kind {
	case domain.ItemPlan:
		p, err := s.catalog.GetPlan(ctx, id)
		if err != nil {
			return nil, domain.ErrBadGateway("failed to load plan", err)
		}
		if p == nil || !p.Active {
			return nil, domain.ErrNotFound(fmt.Sprintf("plan %d not found", id))
		}
		item := p.Item(s.currency)
		return &item, nil
	case domain.ItemModule:
		m, err := s.catalog.GetModule(ctx, id)
		if err != nil {
			return nil, domain.ErrBadGateway("failed to load module", err)
		}
		if m == nil || !m.Active {
			return nil, domain.ErrNotFound(fmt.Sprintf("module %d not found", id))
		}
		item := m.Item(s.currency)
		return &item, nil
	}
	return nil, domain.ErrBadRequest(fmt.Sprintf("unknown item type %q", kind))
}

// OpenPurchase records a pending purchase.
func (s *SubscriptionService) OpenPurchase(ctx context.Context, p *domain.PendingPurchase) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if err := s.purchases.OpenPurchase(ctx, p); err != nil {
		return domain.ErrInternal("failed to record purchase", err)
	}
	return nil
}

// ConfirmPlanPayment activates the plan paid by transactionID for the organization.
func (s *SubscriptionService) ConfirmPlanPayment(ctx context.Context, transactionID string, organizationID int64) error {
	if organizationID <= 0 {
		return domain.ErrValidation("an organization is required to activate a plan")
	}
	sub, err := s.purchases.ActivatePlan(ctx, transactionID, organizationID, s.now())
	if err != nil {
		return purchaseError(transactionID, err)
	}
	log.Printf("[Subscription] Plan %d active for organization %d until %s (tx %s)",
		sub.PlanID, organizationID, sub.CurrentPeriodEnd.Format(time.DateOnly), transactionID)
	return nil
}

// ConfirmModulePayment activates the module paid by transactionID.
func (s *SubscriptionService) ConfirmModulePayment(ctx context.Context, transactionID string) error {
	act, err := s.purchases.ActivateModule(ctx, transactionID, s.now())
	if err != nil {
		return purchaseError(transactionID, err)
	}
	log.Printf("[Subscription] Module %d active for organization %d until %s (tx %s)",
		act.ModuleID, act.OrganizationID, act.ActiveUntil.Format(time.DateOnly), transactionID)
	return nil
}

func purchaseError(transactionID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNoPendingPurchase):
		return domain.ErrNotFound(fmt.Sprintf("no purchase found for transaction %s", transactionID))
	case errors.Is(err, repository.ErrPurchaseMismatch):
		return domain.ErrConflict(fmt.Sprintf("transaction %s belongs to a different purchase", transactionID))
	}
	return domain.ErrInternal("failed to activate purchase", err)
}

// CurrentSubscription returns the organization's active subscription, or nil.
func (s *SubscriptionService) CurrentSubscription(ctx context.Context, organizationID int64) (*domain.Subscription, error) {
	sub, err := s.purchases.FindByOrganization(ctx, organizationID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	return sub, nil
}

// ListPlans returns the active plans as checkout items.
func (s *SubscriptionService) ListPlans(ctx context.Context) ([]domain.PurchasableItem, error) {
	plans, err := s.catalog.ListPlans(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list plans", err)
	}
	items := make([]domain.PurchasableItem, len(plans))
	for i, p := range plans {
		items[i] = p.Item(s.currency)
	}
	return items, nil
}

// ListModules returns the active modules as checkout items.
func (s *SubscriptionService) ListModules(ctx context.Context) ([]domain.PurchasableItem, error) {
	modules, err := s.catalog.ListModules(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list modules", err)
	}
	items := make([]domain.PurchasableItem, len(modules))
	for i, m := range modules {
		items[i] = m.Item(s.currency)
	}
	return items, nil
}

// SeedCatalog writes the default plans and modules, replacing rows with the same ids.
func (s *SubscriptionService) SeedCatalog(ctx context.Context) (int, error) {
	n := 0
	for _, p := range domain.DefaultPlans() {
		if err := s.catalog.UpsertPlan(ctx, &p); err != nil {
			return n, err
		}
		n++
	}
	for _, m := range domain.DefaultModules() {
		if err := s.catalog.UpsertModule(ctx, &m); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
