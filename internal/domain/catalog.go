package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes subscription plans from add-on modules.
type ItemKind string

const (
	ItemPlan   ItemKind = "plan"
	ItemModule ItemKind = "module"
)

// ParseItemKind returns the ItemKind for s, or an error for unknown kinds.
func ParseItemKind(s string) (ItemKind, error) {
	switch ItemKind(s) {
	case ItemPlan, ItemModule:
		return ItemKind(s), nil
	}
	return "", fmt.Errorf("unknown item kind %q", s)
}

// BillingCycle applies to modules only.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

// PurchasableItem is what a checkout session is buying. It is produced by the
// catalog lookup and never mutated by the checkout workflow.
type PurchasableItem struct {
	Kind         ItemKind        `json:"kind"`
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Features     []string        `json:"features"`
	BillingCycle BillingCycle    `json:"billingCycle,omitempty"`
}

// AmountMinor returns the price in minor currency units (cents, centavos).
func (i PurchasableItem) AmountMinor() int64 {
	return i.Price.Shift(2).Round(0).IntPart()
}

// Plan is a subscription plan row from the catalog.
type Plan struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"` // monthly price
	Features    []string        `json:"features"`
	Popular     bool            `json:"popular"` // "Most Popular" badge
	Active      bool            `json:"active"`
}

// Item converts the plan to the checkout view of it.
func (p Plan) Item(currency string) PurchasableItem {
	return PurchasableItem{
		Kind:        ItemPlan,
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Currency:    currency,
		Features:    p.Features,
	}
}

// Module is an add-on module an organization can buy on top of its plan.
type Module struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Features     []string        `json:"features"`
	BillingCycle BillingCycle    `json:"billingCycle"`
	Active       bool            `json:"active"`
}

// Item converts the module to the checkout view of it.
func (m Module) Item(currency string) PurchasableItem {
	return PurchasableItem{
		Kind:         ItemModule,
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price,
		Currency:     currency,
		Features:     m.Features,
		BillingCycle: m.BillingCycle,
	}
}

// DefaultPlans is the seed catalog written by `checkoutctl seed-catalog`.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:          1,
			Name:        "Clinic",
			Description: "Single-unit clinics and small pharmacies",
			Price:       decimal.RequireFromString("99.90"),
			Features:    []string{"1 organization", "Up to 5 users", "Product catalog", "Basic dashboards"},
			Active:      true,
		},
		{
			ID:          2,
			Name:        "Network",
			Description: "Multi-unit networks with supplier analytics",
			Price:       decimal.RequireFromString("249.90"),
			Features:    []string{"Up to 10 units", "Up to 50 users", "Promotions", "Supplier analytics", "Priority support"},
			Popular:     true,
			Active:      true,
		},
		{
			ID:          3,
			Name:        "Enterprise",
			Description: "Industrial production tracking and integrations",
			Price:       decimal.RequireFromString("799.00"),
			Features:    []string{"Unlimited units", "Production tracking", "Payment and shipping integrations", "Dedicated manager"},
			Active:      true,
		},
	}
}

// DefaultModules is the seed list of add-on modules.
func DefaultModules() []Module {
	return []Module{
		{
			ID:           1,
			Name:         "AI Assistant",
			Description:  "Model provider integration for product descriptions and support",
			Price:        decimal.RequireFromString("49.90"),
			Features:     []string{"OpenAI and Anthropic providers", "Prompt templates"},
			BillingCycle: CycleMonthly,
			Active:       true,
		},
		{
			ID:           2,
			Name:         "Research Collaboration",
			Description:  "Shared workspaces for researchers",
			Price:        decimal.RequireFromString("499.00"),
			Features:     []string{"Shared datasets", "Dilution calculator", "Audit trail"},
			BillingCycle: CycleYearly,
			Active:       true,
		},
	}
}
