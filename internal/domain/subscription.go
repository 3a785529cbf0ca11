package domain

import "time"

// Subscription is an organization's active plan.
type Subscription struct {
	ID                 string    `json:"id"`
	OrganizationID     int64     `json:"organizationId"`
	PlanID             int64     `json:"planId"`
	Status             string    `json:"status"` // active, canceled, expired
	CurrentPeriodStart time.Time `json:"currentPeriodStart"`
	CurrentPeriodEnd   time.Time `json:"currentPeriodEnd"`
	PaymentProviderID  string    `json:"paymentProviderId"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ModuleActivation records an add-on module enabled for an organization.
type ModuleActivation struct {
	ID                string       `json:"id"`
	OrganizationID    int64        `json:"organizationId"`
	ModuleID          int64        `json:"moduleId"`
	BillingCycle      BillingCycle `json:"billingCycle"`
	Status            string       `json:"status"`
	ActiveUntil       time.Time    `json:"activeUntil"`
	PaymentProviderID string       `json:"paymentProviderId"`
	CreatedAt         time.Time    `json:"createdAt"`
}

// ReconciliationFailure is written when the provider took the money but the
// plan or module could not be activated. Support resolves these by hand.
type ReconciliationFailure struct {
	ID             string     `json:"id"`
	CheckoutID     string     `json:"checkoutId"`
	TransactionID  string     `json:"transactionId"`
	ItemKind       ItemKind   `json:"itemKind"`
	ItemID         int64      `json:"itemId"`
	OrganizationID int64      `json:"organizationId"`
	Error          string     `json:"error"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// SubscriptionStatusActive is the only status the checkout flow writes.
const SubscriptionStatusActive = "active"
