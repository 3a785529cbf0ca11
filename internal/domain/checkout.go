package domain

import "time"

// CheckoutMode mirrors the `mode` query parameter.
type CheckoutMode string

const (
	ModeOneTime      CheckoutMode = "onetime"
	ModeSubscription CheckoutMode = "subscription"
)

// StartCheckoutRequest carries the parameters the checkout page is opened with.
type StartCheckoutRequest struct {
	Type           string `json:"type" validate:"required,oneof=plan module"`
	ItemID         int64  `json:"itemId" validate:"gt=0"`
	OrganizationID int64  `json:"organizationId" validate:"omitempty,gt=0"`
	ReturnURL      string `json:"returnUrl" validate:"omitempty,max=2048"`
	Mode           string `json:"mode" validate:"omitempty,oneof=onetime subscription"`
	Gateway        string `json:"gateway" validate:"omitempty,oneof=stripe complypay"`
}

// PaymentIntent is the provider's handle for a pending charge. ClientSecret
// is opaque to everyone but the provider.
type PaymentIntent struct {
	ID           string    `json:"id"`
	ClientSecret string    `json:"clientSecret"`
	Gateway      string    `json:"gateway"`
	ItemKind     ItemKind  `json:"itemKind"`
	ItemID       int64     `json:"itemId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CheckoutState is the confirmation executor's state.
type CheckoutState string

const (
	StateIdle           CheckoutState = "idle"
	StateSubmitting     CheckoutState = "submitting"
	StateSucceeded      CheckoutState = "succeeded"
	StateRequiresAction CheckoutState = "requires_action"
	StateFailed         CheckoutState = "failed"
)

// PendingPurchase links a payment reference to the item and organization it
// pays for, so the owning system can activate the right thing on confirmation.
type PendingPurchase struct {
	Reference      string    `json:"reference"`
	Kind           ItemKind  `json:"kind"`
	ItemID         int64     `json:"itemId"`
	OrganizationID int64     `json:"organizationId"`
	Status         string    `json:"status"` // pending, confirmed
	CreatedAt      time.Time `json:"createdAt"`
}

// CheckoutView is what the API returns for a checkout session.
type CheckoutView struct {
	ID               string            `json:"id"`
	State            CheckoutState     `json:"state"`
	Item             PurchasableItem   `json:"item"`
	ClientSecret     string            `json:"clientSecret"`
	Gateway          string            `json:"gateway"`
	Mode             CheckoutMode      `json:"mode"`
	Method           MethodKind        `json:"method,omitempty"`
	Installments     []int             `json:"installmentOptions,omitempty"`
	Result           *ResultView       `json:"result,omitempty"`
	ValidationErrors map[string]string `json:"validationErrors,omitempty"`
	Redirect         string            `json:"redirect,omitempty"`
	Notification     *Notification     `json:"notification,omitempty"`
}
