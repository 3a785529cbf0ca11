package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Gateway names accepted in the `gateway` query parameter.
const (
	GatewayStripe    = "stripe"
	GatewayComplyPay = "complypay"
)

// Provider errors. Adapters wrap these with %w so callers can classify
// failures without importing provider SDKs.
var (
	ErrPaymentDeclined = errors.New("payment was declined")
	ErrInvalidRequest  = errors.New("payment request was rejected by the provider")
	ErrProviderDown    = errors.New("payment provider is currently unavailable")
	ErrUnknownIntent   = errors.New("unknown payment intent")
)

// Gateway is the external payment collaborator.
type Gateway interface {
	// CreateIntent opens a payment intent and returns its client secret.
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// ConfirmPayment submits card data against an intent.
	ConfirmPayment(ctx context.Context, clientSecret string, card CardData) (*Confirmation, error)
	// GenerateInstantTransferPayload returns the pix QR data for the item.
	GenerateInstantTransferPayload(ctx context.Context, req VoucherRequest) (string, error)
	// GenerateBankSlipPayload returns the boleto barcode for the item.
	GenerateBankSlipPayload(ctx context.Context, req VoucherRequest) (string, error)
}

// IntentRequest describes the charge to open.
type IntentRequest struct {
	ItemKind       string
	ItemID         int64
	OrganizationID int64 // 0 when unknown
	AmountMinor    int64
	Currency       string
	Description    string
	Mode           string
}

// Intent is the provider's answer to IntentRequest.
type Intent struct {
	ID           string
	ClientSecret string
}

// CardData is what the card panel collects.
type CardData struct {
	HolderName   string
	Number       string
	Expiry       string // MM/YY or MM/YYYY
	CVC          string
	Installments int
	ReturnURL    string
}

// ConfirmStatus is the provider's verdict on a confirmation.
type ConfirmStatus string

const (
	ConfirmSucceeded      ConfirmStatus = "succeeded"
	ConfirmRequiresAction ConfirmStatus = "requires_action"
	ConfirmError          ConfirmStatus = "error"
)

// Confirmation is the result of ConfirmPayment.
type Confirmation struct {
	Status        ConfirmStatus
	TransactionID string
	RedirectURL   string
	ErrorMessage  string
}

// VoucherRequest identifies what a pix/boleto payload is generated for.
type VoucherRequest struct {
	IntentID    string
	ItemID      int64
	AmountMinor int64
	Currency    string
}

// Registry maps gateway names to implementations.
type Registry struct {
	gateways map[string]Gateway
	fallback string
}

// NewRegistry creates a registry whose default gateway is fallback.
func NewRegistry(fallback string) *Registry {
	return &Registry{gateways: make(map[string]Gateway), fallback: fallback}
}

// Register adds or replaces the gateway for name.
func (r *Registry) Register(name string, g Gateway) {
	r.gateways[name] = g
}

// Get returns the gateway for name; an empty name selects the default.
func (r *Registry) Get(name string) (Gateway, string, error) {
	if name == "" {
		name = r.fallback
	}
	g, ok := r.gateways[name]
	if !ok {
		return nil, "", fmt.Errorf("payment gateway %q is not configured", name)
	}
	return g, name, nil
}

// Names lists the registered gateways.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
