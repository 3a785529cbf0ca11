package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// VoucherIssuer produces pix and boleto payloads.
type VoucherIssuer interface {
	GenerateInstantTransferPayload(ctx context.Context, req VoucherRequest) (string, error)
	GenerateBankSlipPayload(ctx context.Context, req VoucherRequest) (string, error)
}

// StripeGateway charges cards through Stripe PaymentIntents. Pix and boleto
// vouchers need buyer tax data Stripe requires and the checkout form does not
// collect, so they are delegated to a VoucherIssuer.
type StripeGateway struct {
	client   *client.API
	vouchers VoucherIssuer
}

// NewStripeGateway creates a StripeGateway with the given secret key.
func NewStripeGateway(apiKey string, vouchers VoucherIssuer) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeGateway{client: sc, vouchers: vouchers}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountMinor),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		Description:        stripe.String(req.Description),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Metadata: map[string]string{
			"item_kind": req.ItemKind,
			"item_id":   strconv.FormatInt(req.ItemID, 10),
			"mode":      req.Mode,
		},
	}
	if req.OrganizationID > 0 {
		params.Metadata["organization_id"] = strconv.FormatInt(req.OrganizationID, 10)
	}
	params.Context = ctx

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

func (g *StripeGateway) ConfirmPayment(ctx context.Context, clientSecret string, card CardData) (*Confirmation, error) {
	month, year, err := parseExpiry(card.Expiry)
	if err != nil {
		return &Confirmation{Status: ConfirmError, ErrorMessage: err.Error()}, nil
	}

	pmParams := &stripe.PaymentMethodParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(strings.ReplaceAll(card.Number, " ", "")),
			ExpMonth: stripe.Int64(month),
			ExpYear:  stripe.Int64(year),
			CVC:      stripe.String(card.CVC),
		},
		BillingDetails: &stripe.PaymentMethodBillingDetailsParams{
			Name: stripe.String(card.HolderName),
		},
		Metadata: map[string]string{"installments": strconv.Itoa(card.Installments)},
	}
	pmParams.Context = ctx
	pm, err := g.client.PaymentMethods.New(pmParams)
	if err != nil {
		return declineOrError(err)
	}

	confirm := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(pm.ID),
	}
	if card.ReturnURL != "" {
		confirm.ReturnURL = stripe.String(card.ReturnURL)
	}
	confirm.Context = ctx

	pi, err := g.client.PaymentIntents.Confirm(IntentIDFromSecret(clientSecret), confirm)
	if err != nil {
		return declineOrError(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &Confirmation{Status: ConfirmSucceeded, TransactionID: pi.ID}, nil
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusProcessing:
		c := &Confirmation{Status: ConfirmRequiresAction, TransactionID: pi.ID}
		if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
			c.RedirectURL = pi.NextAction.RedirectToURL.URL
		}
		return c, nil
	}

	msg := ""
	if pi.LastPaymentError != nil {
		msg = pi.LastPaymentError.Msg
	}
	return &Confirmation{Status: ConfirmError, TransactionID: pi.ID, ErrorMessage: msg}, nil
}

func (g *StripeGateway) GenerateInstantTransferPayload(ctx context.Context, req VoucherRequest) (string, error) {
	return g.vouchers.GenerateInstantTransferPayload(ctx, req)
}

func (g *StripeGateway) GenerateBankSlipPayload(ctx context.Context, req VoucherRequest) (string, error) {
	return g.vouchers.GenerateBankSlipPayload(ctx, req)
}

// declineOrError turns card errors into an explicit error confirmation and
// everything else into a Go error.
func declineOrError(err error) (*Confirmation, error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		return &Confirmation{Status: ConfirmError, ErrorMessage: stripeErr.Msg}, nil
	}
	return nil, mapStripeError(err)
}

// mapStripeError converts stripe-go errors into the package's sentinel errors.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeExpiredCard, stripe.ErrorCodeIncorrectNumber:
			return fmt.Errorf("%w: %s", ErrPaymentDeclined, stripeErr.Msg)
		}
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError || stripeErr.Code == stripe.ErrorCodeRateLimit {
			return fmt.Errorf("%w: %s", ErrProviderDown, stripeErr.Msg)
		}
		if stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, stripeErr.Msg)
		}
	}
	return fmt.Errorf("stripe: %w", err)
}

// parseExpiry accepts MM/YY and MM/YYYY.
func parseExpiry(s string) (month, year int64, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid card expiry %q", s)
	}
	month, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid card expiry %q", s)
	}
	year, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid card expiry %q", s)
	}
	if year < 100 {
		year += 2000
	}
	return month, year, nil
}
