package domain

import "fmt"

// MethodKind names a payment method the buyer can pick.
type MethodKind string

const (
	MethodCreditCard MethodKind = "credit_card"
	MethodPix        MethodKind = "pix"    // instant transfer
	MethodBoleto     MethodKind = "boleto" // bank slip
)

// InstallmentOptions are the installment counts offered on the card panel.
var InstallmentOptions = []int{1, 3, 6, 12}

// PaymentMethod is the selected method together with its method-specific
// payload. Exactly one of CardPayment, PixPayment or BoletoPayment.
type PaymentMethod interface {
	Kind() MethodKind
	isPaymentMethod()
}

// CardPayment is the card panel's form. Only non-emptiness is checked here;
// number and expiry formats are left to the payment provider.
type CardPayment struct {
	HolderName   string `json:"holderName" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Expiry       string `json:"expiry" validate:"required"`
	CVC          string `json:"cvc" validate:"required"`
	Installments int    `json:"installments" validate:"oneof=1 3 6 12"`
}

func (CardPayment) Kind() MethodKind { return MethodCreditCard }
func (CardPayment) isPaymentMethod() {}

// PixPayment has no user-entered fields.
type PixPayment struct{}

func (PixPayment) Kind() MethodKind { return MethodPix }
func (PixPayment) isPaymentMethod() {}

// BoletoPayment has no user-entered fields.
type BoletoPayment struct{}

func (BoletoPayment) Kind() MethodKind { return MethodBoleto }
func (BoletoPayment) isPaymentMethod() {}

// SelectMethodRequest is the body of PUT /api/checkout/{id}/method.
type SelectMethodRequest struct {
	Method string `json:"method" validate:"required,oneof=credit_card pix boleto"`
}

// SubmitRequest is the body of POST /api/checkout/{id}/submit. Card is only
// read when the selected method is credit_card.
type SubmitRequest struct {
	Card *CardPayment `json:"card,omitempty"`
}

// NewPaymentMethod builds the variant for kind. A nil card yields an empty
// card form, which fails validation on submit.
func NewPaymentMethod(kind MethodKind, card *CardPayment) (PaymentMethod, error) {
	switch kind {
	case MethodCreditCard:
		if card == nil {
			return CardPayment{Installments: 1}, nil
		}
		c := *card
		if c.Installments == 0 {
			c.Installments = 1
		}
		return c, nil
	case MethodPix:
		return PixPayment{}, nil
	case MethodBoleto:
		return BoletoPayment{}, nil
	}
	return nil, fmt.Errorf("unknown payment method %q", kind)
}
