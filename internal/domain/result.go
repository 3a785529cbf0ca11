package domain

// ResultStatus is the outcome class of one confirmation attempt.
type ResultStatus string

const (
	ResultSucceeded      ResultStatus = "succeeded"
	ResultRequiresAction ResultStatus = "requires_action"
	ResultFailed         ResultStatus = "failed"
)

// ActionKind says what the buyer has to do outside the app.
type ActionKind string

const (
	ActionRedirect      ActionKind = "redirect"       // card 3-D Secure / bank page
	ActionPixQRCode     ActionKind = "pix_qr_code"    // scan with the bank app
	ActionBoletoBarcode ActionKind = "boleto_barcode" // pay the slip
)

// PaymentResult is exactly one of Succeeded, RequiresAction or Failed.
type PaymentResult interface {
	Status() ResultStatus
	isPaymentResult()
}

// Succeeded carries the provider's transaction identifier.
type Succeeded struct {
	TransactionID string
}

func (Succeeded) Status() ResultStatus { return ResultSucceeded }
func (Succeeded) isPaymentResult()     {}

// RequiresAction is terminal for the executor; the buyer finishes the payment
// elsewhere and then confirms manually.
type RequiresAction struct {
	Action      ActionKind
	Payload     string // QR data or barcode, exactly as the provider returned it
	RedirectURL string
}

func (RequiresAction) Status() ResultStatus { return ResultRequiresAction }
func (RequiresAction) isPaymentResult()     {}

// Failed carries a human-readable message.
type Failed struct {
	Message string
}

func (Failed) Status() ResultStatus { return ResultFailed }
func (Failed) isPaymentResult()     {}

// ResultView is the JSON shape of a PaymentResult.
type ResultView struct {
	Status        ResultStatus `json:"status"`
	TransactionID string       `json:"transactionId,omitempty"`
	Action        ActionKind   `json:"action,omitempty"`
	Payload       string       `json:"payload,omitempty"`
	RedirectURL   string       `json:"redirectUrl,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// ViewOf renders r for API responses. A nil result renders as nil.
func ViewOf(r PaymentResult) *ResultView {
	switch v := r.(type) {
	case Succeeded:
		return &ResultView{Status: ResultSucceeded, TransactionID: v.TransactionID}
	case RequiresAction:
		return &ResultView{Status: ResultRequiresAction, Action: v.Action, Payload: v.Payload, RedirectURL: v.RedirectURL}
	case Failed:
		return &ResultView{Status: ResultFailed, Message: v.Message}
	}
	return nil
}
