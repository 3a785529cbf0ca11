package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/events"
	"github.com/orgadmin/backend/pkg/payment"
)

// GenericPaymentFailure is shown when the provider fails without a message.
const GenericPaymentFailure = "payment could not be processed, please try again"

const publishTimeout = 5 * time.Second

// CheckoutService runs the checkout workflow: it creates the payment intent,
// tracks the buyer's method selection, confirms the payment and hands
// successful payments to the Reconciler.
type CheckoutService struct {
	owner      OwningSystem
	gateways   *payment.Registry
	sessions   *SessionStore
	reconciler *Reconciler
	events     events.Publisher
	sink       NotificationSink
	validate   *validator.Validate
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(
	owner OwningSystem,
	gateways *payment.Registry,
	sessions *SessionStore,
	reconciler *Reconciler,
	pub events.Publisher,
	sink NotificationSink,
) *CheckoutService {
	return &CheckoutService{
		owner:      owner,
		gateways:   gateways,
		sessions:   sessions,
		reconciler: reconciler,
		events:     pub,
		sink:       sink,
		validate:   newValidator(),
	}
}

// Start creates the payment intent for an item and opens a checkout session.
// It returns either a session carrying a client secret or an error, never both.
func (s *CheckoutService) Start(ctx context.Context, req *domain.StartCheckoutRequest) (*domain.CheckoutView, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFieldValidation(fieldErrors(err))
	}
	kind, err := domain.ParseItemKind(req.Type)
	if err != nil {
		return nil, domain.ErrBadRequest(err.Error())
	}
	// Both kinds are activated for an organization.
	if req.OrganizationID == 0 {
		return nil, domain.ErrFieldValidation(map[string]string{"organizationId": "is required"})
	}

	gw, gwName, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return nil, domain.ErrBadRequest(err.Error())
	}

	item, err := s.owner.GetPurchasableItem(ctx, kind, req.ItemID)
	if err != nil {
		return nil, err
	}

	mode := domain.ModeOneTime
	if req.Mode != "" {
		mode = domain.CheckoutMode(req.Mode)
	}

	in, err := gw.CreateIntent(ctx, payment.IntentRequest{
		ItemKind:       string(kind),
		ItemID:         item.ID,
		OrganizationID: req.OrganizationID,
		AmountMinor:    item.AmountMinor(),
		Currency:       item.Currency,
		Description:    item.Name,
		Mode:           string(mode),
	})
	if err != nil {
		log.Printf("[Checkout] %s intent for %s %d failed: %v", gwName, kind, item.ID, err)
		if errors.Is(err, payment.ErrInvalidRequest) {
			return nil, domain.ErrValidation(fmt.Sprintf("could not start payment: %v", err))
		}
		return nil, domain.ErrBadGateway("payment provider unavailable, please reload to try again", err)
	}
	if in.ClientSecret == "" {
		return nil, domain.ErrBadGateway("payment provider returned no client secret", nil)
	}

	now := time.Now()
	if err := s.owner.OpenPurchase(ctx, &domain.PendingPurchase{
		Reference:      in.ID,
		Kind:           kind,
		ItemID:         item.ID,
		OrganizationID: req.OrganizationID,
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}

	sess := newSession(uuid.New().String(), domain.PaymentIntent{
		ID:           in.ID,
		ClientSecret: in.ClientSecret,
		Gateway:      gwName,
		ItemKind:     kind,
		ItemID:       item.ID,
		CreatedAt:    now,
	}, *item, gw)
	sess.organizationID = req.OrganizationID
	sess.mode = mode
	sess.returnURL = req.ReturnURL
	s.sessions.put(sess)

	log.Printf("[Checkout] Session %s opened for %s %d via %s", sess.id, kind, item.ID, gwName)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Get returns the current state of a checkout session.
func (s *CheckoutService) Get(id string) (*domain.CheckoutView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// SelectMethod switches the session to another payment method. The previous
// method's payload, result and validation errors are discarded.
func (s *CheckoutService) SelectMethod(id string, req *domain.SelectMethodRequest) (*domain.CheckoutView, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrFieldValidation(fieldErrors(err))
	}
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	switch sess.state {
	case domain.StateSubmitting:
		return nil, domain.ErrConflict("a payment is being processed")
	case domain.StateSucceeded:
		return nil, domain.ErrConflict("this checkout is already paid")
	}

	kind := domain.MethodKind(req.Method)
	if sess.method == nil || sess.method.Kind() != kind {
		m, err := domain.NewPaymentMethod(kind, nil)
		if err != nil {
			return nil, domain.ErrBadRequest(err.Error())
		}
		sess.method = m
	}
	sess.state = domain.StateIdle
	sess.result = nil
	sess.validation = nil
	sess.notification = nil
	sess.touched = time.Now()
	return sess.view(), nil
}

// Submit confirms the payment with the selected method. While a submission
// is in flight for the session any further submit is rejected without
// reaching the payment provider.
func (s *CheckoutService) Submit(ctx context.Context, id string, req *domain.SubmitRequest) (*domain.CheckoutView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	switch sess.state {
	case domain.StateSubmitting:
		sess.mu.Unlock()
		return nil, domain.ErrConflict("a payment is already being processed")
	case domain.StateSucceeded:
		sess.mu.Unlock()
		return nil, domain.ErrConflict("this checkout is already paid")
	}
	if sess.method == nil {
		sess.mu.Unlock()
		return nil, domain.ErrBadRequest("select a payment method first")
	}
	if card, ok := sess.method.(domain.CardPayment); ok {
		if req != nil && req.Card != nil {
			m, _ := domain.NewPaymentMethod(domain.MethodCreditCard, req.Card)
			card = m.(domain.CardPayment)
			sess.method = card
		}
		if err := s.validate.Struct(card); err != nil {
			fields := fieldErrors(err)
			sess.validation = fields
			sess.touched = time.Now()
			sess.mu.Unlock()
			return nil, domain.ErrFieldValidation(fields)
		}
	}
	method := sess.method
	sess.state = domain.StateSubmitting
	sess.validation = nil
	sess.result = nil
	sess.notification = nil
	sess.touched = time.Now()
	sess.mu.Unlock()

	callCtx, cancel := sess.scope(ctx)
	result := s.execute(callCtx, sess, method)
	cancel()

	paid, isPaid := result.(domain.Succeeded)
	if sess.ctx.Err() != nil {
		if !isPaid {
			return nil, domain.ErrNotFound("checkout session was closed")
		}
		// The provider charged the buyer before the cancellation landed.
		log.Printf("[Checkout] Session %s closed after payment %s succeeded, reconciling anyway", sess.id, paid.TransactionID)
	}

	n := resultNotification(result)

	sess.mu.Lock()
	sess.result = result
	sess.state = stateOf(result)
	sess.touched = time.Now()
	if n != nil {
		sess.notification = n
	}
	sess.mu.Unlock()

	if n != nil {
		s.sink.Notify(sess.id, *n)
	}

	if isPaid {
		s.reconcile(ctx, sess, paid.TransactionID)
		s.publishSucceeded(ctx, sess, paid.TransactionID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// ConfirmManual handles "I already paid" for a session waiting on the buyer.
func (s *CheckoutService) ConfirmManual(ctx context.Context, id string) (*domain.CheckoutView, error) {
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	switch sess.state {
	case domain.StateSucceeded:
		defer sess.mu.Unlock()
		return sess.view(), nil
	case domain.StateRequiresAction:
	default:
		sess.mu.Unlock()
		return nil, domain.ErrConflict("there is no pending payment to confirm")
	}
	sess.touched = time.Now()
	sess.mu.Unlock()

	s.reconcile(ctx, sess, sess.intent.ID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// Abandon closes the session and cancels whatever is still running for it.
func (s *CheckoutService) Abandon(id string) error {
	if !s.sessions.remove(id) {
		return domain.ErrNotFound("checkout session not found")
	}
	log.Printf("[Checkout] Session %s abandoned", id)
	return nil
}

// Stats reports open sessions per state.
func (s *CheckoutService) Stats() map[domain.CheckoutState]int {
	return s.sessions.CountByState()
}

func (s *CheckoutService) session(id string) (*session, error) {
	sess, ok := s.sessions.get(id)
	if !ok {
		return nil, domain.ErrNotFound("checkout session not found")
	}
	return sess, nil
}

// execute runs the provider call for the selected method.
func (s *CheckoutService) execute(ctx context.Context, sess *session, method domain.PaymentMethod) domain.PaymentResult {
	voucher := payment.VoucherRequest{
		IntentID:    sess.intent.ID,
		ItemID:      sess.item.ID,
		AmountMinor: sess.item.AmountMinor(),
		Currency:    sess.item.Currency,
	}

	switch m := method.(type) {
	case domain.CardPayment:
		c, err := sess.gateway.ConfirmPayment(ctx, sess.intent.ClientSecret, payment.CardData{
			HolderName:   m.HolderName,
			Number:       m.Number,
			Expiry:       m.Expiry,
			CVC:          m.CVC,
			Installments: m.Installments,
			ReturnURL:    sess.returnURL,
		})
		if err != nil {
			return failed(sess, err.Error())
		}
		switch c.Status {
		case payment.ConfirmSucceeded:
			tx := c.TransactionID
			if tx == "" {
				tx = sess.intent.ID
			}
			return domain.Succeeded{TransactionID: tx}
		case payment.ConfirmRequiresAction:
			return domain.RequiresAction{Action: domain.ActionRedirect, RedirectURL: c.RedirectURL}
		}
		return failed(sess, c.ErrorMessage)

	case domain.PixPayment:
		qr, err := sess.gateway.GenerateInstantTransferPayload(ctx, voucher)
		if err != nil {
			return failed(sess, err.Error())
		}
		return domain.RequiresAction{Action: domain.ActionPixQRCode, Payload: qr}

	case domain.BoletoPayment:
		barcode, err := sess.gateway.GenerateBankSlipPayload(ctx, voucher)
		if err != nil {
			return failed(sess, err.Error())
		}
		return domain.RequiresAction{Action: domain.ActionBoletoBarcode, Payload: barcode}
	}
	return failed(sess, fmt.Sprintf("unsupported payment method %T", method))
}

func failed(sess *session, msg string) domain.Failed {
	if msg == "" {
		msg = GenericPaymentFailure
	}
	log.Printf("[Checkout] Session %s payment failed: %s", sess.id, msg)
	return domain.Failed{Message: msg}
}

func (s *CheckoutService) reconcile(ctx context.Context, sess *session, transactionID string) {
	out := s.reconciler.Reconcile(ctx, ReconcileRequest{
		CheckoutID:     sess.id,
		TransactionID:  transactionID,
		Kind:           sess.item.Kind,
		ItemID:         sess.item.ID,
		OrganizationID: sess.organizationID,
		Gateway:        sess.intent.Gateway,
	})

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.state = domain.StateSucceeded
	if _, ok := sess.result.(domain.Succeeded); !ok {
		sess.result = domain.Succeeded{TransactionID: transactionID}
	}
	sess.redirect = out.Redirect
	n := out.Notification
	sess.notification = &n
	sess.touched = time.Now()
}

func (s *CheckoutService) publishSucceeded(ctx context.Context, sess *session, transactionID string) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	err := s.events.Publish(pubCtx, events.Event{
		Type:           events.TypePaymentSucceeded,
		CheckoutID:     sess.id,
		TransactionID:  transactionID,
		ItemKind:       string(sess.item.Kind),
		ItemID:         sess.item.ID,
		OrganizationID: sess.organizationID,
		Gateway:        sess.intent.Gateway,
	})
	if err != nil {
		log.Printf("[Checkout] event publish failed: %v", err)
	}
}

func stateOf(r domain.PaymentResult) domain.CheckoutState {
	switch r.Status() {
	case domain.ResultSucceeded:
		return domain.StateSucceeded
	case domain.ResultRequiresAction:
		return domain.StateRequiresAction
	}
	return domain.StateFailed
}

// resultNotification is the toast for a confirmation result. Success is
// announced by the Reconciler instead.
func resultNotification(r domain.PaymentResult) *domain.Notification {
	var n domain.Notification
	switch v := r.(type) {
	case domain.Failed:
		n = domain.NewNotification("Payment failed", v.Message, domain.SeverityError)
	case domain.RequiresAction:
		switch v.Action {
		case domain.ActionPixQRCode:
			n = domain.NewNotification("Pix code generated", "Scan the QR code with your bank app, then click \"I already paid\".", domain.SeverityInfo)
		case domain.ActionBoletoBarcode:
			n = domain.NewNotification("Bank slip generated", "Pay the slip at any bank or app, then click \"I already paid\".", domain.SeverityInfo)
		default:
			n = domain.NewNotification("Verification required", "Complete the verification with your bank to finish the payment.", domain.SeverityInfo)
		}
	default:
		return nil
	}
	return &n
}
