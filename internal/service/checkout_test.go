package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/events"
	"github.com/orgadmin/backend/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	svc      *CheckoutService
	gw       *fakeGateway
	owner    *fakeOwner
	failures *fakeFailures
	sink     *fakeSink
	events   *fakePublisher
	sessions *SessionStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gw:       &fakeGateway{},
		owner:    &fakeOwner{},
		failures: &fakeFailures{},
		sink:     &fakeSink{},
		events:   &fakePublisher{},
		sessions: NewSessionStore(time.Hour),
	}
	reg := payment.NewRegistry(payment.GatewayComplyPay)
	reg.Register(payment.GatewayComplyPay, h.gw)
	rec := NewReconciler(h.owner, h.failures, h.events, h.sink, "/login")
	h.svc = NewCheckoutService(h.owner, reg, h.sessions, rec, h.events, h.sink)
	return h
}

func (h *harness) start(t *testing.T, kind string, orgID int64) *domain.CheckoutView {
	t.Helper()
	v, err := h.svc.Start(context.Background(), &domain.StartCheckoutRequest{Type: kind, ItemID: 2, OrganizationID: orgID})
	require.NoError(t, err)
	return v
}

func (h *harness) choose(t *testing.T, id string, m domain.MethodKind) *domain.CheckoutView {
	t.Helper()
	v, err := h.svc.SelectMethod(id, &domain.SelectMethodRequest{Method: string(m)})
	require.NoError(t, err)
	return v
}

func validCard() *domain.CardPayment {
	return &domain.CardPayment{HolderName: "Ana Souza", Number: "4242424242424242", Expiry: "08/29", CVC: "123", Installments: 3}
}

func appCode(t *testing.T, err error) int {
	t.Helper()
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

func TestStart_SecretXorError(t *testing.T) {
	tests := []struct {
		name      string
		req       domain.StartCheckoutRequest
		createErr error
		itemErr   error
		wantCode  int
	}{
		{name: "plan", req: domain.StartCheckoutRequest{Type: "plan", ItemID: 2, OrganizationID: 42}},
		{name: "module", req: domain.StartCheckoutRequest{Type: "module", ItemID: 1, OrganizationID: 42}},
		{name: "unknown kind", req: domain.StartCheckoutRequest{Type: "addon", ItemID: 1}, wantCode: http.StatusUnprocessableEntity},
		{name: "non-positive item", req: domain.StartCheckoutRequest{Type: "plan", ItemID: 0}, wantCode: http.StatusUnprocessableEntity},
		{name: "module without organization", req: domain.StartCheckoutRequest{Type: "module", ItemID: 1}, wantCode: http.StatusUnprocessableEntity},
		{name: "plan without organization", req: domain.StartCheckoutRequest{Type: "plan", ItemID: 1}, wantCode: http.StatusUnprocessableEntity},
		{name: "unknown gateway", req: domain.StartCheckoutRequest{Type: "plan", ItemID: 1, OrganizationID: 42, Gateway: "stripe"}, wantCode: http.StatusBadRequest},
		{name: "catalog miss", req: domain.StartCheckoutRequest{Type: "plan", ItemID: 9, OrganizationID: 42}, itemErr: domain.ErrNotFound("plan 9 not found"), wantCode: http.StatusNotFound},
		{name: "provider down", req: domain.StartCheckoutRequest{Type: "plan", ItemID: 1, OrganizationID: 42}, createErr: payment.ErrProviderDown, wantCode: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gw.createErr = tt.createErr
			h.owner.itemErr = tt.itemErr

			v, err := h.svc.Start(context.Background(), &tt.req)
			if tt.wantCode == 0 {
				require.NoError(t, err)
				require.NotNil(t, v)
				assert.NotEmpty(t, v.ClientSecret)
				assert.Equal(t, domain.StateIdle, v.State)
				require.Len(t, h.owner.purchases, 1)
				assert.Equal(t, "pi_1", h.owner.purchases[0].Reference)
				return
			}
			require.Error(t, err)
			assert.Nil(t, v)
			assert.NotEmpty(t, err.Error())
			assert.Equal(t, tt.wantCode, appCode(t, err))
			assert.Empty(t, h.owner.purchases)
		})
	}
}

func TestSelectMethod_ExclusiveAndClearsValidation(t *testing.T) {
	h := newHarness(t)
	v := h.start(t, "plan", 42)

	v = h.choose(t, v.ID, domain.MethodCreditCard)
	assert.Equal(t, domain.MethodCreditCard, v.Method)
	assert.Equal(t, domain.InstallmentOptions, v.Installments)

	_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: &domain.CardPayment{}})
	require.Error(t, err)
	v, err = h.svc.Get(v.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, v.ValidationErrors)

	v = h.choose(t, v.ID, domain.MethodPix)
	assert.Equal(t, domain.MethodPix, v.Method)
	assert.Empty(t, v.ValidationErrors)
	assert.Empty(t, v.Installments)

	again := h.choose(t, v.ID, domain.MethodPix)
	assert.Equal(t, v.Method, again.Method)
	assert.Equal(t, v.State, again.State)
}

func TestSubmit_CardMissingFieldNeverCallsGateway(t *testing.T) {
	full := *validCard()
	blank := map[string]func(c *domain.CardPayment){
		"holderName": func(c *domain.CardPayment) { c.HolderName = "" },
		"number":     func(c *domain.CardPayment) { c.Number = "" },
		"expiry":     func(c *domain.CardPayment) { c.Expiry = "" },
		"cvc":        func(c *domain.CardPayment) { c.CVC = "" },
	}
	for field, clear := range blank {
		t.Run(field, func(t *testing.T) {
			h := newHarness(t)
			v := h.start(t, "plan", 42)
			h.choose(t, v.ID, domain.MethodCreditCard)

			card := full
			clear(&card)
			_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: &card})
			require.Error(t, err)

			appErr, _ := domain.AsAppError(err)
			assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
			assert.Contains(t, appErr.Fields, field)
			assert.Zero(t, h.gw.confirmCalls.Load())

			got, _ := h.svc.Get(v.ID)
			assert.Equal(t, domain.StateIdle, got.State)
		})
	}
}

func TestSubmit_InstallmentsOutsideOffer(t *testing.T) {
	h := newHarness(t)
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	card := validCard()
	card.Installments = 5
	_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: card})
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Contains(t, appErr.Fields, "installments")
	assert.Zero(t, h.gw.confirmCalls.Load())
}

func TestSubmit_GuardAllowsOneInFlightConfirmation(t *testing.T) {
	h := newHarness(t)
	h.gw.release = make(chan struct{})
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
		done <- err
	}()
	require.Eventually(t, func() bool { return h.gw.confirmCalls.Load() == 1 }, time.Second, time.Millisecond)

	got, _ := h.svc.Get(v.ID)
	assert.Equal(t, domain.StateSubmitting, got.State)

	_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
	assert.Equal(t, http.StatusConflict, appCode(t, err))
	_, err = h.svc.SelectMethod(v.ID, &domain.SelectMethodRequest{Method: "pix"})
	assert.Equal(t, http.StatusConflict, appCode(t, err))

	close(h.gw.release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), h.gw.confirmCalls.Load())
}

func TestSubmit_SucceededReconcilesPlanOnceAndRedirects(t *testing.T) {
	h := newHarness(t)
	h.gw.confirm = &payment.Confirmation{Status: payment.ConfirmSucceeded, TransactionID: "T"}
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	v, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
	require.NoError(t, err)

	assert.Equal(t, []planCall{{"T", 42}}, h.owner.planCalls)
	assert.Empty(t, h.owner.moduleCalls)
	assert.Equal(t, domain.StateSucceeded, v.State)
	assert.Equal(t, "/login", v.Redirect)
	assert.Equal(t, "T", v.Result.TransactionID)
	assert.Equal(t, domain.SeveritySuccess, h.sink.last().Severity)
	assert.Equal(t, 3, h.gw.lastCard.Installments)
	assert.Equal(t, []string{events.TypeReconciled, events.TypePaymentSucceeded}, h.events.types())

	_, err = h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
	assert.Equal(t, http.StatusConflict, appCode(t, err))
	assert.Len(t, h.owner.planCalls, 1)
}

func TestSubmit_ModuleReconcilesByTransaction(t *testing.T) {
	h := newHarness(t)
	v := h.start(t, "module", 7)
	h.choose(t, v.ID, domain.MethodCreditCard)

	_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
	require.NoError(t, err)
	assert.Equal(t, []string{"tx_1"}, h.owner.moduleCalls)
	assert.Empty(t, h.owner.planCalls)
}

func TestSubmit_FailedShowsProviderMessageAndKeepsSelection(t *testing.T) {
	tests := []struct {
		name    string
		confirm *payment.Confirmation
		err     error
		want    string
	}{
		{name: "explicit error field", confirm: &payment.Confirmation{Status: payment.ConfirmError, ErrorMessage: "card declined"}, want: "card declined"},
		{name: "returned error", err: errors.New("card declined"), want: "card declined"},
		{name: "no message", confirm: &payment.Confirmation{Status: payment.ConfirmError}, want: GenericPaymentFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.gw.confirm, h.gw.confirmErr = tt.confirm, tt.err
			v := h.start(t, "plan", 42)
			h.choose(t, v.ID, domain.MethodCreditCard)

			v, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
			require.NoError(t, err)

			assert.Equal(t, domain.StateFailed, v.State)
			assert.Equal(t, domain.MethodCreditCard, v.Method)
			assert.Equal(t, tt.want, v.Result.Message)
			assert.Equal(t, tt.want, h.sink.last().Description)
			assert.Equal(t, domain.SeverityError, h.sink.last().Severity)
			assert.Empty(t, h.owner.planCalls)
		})
	}
}

func TestSubmit_FailedCanBeResubmitted(t *testing.T) {
	h := newHarness(t)
	h.gw.confirm = &payment.Confirmation{Status: payment.ConfirmError, ErrorMessage: "card declined"}
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
	require.NoError(t, err)

	h.gw.confirm = nil
	v, err = h.svc.Submit(context.Background(), v.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, v.State)
	assert.Equal(t, int32(2), h.gw.confirmCalls.Load())
}

func TestSubmit_VoucherPayloadUnchanged(t *testing.T) {
	const qr = "00020126580014br.gov.bcb.pix0136a1b2\x00c3d4 raw"
	const barcode = "23790.00002 60000.000001 00000.000000 1 00000000024990"

	tests := []struct {
		method domain.MethodKind
		action domain.ActionKind
		want   string
	}{
		{domain.MethodPix, domain.ActionPixQRCode, qr},
		{domain.MethodBoleto, domain.ActionBoletoBarcode, barcode},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			h := newHarness(t)
			h.gw.qr, h.gw.barcode = qr, barcode
			v := h.start(t, "plan", 42)
			h.choose(t, v.ID, tt.method)

			v, err := h.svc.Submit(context.Background(), v.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, domain.StateRequiresAction, v.State)
			assert.Equal(t, tt.action, v.Result.Action)
			assert.Equal(t, tt.want, v.Result.Payload)
			assert.Zero(t, h.gw.confirmCalls.Load())
			assert.Empty(t, h.owner.planCalls)
		})
	}
}

func TestSubmit_RequiresRedirect(t *testing.T) {
	h := newHarness(t)
	h.gw.confirm = &payment.Confirmation{Status: payment.ConfirmRequiresAction, RedirectURL: "https://bank.example/3ds"}
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	v, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
	require.NoError(t, err)
	assert.Equal(t, domain.StateRequiresAction, v.State)
	assert.Equal(t, "https://bank.example/3ds", v.Result.RedirectURL)
}

func TestSubmit_NoMethodSelected(t *testing.T) {
	h := newHarness(t)
	v := h.start(t, "plan", 42)

	_, err := h.svc.Submit(context.Background(), v.ID, nil)
	assert.Equal(t, http.StatusBadRequest, appCode(t, err))
}

func TestConfirmManual(t *testing.T) {
	h := newHarness(t)
	h.gw.qr = "pix-data"
	v := h.start(t, "plan", 42)

	_, err := h.svc.ConfirmManual(context.Background(), v.ID)
	assert.Equal(t, http.StatusConflict, appCode(t, err), "nothing to confirm before a voucher exists")

	h.choose(t, v.ID, domain.MethodPix)
	_, err = h.svc.Submit(context.Background(), v.ID, nil)
	require.NoError(t, err)

	v, err = h.svc.ConfirmManual(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, []planCall{{"pi_1", 42}}, h.owner.planCalls)
	assert.Equal(t, domain.StateSucceeded, v.State)
	assert.Equal(t, "/login", v.Redirect)

	v, err = h.svc.ConfirmManual(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Len(t, h.owner.planCalls, 1)
}

func TestAbandonCancelsInFlightCall(t *testing.T) {
	h := newHarness(t)
	h.gw.release = make(chan struct{})
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
		done <- err
	}()
	require.Eventually(t, func() bool { return h.gw.confirmCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.svc.Abandon(v.ID))

	select {
	case err := <-done:
		assert.Equal(t, http.StatusNotFound, appCode(t, err))
	case <-time.After(time.Second):
		t.Fatal("submit did not return after the session was abandoned")
	}
	_, err := h.svc.Get(v.ID)
	assert.Equal(t, http.StatusNotFound, appCode(t, err))
	assert.Empty(t, h.owner.planCalls)
}

func TestAbandonedSessionStillReconcilesLateCharge(t *testing.T) {
	h := newHarness(t)
	h.gw.release = make(chan struct{})
	h.gw.chargeDespiteCancel = true
	h.gw.confirm = &payment.Confirmation{Status: payment.ConfirmSucceeded, TransactionID: "tx_late"}
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	type submitted struct {
		view *domain.CheckoutView
		err  error
	}
	done := make(chan submitted, 1)
	go func() {
		view, err := h.svc.Submit(context.Background(), v.ID, &domain.SubmitRequest{Card: validCard()})
		done <- submitted{view, err}
	}()
	require.Eventually(t, func() bool { return h.gw.confirmCalls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.svc.Abandon(v.ID))
	close(h.gw.release)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, domain.StateSucceeded, res.view.State)
	assert.Equal(t, []planCall{{"tx_late", 42}}, h.owner.planCalls)
	assert.Equal(t, []string{events.TypeReconciled, events.TypePaymentSucceeded}, h.events.types())
}

func TestSubmit_BuyerDisconnectDoesNotAbortActivation(t *testing.T) {
	h := newHarness(t)
	h.owner.gate = make(chan struct{})
	h.owner.entered = make(chan struct{}, 1)
	v := h.start(t, "plan", 42)
	h.choose(t, v.ID, domain.MethodCreditCard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Submit(ctx, v.ID, &domain.SubmitRequest{Card: validCard()})
		done <- err
	}()

	<-h.owner.entered
	cancel()
	close(h.owner.gate)
	require.NoError(t, <-done)

	view, err := h.svc.Get(v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, view.State)
	assert.Equal(t, "/login", view.Redirect)
	assert.Equal(t, 1, h.owner.planCallCount())
	assert.Zero(t, h.failures.count())
	assert.Equal(t, []string{events.TypeReconciled, events.TypePaymentSucceeded}, h.events.types())
}

func TestSessionSweep(t *testing.T) {
	h := newHarness(t)
	v := h.start(t, "plan", 42)

	assert.Zero(t, h.sessions.Sweep(time.Now()))
	assert.Equal(t, 1, h.sessions.Sweep(time.Now().Add(2*time.Hour)))
	_, err := h.svc.Get(v.ID)
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.gw.qr = "qr"
	a := h.start(t, "plan", 42)
	h.start(t, "plan", 43)
	h.choose(t, a.ID, domain.MethodPix)
	_, err := h.svc.Submit(context.Background(), a.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, map[domain.CheckoutState]int{
		domain.StateIdle:           1,
		domain.StateRequiresAction: 1,
	}, h.svc.Stats())
}
