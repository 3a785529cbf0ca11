package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/events"
	"github.com/orgadmin/backend/pkg/payment"
	"github.com/shopspring/decimal"
)

type fakeGateway struct {
	createErr   error
	confirm     *payment.Confirmation
	confirmErr  error
	qr, barcode string
	voucherErr  error

	// release, when set, holds ConfirmPayment until closed or ctx ends.
	release chan struct{}
	// chargeDespiteCancel makes a held ConfirmPayment wait for release only,
	// like a provider that charges even though the caller went away.
	chargeDespiteCancel bool

	confirmCalls atomic.Int32
	voucherCalls atomic.Int32
	lastCard     payment.CardData
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &payment.Intent{ID: "pi_1", ClientSecret: "pi_1_secret_abc"}, nil
}

func (g *fakeGateway) ConfirmPayment(ctx context.Context, _ string, card payment.CardData) (*payment.Confirmation, error) {
	g.confirmCalls.Add(1)
	g.lastCard = card
	if g.release != nil && g.chargeDespiteCancel {
		<-g.release
	} else if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	if g.confirm != nil {
		return g.confirm, nil
	}
	return &payment.Confirmation{Status: payment.ConfirmSucceeded, TransactionID: "tx_1"}, nil
}

func (g *fakeGateway) GenerateInstantTransferPayload(_ context.Context, _ payment.VoucherRequest) (string, error) {
	g.voucherCalls.Add(1)
	return g.qr, g.voucherErr
}

func (g *fakeGateway) GenerateBankSlipPayload(_ context.Context, _ payment.VoucherRequest) (string, error) {
	g.voucherCalls.Add(1)
	return g.barcode, g.voucherErr
}

type planCall struct {
	tx    string
	orgID int64
}

type fakeOwner struct {
	mu          sync.Mutex
	itemErr     error
	confirmErr  error
	planCalls   []planCall
	moduleCalls []string
	purchases   []*domain.PendingPurchase
	// gate, when set, holds ConfirmPlanPayment until closed or ctx ends.
	gate chan struct{}
	// entered receives a value each time ConfirmPlanPayment starts, if set.
	entered chan struct{}
}

func (o *fakeOwner) GetPurchasableItem(_ context.Context, kind domain.ItemKind, id int64) (*domain.PurchasableItem, error) {
	if o.itemErr != nil {
		return nil, o.itemErr
	}
	return &domain.PurchasableItem{
		Kind: kind, ID: id, Name: "Network", Currency: "BRL",
		Price: decimal.RequireFromString("249.90"),
	}, nil
}

func (o *fakeOwner) OpenPurchase(_ context.Context, p *domain.PendingPurchase) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.purchases = append(o.purchases, p)
	return nil
}

func (o *fakeOwner) ConfirmPlanPayment(ctx context.Context, tx string, orgID int64) error {
	if o.entered != nil {
		select {
		case o.entered <- struct{}{}:
		default:
		}
	}
	if o.gate != nil {
		select {
		case <-o.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.planCalls = append(o.planCalls, planCall{tx, orgID})
	return o.confirmErr
}

func (o *fakeOwner) ConfirmModulePayment(_ context.Context, tx string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.moduleCalls = append(o.moduleCalls, tx)
	return o.confirmErr
}

func (f *fakeFailures) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (o *fakeOwner) planCallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.planCalls)
}

type fakeFailures struct {
	mu    sync.Mutex
	saved []*domain.ReconciliationFailure
}

func (f *fakeFailures) Create(_ context.Context, r *domain.ReconciliationFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, r)
	return nil
}

type fakeSink struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (s *fakeSink) Notify(_ string, n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

func (s *fakeSink) last() domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return domain.Notification{}
	}
	return s.sent[len(s.sent)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errOwnerDown = errors.New("owning system unavailable")
