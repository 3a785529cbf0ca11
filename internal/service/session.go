package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/pkg/payment"
)

// session is one open checkout page. mu guards every field below it; it is
// never held across a collaborator call.
type session struct {
	id             string
	intent         domain.PaymentIntent
	item           domain.PurchasableItem
	organizationID int64
	mode           domain.CheckoutMode
	returnURL      string
	gateway        payment.Gateway

	// ctx is cancelled when the buyer leaves the page or the session expires.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        domain.CheckoutState
	method       domain.PaymentMethod
	result       domain.PaymentResult
	validation   map[string]string
	redirect     string
	notification *domain.Notification
	touched      time.Time
}

func newSession(id string, intent domain.PaymentIntent, item domain.PurchasableItem, gw payment.Gateway) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:      id,
		intent:  intent,
		item:    item,
		gateway: gw,
		ctx:     ctx,
		cancel:  cancel,
		state:   domain.StateIdle,
		touched: time.Now(),
	}
}

// scope derives a context that ends with either the request or the session.
func (s *session) scope(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// view renders the session. Callers hold mu.
func (s *session) view() *domain.CheckoutView {
	v := &domain.CheckoutView{
		ID:           s.id,
		State:        s.state,
		Item:         s.item,
		ClientSecret: s.intent.ClientSecret,
		Gateway:      s.intent.Gateway,
		Mode:         s.mode,
		Result:       domain.ViewOf(s.result),
		Redirect:     s.redirect,
		Notification: s.notification,
	}
	if s.method != nil {
		v.Method = s.method.Kind()
		if v.Method == domain.MethodCreditCard {
			v.Installments = domain.InstallmentOptions
		}
	}
	if len(s.validation) > 0 {
		v.ValidationErrors = make(map[string]string, len(s.validation))
		for k, msg := range s.validation {
			v.ValidationErrors[k] = msg
		}
	}
	return v
}

// SessionStore holds open checkout sessions in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	ttl      time.Duration
}

// NewSessionStore creates a store whose sessions expire after ttl of inactivity.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
	}
}

func (st *SessionStore) put(s *session) {
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
}

func (st *SessionStore) get(id string) (*session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	return s, ok
}

// remove drops the session and cancels anything still running for it.
func (st *SessionStore) remove(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		s.cancel()
	}
	return ok
}

// Sweep removes sessions untouched for longer than the TTL and returns how many it removed.
func (st *SessionStore) Sweep(now time.Time) int {
	var expired []string
	st.mu.RLock()
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := now.Sub(s.touched)
		s.mu.Unlock()
		if idle > st.ttl {
			expired = append(expired, id)
		}
	}
	st.mu.RUnlock()

	for _, id := range expired {
		st.remove(id)
	}
	return len(expired)
}

// RunSweeper sweeps every interval until ctx is done.
func (st *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := st.Sweep(now); n > 0 {
				log.Printf("[Checkout] Expired %d idle checkout sessions", n)
			}
		}
	}
}

// CountByState is used by the admin dashboard.
func (st *SessionStore) CountByState() map[domain.CheckoutState]int {
	counts := make(map[domain.CheckoutState]int)
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, s := range st.sessions {
		s.mu.Lock()
		counts[s.state]++
		s.mu.Unlock()
	}
	return counts
}
