package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/service"
	"github.com/stretchr/testify/assert"
)

type memFailures struct {
	open map[string]*domain.ReconciliationFailure
}

func (m *memFailures) ListUnresolved(_ context.Context, limit int) ([]*domain.ReconciliationFailure, error) {
	var out []*domain.ReconciliationFailure
	for _, f := range m.open {
		if len(out) == limit {
			break
		}
		out = append(out, f)
	}
	return out, nil
}

func (m *memFailures) Resolve(_ context.Context, id string, _ time.Time) (bool, error) {
	if _, ok := m.open[id]; !ok {
		return false, nil
	}
	delete(m.open, id)
	return true, nil
}

func (m *memFailures) CountUnresolved(context.Context) (int, error) {
	return len(m.open), nil
}

func TestAdmin_FailureQueue(t *testing.T) {
	store := &memFailures{open: map[string]*domain.ReconciliationFailure{
		"f-1": {ID: "f-1", TransactionID: "pi_1", ItemKind: domain.ItemPlan, OrganizationID: 42},
	}}
	h := NewAdminHandler(nil, nil, store)
	r := chi.NewRouter()
	r.Get("/failures", h.ListFailures)
	r.Post("/failures/{id}/resolve", h.ResolveFailure)

	w, _ := do(t, r, http.MethodGet, "/failures?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodGet, "/failures", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pi_1"`)

	w, body := do(t, r, http.MethodPost, "/failures/f-1/resolve", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["resolved"])

	w, _ = do(t, r, http.MethodPost, "/failures/f-1/resolve", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodGet, "/failures", "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

type orgSubscriptions map[int64]*domain.Subscription

func (orgSubscriptions) OpenPurchase(context.Context, *domain.PendingPurchase) error { return nil }

func (orgSubscriptions) ActivatePlan(context.Context, string, int64, time.Time) (*domain.Subscription, error) {
	return nil, nil
}

func (orgSubscriptions) ActivateModule(context.Context, string, time.Time) (*domain.ModuleActivation, error) {
	return nil, nil
}

func (m orgSubscriptions) FindByOrganization(_ context.Context, organizationID int64) (*domain.Subscription, error) {
	return m[organizationID], nil
}

func TestAdmin_OrganizationSubscription(t *testing.T) {
	subs := service.NewSubscriptionService(nil, orgSubscriptions{
		42: {ID: "sub-1", OrganizationID: 42, PlanID: 2, Status: domain.SubscriptionStatusActive},
	}, "BRL")
	h := NewAdminHandler(nil, subs, &memFailures{})
	r := chi.NewRouter()
	r.Get("/organizations/{id}/subscription", h.OrganizationSubscription)

	w, _ := do(t, r, http.MethodGet, "/organizations/42/subscription", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sub-1"`)

	w, _ = do(t, r, http.MethodGet, "/organizations/7/subscription", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, r, http.MethodGet, "/organizations/abc/subscription", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
