package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/service"
)

// FailureStore is the support queue of reconciliation failures.
type FailureStore interface {
	ListUnresolved(ctx context.Context, limit int) ([]*domain.ReconciliationFailure, error)
	Resolve(ctx context.Context, id string, at time.Time) (bool, error)
	CountUnresolved(ctx context.Context) (int, error)
}

// AdminHandler serves the support dashboard.
type AdminHandler struct {
	checkout *service.CheckoutService
	subs     *service.SubscriptionService
	failures FailureStore
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(checkout *service.CheckoutService, subs *service.SubscriptionService, failures FailureStore) *AdminHandler {
	return &AdminHandler{checkout: checkout, subs: subs, failures: failures}
}

// GetStats handles GET /api/admin/stats.
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	unresolved, err := h.failures.CountUnresolved(r.Context())
	if err != nil {
		Error(w, domain.ErrInternal("failed to count reconciliation failures", err))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"openSessions":               h.checkout.Stats(),
		"unresolvedReconciliations": unresolved,
	})
}

// ListFailures handles GET /api/admin/reconciliation-failures?limit=N.
func (h *AdminHandler) ListFailures(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			Error(w, domain.ErrBadRequest("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	failures, err := h.failures.ListUnresolved(r.Context(), limit)
	if err != nil {
		Error(w, domain.ErrInternal("failed to list reconciliation failures", err))
		return
	}
	if failures == nil {
		failures = []*domain.ReconciliationFailure{}
	}
	JSON(w, http.StatusOK, failures)
}

// ResolveFailure handles POST /api/admin/reconciliation-failures/{id}/resolve.
func (h *AdminHandler) ResolveFailure(w http.ResponseWriter, r *http.Request) {
	ok, err := h.failures.Resolve(r.Context(), chi.URLParam(r, "id"), time.Now())
	if err != nil {
		Error(w, domain.ErrInternal("failed to resolve reconciliation failure", err))
		return
	}
	if !ok {
		Error(w, domain.ErrNotFound("no open reconciliation failure with that id"))
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

// OrganizationSubscription handles GET /api/admin/organizations/{id}/subscription.
func (h *AdminHandler) OrganizationSubscription(w http.ResponseWriter, r *http.Request) {
	orgID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || orgID <= 0 {
		Error(w, domain.ErrBadRequest("invalid organization id"))
		return
	}
	sub, err := h.subs.CurrentSubscription(r.Context(), orgID)
	if err != nil {
		Error(w, err)
		return
	}
	if sub == nil {
		Error(w, domain.ErrNotFound("organization has no active subscription"))
		return
	}
	JSON(w, http.StatusOK, sub)
}
