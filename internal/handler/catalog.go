package handler

import (
	"net/http"

	"github.com/orgadmin/backend/internal/service"
)

// CatalogHandler lists what can be bought.
type CatalogHandler struct {
	subs *service.SubscriptionService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(subs *service.SubscriptionService) *CatalogHandler {
	return &CatalogHandler{subs: subs}
}

// Plans handles GET /api/catalog/plans.
func (h *CatalogHandler) Plans(w http.ResponseWriter, r *http.Request) {
	items, err := h.subs.ListPlans(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, items)
}

// Modules handles GET /api/catalog/modules.
func (h *CatalogHandler) Modules(w http.ResponseWriter, r *http.Request) {
	items, err := h.subs.ListModules(r.Context())
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, items)
}
