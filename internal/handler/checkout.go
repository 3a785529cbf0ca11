package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/service"
)

// CheckoutHandler exposes the checkout workflow.
type CheckoutHandler struct {
	svc *service.CheckoutService
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(svc *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{svc: svc}
}

// Start handles POST /api/checkout. The checkout page's query parameters are
// accepted as-is; a JSON body overrides them.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	req, err := startRequestFromQuery(r)
	if err != nil {
		Error(w, err)
		return
	}
	if err := DecodeOptionalJSON(r, req); err != nil {
		Error(w, err)
		return
	}

	view, err := h.svc.Start(r.Context(), req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, view)
}

func startRequestFromQuery(r *http.Request) (*domain.StartCheckoutRequest, error) {
	q := r.URL.Query()
	req := &domain.StartCheckoutRequest{
		Type:      q.Get("type"),
		ReturnURL: q.Get("returnUrl"),
		Mode:      q.Get("mode"),
		Gateway:   q.Get("gateway"),
	}
	var err error
	if v := q.Get("itemId"); v != "" {
		if req.ItemID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, domain.ErrBadRequest("itemId must be an integer")
		}
	}
	if v := q.Get("organizationId"); v != "" {
		if req.OrganizationID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, domain.ErrBadRequest("organizationId must be an integer")
		}
	}
	return req, nil
}

// Get handles GET /api/checkout/{id}.
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// SelectMethod handles PUT /api/checkout/{id}/method.
func (h *CheckoutHandler) SelectMethod(w http.ResponseWriter, r *http.Request) {
	var req domain.SelectMethodRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	view, err := h.svc.SelectMethod(chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// Submit handles POST /api/checkout/{id}/submit. Pix and boleto need no body.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := DecodeOptionalJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	view, err := h.svc.Submit(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// Confirm handles POST /api/checkout/{id}/confirm ("I already paid").
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.ConfirmManual(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, view)
}

// Abandon handles DELETE /api/checkout/{id}.
func (h *CheckoutHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Abandon(chi.URLParam(r, "id")); err != nil {
		Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
