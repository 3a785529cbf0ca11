package handler

import (
	"context"
	"net/http"

	"github.com/orgadmin/backend/pkg/payment"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	db       Pinger
	gateways *payment.Registry
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger, gateways *payment.Registry) *HealthHandler {
	return &HealthHandler{db: db, gateways: gateways}
}

// Check handles GET /health.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":   "ok",
		"gateways": h.gateways.Names(),
	}

	if err := h.db.Ping(r.Context()); err != nil {
		status["database"] = "error"
		status["status"] = "degraded"
	} else {
		status["database"] = "ok"
	}

	code := http.StatusOK
	if status["status"] == "degraded" {
		code = http.StatusServiceUnavailable
	}
	JSON(w, code, status)
}
