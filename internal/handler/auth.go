package handler

import (
	"net/http"

	"github.com/orgadmin/backend/internal/contextkeys"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/service"
)

// AuthHandler handles staff authentication endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := DecodeJSON(r, &req); err != nil {
		Error(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		Error(w, domain.ErrBadRequest("email and password are required"))
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := contextkeys.Staff(r.Context())
	if userID == "" {
		Error(w, domain.ErrUnauthorized("unauthorized"))
		return
	}
	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, user)
}
