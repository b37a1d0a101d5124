package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/lockout"
)

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	User      *domain.UserProfile `json:"user"`
}

// LoginErrorResponse describes a rejected login.
type LoginErrorResponse struct {
	Error             lockout.Kind `json:"error"`
	Message           string       `json:"message"`
	RetryAfterSeconds int          `json:"retry_after_seconds,omitempty"`
}

// LoginHandler authenticates an account and returns a session token.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.LoginRequest
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.Email == "" || payload.Password == "" {
		h.writeError(w, http.StatusBadRequest, "Email and password are required.")
		return
	}

	result := h.auth.Login(r.Context(), payload.Email, payload.Password)
	out := result.Outcome
	if out.Succeeded() {
		h.writeJSON(w, http.StatusOK, LoginResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, User: result.User})
		return
	}

	if out.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(out.RetryAfter))
	}
	h.writeJSON(w, loginStatus(out.Kind), LoginErrorResponse{
		Error:             out.Kind,
		Message:           out.Message,
		RetryAfterSeconds: out.RetryAfter,
	})
}

func loginStatus(kind lockout.Kind) int {
	switch kind {
	case lockout.KindInvalidCredentials:
		return http.StatusUnauthorized
	case lockout.KindTemporarilyLocked, lockout.KindPermanentlyLocked:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
