package api

import (
	"net/http"

	"github.com/payflow/approval-service/internal/domain"
)

func (h *Handler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list_users", err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "get_user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload domain.CreateUserRequest
	if !h.decode(w, r, &payload) {
		return
	}
	user, err := h.users.Create(r.Context(), payload)
	if err != nil {
		h.writeServiceError(w, r, "create_user", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload domain.UpdateUserRequest
	if !h.decode(w, r, &payload) {
		return
	}
	user, err := h.users.Update(r.Context(), id, payload)
	if err != nil {
		h.writeServiceError(w, r, "update_user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *Handler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlockUserHandler clears every lockout field of an account.
func (h *Handler) UnlockUserHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.users.Unlock(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "unlock_user", err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}
