/**
 * @description
 * HTTP handlers for payment request endpoints. Role checks happen in the router;
 * ownership checks happen in the service.
 */

package api

import (
	"net/http"

	"github.com/payflow/approval-service/internal/domain"
)

// CreatePaymentRequestHandler files a new pending request for the caller.
func (h *Handler) CreatePaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload domain.CreatePaymentRequest
	if !h.decode(w, r, &payload) {
		return
	}

	request, err := h.requests.Create(r.Context(), actor, payload)
	if err != nil {
		h.writeServiceError(w, r, "create_payment_request", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, request)
}

// ListPaymentRequestsHandler lists the requests visible to the caller's role.
func (h *Handler) ListPaymentRequestsHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requests, err := h.requests.List(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, "list_payment_requests", err)
		return
	}
	if requests == nil {
		requests = []domain.PaymentRequest{}
	}
	h.writeJSON(w, http.StatusOK, requests)
}

func (h *Handler) GetPaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	request, err := h.requests.Get(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, "get_payment_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

// ReviewPaymentRequestHandler authorizes or rejects a pending request.
func (h *Handler) ReviewPaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload domain.ReviewRequest
	if !h.decode(w, r, &payload) {
		return
	}

	request, err := h.requests.Review(r.Context(), actor, id, payload)
	if err != nil {
		h.writeServiceError(w, r, "review_payment_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

// PayPaymentRequestHandler marks an authorized request as paid.
func (h *Handler) PayPaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	request, err := h.requests.MarkPaid(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, "pay_payment_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, request)
}

func (h *Handler) DeletePaymentRequestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.requests.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete_payment_request", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
