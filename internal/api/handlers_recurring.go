package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/payflow/approval-service/internal/app"
	"github.com/payflow/approval-service/internal/domain"
)

// RescheduleTemplateRequest moves a template's next firing.
type RescheduleTemplateRequest struct {
	NextDueDate string `json:"next_due_date"`
}

func (h *Handler) CreateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload domain.CreateRecurringTemplateRequest
	if !h.decode(w, r, &payload) {
		return
	}
	tpl, err := h.templates.Create(r.Context(), actor, payload)
	if err != nil {
		h.writeServiceError(w, r, "create_recurring_template", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, tpl)
}

func (h *Handler) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	templates, err := h.templates.ListOwn(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, "list_recurring_templates", err)
		return
	}
	if templates == nil {
		templates = []domain.RecurringTemplate{}
	}
	h.writeJSON(w, http.StatusOK, templates)
}

func (h *Handler) DeactivateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.templates.Deactivate(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, "deactivate_recurring_template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RescheduleTemplateHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var payload RescheduleTemplateRequest
	if !h.decode(w, r, &payload) {
		return
	}
	tpl, err := h.templates.Reschedule(r.Context(), actor, id, payload.NextDueDate)
	if err != nil {
		h.writeServiceError(w, r, "reschedule_recurring_template", err)
		return
	}
	h.writeJSON(w, http.StatusOK, tpl)
}

// RunRecurrenceHandler triggers a recurrence tick. An optional ?date=YYYY-MM-DD selects the business date.
func (h *Handler) RunRecurrenceHandler(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		date, err := app.ParseDate(raw)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "date must use the YYYY-MM-DD format.")
			return
		}
		// Noon in the business timezone always maps back to the same calendar date.
		asOf = time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, h.recurrence.Location())
	}

	summary, err := h.recurrence.Run(r.Context(), asOf)
	if err != nil {
		h.writeServiceError(w, r, "run_recurrence", err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}
