/**
 * @description
 * HTTP handlers for the approval service. Handlers decode the request, call the
 * service layer and translate its sentinel errors into status codes.
 *
 * @notes
 * - Services are consumed through the narrow interfaces below so handlers can be
 *   exercised with httptest and in-memory fakes.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/app"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/store"
	"go.uber.org/zap"
)

// Authenticator runs the login flow.
type Authenticator interface {
	Login(ctx context.Context, email, password string) app.LoginResult
}

// UserManager is the admin account surface.
type UserManager interface {
	List(ctx context.Context) ([]domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Update(ctx context.Context, id uuid.UUID, req domain.UpdateUserRequest) (*domain.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Unlock(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// RequestManager is the payment request surface.
type RequestManager interface {
	Create(ctx context.Context, actor app.Actor, in domain.CreatePaymentRequest) (*domain.PaymentRequest, error)
	List(ctx context.Context, actor app.Actor) ([]domain.PaymentRequest, error)
	Get(ctx context.Context, actor app.Actor, id uuid.UUID) (*domain.PaymentRequest, error)
	Review(ctx context.Context, actor app.Actor, id uuid.UUID, in domain.ReviewRequest) (*domain.PaymentRequest, error)
	MarkPaid(ctx context.Context, actor app.Actor, id uuid.UUID) (*domain.PaymentRequest, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TemplateManager is the recurring template surface.
type TemplateManager interface {
	Create(ctx context.Context, actor app.Actor, in domain.CreateRecurringTemplateRequest) (*domain.RecurringTemplate, error)
	ListOwn(ctx context.Context, actor app.Actor) ([]domain.RecurringTemplate, error)
	Deactivate(ctx context.Context, actor app.Actor, id uuid.UUID) error
	Reschedule(ctx context.Context, actor app.Actor, id uuid.UUID, date string) (*domain.RecurringTemplate, error)
}

// RecurrenceTrigger runs a recurrence tick on demand.
type RecurrenceTrigger interface {
	Run(ctx context.Context, asOf time.Time) (domain.RunSummary, error)
	Location() *time.Location
}

// Handler holds the services the HTTP handlers interact with.
type Handler struct {
	auth       Authenticator
	users      UserManager
	requests   RequestManager
	templates  TemplateManager
	recurrence RecurrenceTrigger
	logger     *zap.Logger
}

// Services groups the dependencies of NewHandler.
type Services struct {
	Auth       Authenticator
	Users      UserManager
	Requests   RequestManager
	Templates  TemplateManager
	Recurrence RecurrenceTrigger
}

func NewHandler(services Services, logger *zap.Logger) *Handler {
	return &Handler{
		auth:       services.Auth,
		users:      services.Users,
		requests:   services.Requests,
		templates:  services.Templates,
		recurrence: services.Recurrence,
		logger:     logger.Named("api"),
	}
}

// ErrorResponse is the body of every non-login error.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Problems []string `json:"problems,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps service and store errors to a status code.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	var vErr *app.ValidationError
	switch {
	case errors.As(err, &vErr):
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Problems: vErr.Problems})
	case errors.Is(err, app.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "You do not have access to this resource.")
	case errors.Is(err, store.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, store.ErrPaymentRequestNotFound):
		h.writeError(w, http.StatusNotFound, "Payment request not found.")
	case errors.Is(err, store.ErrTemplateNotFound):
		h.writeError(w, http.StatusNotFound, "Recurring template not found.")
	case errors.Is(err, store.ErrEmailTaken):
		h.writeError(w, http.StatusConflict, "Email is already registered.")
	case errors.Is(err, store.ErrAdminExists):
		h.writeError(w, http.StatusConflict, "An admin account already exists.")
	case errors.Is(err, store.ErrPaymentRequestWrongState):
		h.writeError(w, http.StatusConflict, "Payment request is not in a state that allows this action.")
	case errors.Is(err, app.ErrRunInProgress):
		h.writeError(w, http.StatusConflict, "A recurrence run is already in progress.")
	default:
		h.logger.Error("request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", requestID(r)),
			zap.Error(err),
		)
		h.writeError(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request payload.")
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid ID.")
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the authenticated caller; routes using it sit behind AuthMiddleware.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (app.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required.")
	}
	return actor, ok
}
