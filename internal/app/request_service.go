package app

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/metrics"
	"github.com/payflow/approval-service/internal/store"
	"go.uber.org/zap"
)

const maxReviewCommentLength = 1000

// RequestStore defines the payment request operations.
type RequestStore interface {
	CreatePaymentRequest(ctx context.Context, req *domain.PaymentRequest) (uuid.UUID, error)
	FindPaymentRequestByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
	ListPaymentRequests(ctx context.Context, filter store.RequestFilter) ([]domain.PaymentRequest, error)
	ReviewPaymentRequest(ctx context.Context, id, approverID uuid.UUID, status domain.RequestStatus, comment *string) (*domain.PaymentRequest, error)
	MarkPaymentRequestPaid(ctx context.Context, id, payerID uuid.UUID) (*domain.PaymentRequest, error)
	DeletePaymentRequest(ctx context.Context, id uuid.UUID) error
}

// RequestService applies the role rules of the payment request lifecycle.
type RequestService struct {
	store  RequestStore
	events RequestEventPublisher
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewRequestService creates a RequestService. events may be nil.
func NewRequestService(store RequestStore, events RequestEventPublisher, loc *time.Location, logger *zap.Logger) *RequestService {
	if loc == nil {
		loc = time.UTC
	}
	return &RequestService{store: store, events: events, loc: loc, logger: logger.Named("requests"), now: time.Now}
}

// Create files a new pending request on behalf of actor.
func (s *RequestService) Create(ctx context.Context, actor Actor, in domain.CreatePaymentRequest) (*domain.PaymentRequest, error) {
	in.Department = strings.TrimSpace(in.Department)
	in.DestinationAccount = strings.TrimSpace(in.DestinationAccount)
	in.Concept = strings.TrimSpace(in.Concept)
	in.PaymentType = strings.TrimSpace(in.PaymentType)
	in.InvoiceURL = strings.TrimSpace(in.InvoiceURL)
	in.SupportURL = strings.TrimSpace(in.SupportURL)

	v := &validator{}
	validateDepartment(v, in.Department)
	v.check(in.Amount.IsPositive(), "amount must be greater than zero")
	v.check(in.DestinationAccount != "", "destination_account is required")
	v.check(validURL(in.InvoiceURL), "invoice_url must be a valid http(s) URL")
	v.check(len(in.Concept) >= 5 && len(in.Concept) <= 500, "concept must be between 5 and 500 characters")
	v.check(in.PaymentType != "" && len(in.PaymentType) <= 50, "payment_type is required")
	if in.SupportURL != "" {
		v.check(validURL(in.SupportURL), "support_url must be a valid http(s) URL")
	}
	dueDate, err := ParseDate(in.DueDate)
	if err != nil {
		v.add("due_date must use the YYYY-MM-DD format")
	} else {
		v.check(!dueDate.Before(DateOf(s.now(), s.loc)), "due_date cannot be in the past")
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	invoiceURL := in.InvoiceURL
	req := &domain.PaymentRequest{
		RequesterID:        actor.ID,
		Department:         in.Department,
		Amount:             in.Amount,
		DestinationAccount: in.DestinationAccount,
		InvoiceURL:         &invoiceURL,
		Concept:            in.Concept,
		PaymentType:        in.PaymentType,
		DueDate:            dueDate,
		Status:             domain.StatusPending,
	}
	if in.SupportURL != "" {
		supportURL := in.SupportURL
		req.SupportURL = &supportURL
	}

	if _, err := s.store.CreatePaymentRequest(ctx, req); err != nil {
		return nil, err
	}
	metrics.PaymentRequests.WithLabelValues(string(domain.StatusPending), "api").Inc()
	s.logger.Info("payment request created", zap.String("request_id", req.ID.String()), zap.String("requester_id", actor.ID.String()))

	if s.events != nil {
		if err := s.events.PublishPaymentRequestCreated(ctx, requestEvent(req)); err != nil {
			s.logger.Warn("failed to publish payment request event", zap.String("request_id", req.ID.String()), zap.Error(err))
		}
	}
	return req, nil
}

// List returns what actor may see: requesters their own, bank payers authorized requests, everyone else all.
func (s *RequestService) List(ctx context.Context, actor Actor) ([]domain.PaymentRequest, error) {
	var filter store.RequestFilter
	switch actor.Role {
	case domain.RoleRequester:
		id := actor.ID
		filter.RequesterID = &id
	case domain.RoleBankPayer:
		status := domain.StatusAuthorized
		filter.Status = &status
	}
	return s.store.ListPaymentRequests(ctx, filter)
}

// Get returns one request. Requesters may only read their own.
func (s *RequestService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*domain.PaymentRequest, error) {
	req, err := s.store.FindPaymentRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleRequester && req.RequesterID != actor.ID {
		return nil, ErrForbidden
	}
	return req, nil
}

// Review authorizes or rejects a pending request.
func (s *RequestService) Review(ctx context.Context, actor Actor, id uuid.UUID, in domain.ReviewRequest) (*domain.PaymentRequest, error) {
	v := &validator{}
	v.check(in.Status == domain.StatusAuthorized || in.Status == domain.StatusRejected, "status must be authorized or rejected")
	v.check(len(in.Comment) <= maxReviewCommentLength, fmt.Sprintf("comment must be at most %d characters", maxReviewCommentLength))
	if err := v.err(); err != nil {
		return nil, err
	}

	var comment *string
	if c := strings.TrimSpace(in.Comment); c != "" {
		comment = &c
	}

	req, err := s.store.ReviewPaymentRequest(ctx, id, actor.ID, in.Status, comment)
	if err != nil {
		return nil, err
	}
	metrics.PaymentRequests.WithLabelValues(string(in.Status), "api").Inc()
	s.logger.Info("payment request reviewed", zap.String("request_id", id.String()), zap.String("status", string(in.Status)), zap.String("approver_id", actor.ID.String()))
	return req, nil
}

// MarkPaid settles an authorized request.
func (s *RequestService) MarkPaid(ctx context.Context, actor Actor, id uuid.UUID) (*domain.PaymentRequest, error) {
	req, err := s.store.MarkPaymentRequestPaid(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	metrics.PaymentRequests.WithLabelValues(string(domain.StatusPaid), "api").Inc()
	s.logger.Info("payment request paid", zap.String("request_id", id.String()), zap.String("payer_id", actor.ID.String()))
	return req, nil
}

func (s *RequestService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.store.DeletePaymentRequest(ctx, id)
}

func validateDepartment(v *validator, department string) {
	v.check(len(department) >= 2 && len(department) <= 100, "department must be between 2 and 100 characters")
}

func validURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
