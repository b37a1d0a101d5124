/**
 * @description
 * This file defines the `Repository` interface, the contract for every data access
 * operation the approval service needs, plus the sentinel errors callers match with
 * errors.Is. Services depend on narrower interfaces carved out of this one.
 *
 * @dependencies
 * - github.com/google/uuid: identifiers.
 * - internal/domain: the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/domain"
)

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrEmailTaken               = errors.New("email already registered")
	ErrAdminExists              = errors.New("an admin account already exists")
	ErrVersionConflict          = errors.New("lock state version conflict")
	ErrPaymentRequestNotFound   = errors.New("payment request not found")
	ErrPaymentRequestWrongState = errors.New("payment request is not in the required status")
	ErrTemplateNotFound         = errors.New("recurring template not found")
	ErrTemplateNotDue           = errors.New("recurring template is not due on this date")
)

// RequestFilter narrows ListPaymentRequests. Nil fields do not filter.
type RequestFilter struct {
	RequesterID *uuid.UUID
	Status      *domain.RequestStatus
}

// FireParams identifies one template firing for FireTemplate.
type FireParams struct {
	TemplateID  uuid.UUID
	Date        time.Time
	NextDueDate time.Time
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Accounts and lock state
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) (uuid.UUID, error)
	UpdateUser(ctx context.Context, user *domain.User, passwordHash *string) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	CountAdmins(ctx context.Context, excluding *uuid.UUID) (int, error)
	UpdateLockState(ctx context.Context, id uuid.UUID, expectedVersion int64, state domain.LockState) error
	ResetLockState(ctx context.Context, id uuid.UUID) error

	// Payment requests
	CreatePaymentRequest(ctx context.Context, req *domain.PaymentRequest) (uuid.UUID, error)
	FindPaymentRequestByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error)
	ListPaymentRequests(ctx context.Context, filter RequestFilter) ([]domain.PaymentRequest, error)
	ReviewPaymentRequest(ctx context.Context, id, approverID uuid.UUID, status domain.RequestStatus, comment *string) (*domain.PaymentRequest, error)
	MarkPaymentRequestPaid(ctx context.Context, id, payerID uuid.UUID) (*domain.PaymentRequest, error)
	DeletePaymentRequest(ctx context.Context, id uuid.UUID) error

	// Recurring templates
	CreateRecurringTemplate(ctx context.Context, tpl *domain.RecurringTemplate) (uuid.UUID, error)
	ListActiveTemplatesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.RecurringTemplate, error)
	FindTemplateByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error)
	DeactivateTemplate(ctx context.Context, id, ownerID uuid.UUID) error
	FindDueTemplates(ctx context.Context, date time.Time) ([]domain.RecurringTemplate, error)
	AdvanceNextDue(ctx context.Context, id uuid.UUID, date time.Time) error
	FireTemplate(ctx context.Context, params FireParams) (*domain.PaymentRequest, error)

	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}
