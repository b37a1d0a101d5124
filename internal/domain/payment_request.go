package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RequestStatus is the review lifecycle of a payment request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusAuthorized RequestStatus = "authorized"
	StatusRejected   RequestStatus = "rejected"
	StatusPaid       RequestStatus = "paid"
)

// PaymentRequest maps to the `payment_requests` table.
type PaymentRequest struct {
	ID                 uuid.UUID       `json:"id"`
	RequesterID        uuid.UUID       `json:"requester_id"`
	Department         string          `json:"department"`
	Amount             decimal.Decimal `json:"amount"`
	DestinationAccount string          `json:"destination_account"`
	InvoiceURL         *string         `json:"invoice_url,omitempty"`
	Concept            string          `json:"concept"`
	PaymentType        string          `json:"payment_type"`
	DueDate            time.Time       `json:"due_date"`
	SupportURL         *string         `json:"support_url,omitempty"`
	Status             RequestStatus   `json:"status"`
	ApproverID         *uuid.UUID      `json:"approver_id,omitempty"`
	ApproverComment    *string         `json:"approver_comment,omitempty"`
	ReviewedAt         *time.Time      `json:"reviewed_at,omitempty"`
	PayerID            *uuid.UUID      `json:"payer_id,omitempty"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	TemplateID         *uuid.UUID      `json:"template_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

// CreatePaymentRequest is the DTO for the create endpoint. Dates use the YYYY-MM-DD layout.
type CreatePaymentRequest struct {
	Department         string          `json:"department"`
	Amount             decimal.Decimal `json:"amount"`
	DestinationAccount string          `json:"destination_account"`
	InvoiceURL         string          `json:"invoice_url"`
	Concept            string          `json:"concept"`
	PaymentType        string          `json:"payment_type"`
	DueDate            string          `json:"due_date"`
	SupportURL         string          `json:"support_url,omitempty"`
}

// ReviewRequest is the DTO an approver submits to authorize or reject a request.
type ReviewRequest struct {
	Status  RequestStatus `json:"status"`
	Comment string        `json:"comment,omitempty"`
}

// PaymentRequestEvent is published when a payment request is created.
type PaymentRequestEvent struct {
	RequestID   uuid.UUID       `json:"request_id"`
	RequesterID uuid.UUID       `json:"requester_id"`
	TemplateID  *uuid.UUID      `json:"template_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	Timestamp   time.Time       `json:"timestamp"`
}

// AccountLockedEvent is published when an account enters a lockout phase.
type AccountLockedEvent struct {
	UserID    uuid.UUID  `json:"user_id"`
	Email     string     `json:"email"`
	Permanent bool       `json:"permanent"`
	LockUntil *time.Time `json:"lock_until,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
