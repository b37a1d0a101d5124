package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/shopspring/decimal"
)

const paymentRequestColumns = `
	id, requester_id, department, amount::text, destination_account, invoice_url,
	concept, payment_type, due_date, support_url, status,
	approver_id, approver_comment, reviewed_at, payer_id, paid_at,
	template_id, created_at
`

// querier is satisfied by both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanPaymentRequest(row pgx.Row) (*domain.PaymentRequest, error) {
	var (
		req    domain.PaymentRequest
		amount string
	)
	err := row.Scan(
		&req.ID,
		&req.RequesterID,
		&req.Department,
		&amount,
		&req.DestinationAccount,
		&req.InvoiceURL,
		&req.Concept,
		&req.PaymentType,
		&req.DueDate,
		&req.SupportURL,
		&req.Status,
		&req.ApproverID,
		&req.ApproverComment,
		&req.ReviewedAt,
		&req.PayerID,
		&req.PaidAt,
		&req.TemplateID,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if req.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &req, nil
}

func insertPaymentRequest(ctx context.Context, q querier, req *domain.PaymentRequest) error {
	query := `
		INSERT INTO payment_requests (
			requester_id, department, amount, destination_account, invoice_url,
			concept, payment_type, due_date, support_url, status, template_id
		)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	status := req.Status
	if status == "" {
		status = domain.StatusPending
	}
	err := q.QueryRow(ctx, query,
		req.RequesterID,
		req.Department,
		req.Amount.String(),
		req.DestinationAccount,
		req.InvoiceURL,
		req.Concept,
		req.PaymentType,
		pgDate(req.DueDate),
		req.SupportURL,
		status,
		req.TemplateID,
	).Scan(&req.ID, &req.CreatedAt)
	if err != nil {
		return err
	}
	req.Status = status
	return nil
}

// CreatePaymentRequest inserts a request and returns its id. req.ID and req.CreatedAt are filled in.
func (r *PostgresRepository) CreatePaymentRequest(ctx context.Context, req *domain.PaymentRequest) (uuid.UUID, error) {
	if err := insertPaymentRequest(ctx, r.db, req); err != nil {
		return uuid.Nil, fmt.Errorf("insert payment request: %w", err)
	}
	return req.ID, nil
}

// FindPaymentRequestByID retrieves a single payment request.
func (r *PostgresRepository) FindPaymentRequestByID(ctx context.Context, id uuid.UUID) (*domain.PaymentRequest, error) {
	req, err := scanPaymentRequest(r.db.QueryRow(ctx, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListPaymentRequests returns requests newest first, narrowed by filter.
func (r *PostgresRepository) ListPaymentRequests(ctx context.Context, filter RequestFilter) ([]domain.PaymentRequest, error) {
	query := `SELECT ` + paymentRequestColumns + `
		FROM payment_requests
		WHERE ($1::uuid IS NULL OR requester_id = $1::uuid)
		  AND ($2::text IS NULL OR status = $2::text)
		ORDER BY created_at DESC
	`
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	rows, err := r.db.Query(ctx, query, filter.RequesterID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []domain.PaymentRequest{}
	for rows.Next() {
		req, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// ReviewPaymentRequest records an approver decision on a pending request.
func (r *PostgresRepository) ReviewPaymentRequest(ctx context.Context, id, approverID uuid.UUID, status domain.RequestStatus, comment *string) (*domain.PaymentRequest, error) {
	query := `
		UPDATE payment_requests
		SET status = $2,
			approver_id = $3,
			approver_comment = $4,
			reviewed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + paymentRequestColumns
	req, err := scanPaymentRequest(r.db.QueryRow(ctx, query, id, status, approverID, comment))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.stateOrMissing(ctx, id)
		}
		return nil, err
	}
	return req, nil
}

// MarkPaymentRequestPaid settles an authorized request.
func (r *PostgresRepository) MarkPaymentRequestPaid(ctx context.Context, id, payerID uuid.UUID) (*domain.PaymentRequest, error) {
	query := `
		UPDATE payment_requests
		SET status = 'paid',
			payer_id = $2,
			paid_at = NOW()
		WHERE id = $1 AND status = 'authorized'
		RETURNING ` + paymentRequestColumns
	req, err := scanPaymentRequest(r.db.QueryRow(ctx, query, id, payerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.stateOrMissing(ctx, id)
		}
		return nil, err
	}
	return req, nil
}

// DeletePaymentRequest removes a request regardless of status.
func (r *PostgresRepository) DeletePaymentRequest(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM payment_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrPaymentRequestNotFound
	}
	return nil
}

// stateOrMissing tells a guarded UPDATE that matched nothing apart: missing row or wrong status.
func (r *PostgresRepository) stateOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrPaymentRequestNotFound
	}
	return ErrPaymentRequestWrongState
}
