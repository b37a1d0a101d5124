package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/shopspring/decimal"
)

const templateColumns = `
	id, owner_id, department, amount::text, destination_account, concept,
	payment_type, frequency, next_due_date, active, created_at, updated_at
`

func scanTemplate(row pgx.Row) (*domain.RecurringTemplate, error) {
	var (
		tpl    domain.RecurringTemplate
		amount string
	)
	err := row.Scan(
		&tpl.ID,
		&tpl.OwnerID,
		&tpl.Department,
		&amount,
		&tpl.DestinationAccount,
		&tpl.Concept,
		&tpl.PaymentType,
		&tpl.Frequency,
		&tpl.NextDueDate,
		&tpl.Active,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tpl.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &tpl, nil
}

func (r *PostgresRepository) queryTemplates(ctx context.Context, query string, args ...any) ([]domain.RecurringTemplate, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []domain.RecurringTemplate{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *tpl)
	}
	return templates, rows.Err()
}

// CreateRecurringTemplate inserts a template and returns its id.
func (r *PostgresRepository) CreateRecurringTemplate(ctx context.Context, tpl *domain.RecurringTemplate) (uuid.UUID, error) {
	query := `
		INSERT INTO recurring_templates (
			owner_id, department, amount, destination_account, concept,
			payment_type, frequency, next_due_date
		)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
		RETURNING id, active, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		tpl.OwnerID,
		tpl.Department,
		tpl.Amount.String(),
		tpl.DestinationAccount,
		tpl.Concept,
		tpl.PaymentType,
		tpl.Frequency,
		pgDate(tpl.NextDueDate),
	).Scan(&tpl.ID, &tpl.Active, &tpl.CreatedAt, &tpl.UpdatedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert recurring template: %w", err)
	}
	return tpl.ID, nil
}

// ListActiveTemplatesByOwner returns the owner's active templates by next due date.
func (r *PostgresRepository) ListActiveTemplatesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.RecurringTemplate, error) {
	return r.queryTemplates(ctx, `SELECT `+templateColumns+`
		FROM recurring_templates
		WHERE owner_id = $1 AND active
		ORDER BY next_due_date, created_at
	`, ownerID)
}

// FindTemplateByID loads a template regardless of its active flag.
func (r *PostgresRepository) FindTemplateByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error) {
	tpl, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return tpl, nil
}

// DeactivateTemplate stops a template owned by ownerID from firing again.
func (r *PostgresRepository) DeactivateTemplate(ctx context.Context, id, ownerID uuid.UUID) error {
	result, err := r.db.Exec(ctx, `
		UPDATE recurring_templates
		SET active = FALSE, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND active
	`, id, ownerID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// FindDueTemplates returns active templates whose next due date is exactly date.
func (r *PostgresRepository) FindDueTemplates(ctx context.Context, date time.Time) ([]domain.RecurringTemplate, error) {
	return r.queryTemplates(ctx, `SELECT `+templateColumns+`
		FROM recurring_templates
		WHERE active AND next_due_date = $1::date
		ORDER BY created_at, id
	`, pgDate(date))
}

// AdvanceNextDue moves a template's schedule to date.
func (r *PostgresRepository) AdvanceNextDue(ctx context.Context, id uuid.UUID, date time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE recurring_templates
		SET next_due_date = $2::date, updated_at = NOW()
		WHERE id = $1
	`, id, pgDate(date))
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// FireTemplate creates the request for one due template and advances its schedule in a
// single transaction. The template row is locked and re-checked so two concurrent
// firings for the same date cannot both insert.
func (r *PostgresRepository) FireTemplate(ctx context.Context, params FireParams) (*domain.PaymentRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tpl, err := scanTemplate(tx.QueryRow(ctx, `SELECT `+templateColumns+`
		FROM recurring_templates
		WHERE id = $1 AND active AND next_due_date = $2::date
		FOR UPDATE
	`, params.TemplateID, pgDate(params.Date)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotDue
		}
		return nil, err
	}

	templateID := tpl.ID
	req := &domain.PaymentRequest{
		RequesterID:        tpl.OwnerID,
		Department:         tpl.Department,
		Amount:             tpl.Amount,
		DestinationAccount: tpl.DestinationAccount,
		Concept:            tpl.Concept,
		PaymentType:        tpl.PaymentType,
		DueDate:            params.Date,
		Status:             domain.StatusPending,
		TemplateID:         &templateID,
	}
	if err := insertPaymentRequest(ctx, tx, req); err != nil {
		return nil, fmt.Errorf("insert generated request: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE recurring_templates
		SET next_due_date = $2::date, updated_at = NOW()
		WHERE id = $1
	`, tpl.ID, pgDate(params.NextDueDate)); err != nil {
		return nil, fmt.Errorf("advance next due date: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}
