package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/store"
	"go.uber.org/zap"
)

// RecurringTemplateStore defines the template management operations.
type RecurringTemplateStore interface {
	CreateRecurringTemplate(ctx context.Context, tpl *domain.RecurringTemplate) (uuid.UUID, error)
	ListActiveTemplatesByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.RecurringTemplate, error)
	FindTemplateByID(ctx context.Context, id uuid.UUID) (*domain.RecurringTemplate, error)
	DeactivateTemplate(ctx context.Context, id, ownerID uuid.UUID) error
	AdvanceNextDue(ctx context.Context, id uuid.UUID, date time.Time) error
}

// TemplateService manages a requester's recurring payment templates.
type TemplateService struct {
	store  RecurringTemplateStore
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

func NewTemplateService(store RecurringTemplateStore, loc *time.Location, logger *zap.Logger) *TemplateService {
	if loc == nil {
		loc = time.UTC
	}
	return &TemplateService{store: store, loc: loc, logger: logger.Named("templates"), now: time.Now}
}

// Create registers a template. Its first firing is NextDueDate.
func (s *TemplateService) Create(ctx context.Context, actor Actor, in domain.CreateRecurringTemplateRequest) (*domain.RecurringTemplate, error) {
	in.Department = strings.TrimSpace(in.Department)
	in.DestinationAccount = strings.TrimSpace(in.DestinationAccount)
	in.Concept = strings.TrimSpace(in.Concept)
	in.PaymentType = strings.TrimSpace(in.PaymentType)
	in.Frequency = domain.Frequency(strings.ToLower(strings.TrimSpace(string(in.Frequency))))

	v := &validator{}
	validateDepartment(v, in.Department)
	v.check(in.Amount.IsPositive(), "amount must be greater than zero")
	v.check(in.DestinationAccount != "", "destination_account is required")
	v.check(in.Concept != "", "concept is required")
	v.check(in.PaymentType != "", "payment_type is required")
	v.check(in.Frequency.Valid(), "frequency must be daily, weekly or monthly")
	nextDue := s.checkFutureDate(v, in.NextDueDate, "next_due_date")
	if err := v.err(); err != nil {
		return nil, err
	}

	tpl := &domain.RecurringTemplate{
		OwnerID:            actor.ID,
		Department:         in.Department,
		Amount:             in.Amount,
		DestinationAccount: in.DestinationAccount,
		Concept:            in.Concept,
		PaymentType:        in.PaymentType,
		Frequency:          in.Frequency,
		NextDueDate:        nextDue,
	}
	if _, err := s.store.CreateRecurringTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	s.logger.Info("recurring template created", zap.String("template_id", tpl.ID.String()), zap.String("owner_id", actor.ID.String()), zap.String("frequency", string(tpl.Frequency)))
	return tpl, nil
}

// ListOwn returns the actor's active templates.
func (s *TemplateService) ListOwn(ctx context.Context, actor Actor) ([]domain.RecurringTemplate, error) {
	return s.store.ListActiveTemplatesByOwner(ctx, actor.ID)
}

// Deactivate stops one of the actor's templates.
func (s *TemplateService) Deactivate(ctx context.Context, actor Actor, id uuid.UUID) error {
	if err := s.store.DeactivateTemplate(ctx, id, actor.ID); err != nil {
		return err
	}
	s.logger.Info("recurring template deactivated", zap.String("template_id", id.String()))
	return nil
}

// Reschedule moves the next firing of one of the actor's active templates.
// Monthly templates follow the day of month of the new date from then on.
func (s *TemplateService) Reschedule(ctx context.Context, actor Actor, id uuid.UUID, date string) (*domain.RecurringTemplate, error) {
	v := &validator{}
	nextDue := s.checkFutureDate(v, date, "next_due_date")
	if err := v.err(); err != nil {
		return nil, err
	}

	tpl, err := s.store.FindTemplateByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl.OwnerID != actor.ID {
		return nil, ErrForbidden
	}
	if !tpl.Active {
		return nil, store.ErrTemplateNotFound
	}

	if err := s.store.AdvanceNextDue(ctx, id, nextDue); err != nil {
		return nil, err
	}
	tpl.NextDueDate = nextDue
	s.logger.Info("recurring template rescheduled", zap.String("template_id", id.String()), zap.String("next_due_date", date))
	return tpl, nil
}

func (s *TemplateService) checkFutureDate(v *validator, raw, field string) time.Time {
	date, err := ParseDate(strings.TrimSpace(raw))
	if err != nil {
		v.add(field + " must use the YYYY-MM-DD format")
		return time.Time{}
	}
	v.check(!date.Before(DateOf(s.now(), s.loc)), field+" cannot be in the past")
	return date
}
