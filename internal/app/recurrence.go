/**
 * @description
 * RecurrenceRunner expands due recurring templates into payment requests. The cron
 * scheduler, the admin endpoints and the CLI all call Run, so every path behaves the
 * same for a given as-of date.
 *
 * @notes
 * - A failure listing due templates aborts the tick; per-template failures are logged
 *   and counted while the loop continues.
 * - Each firing is one store transaction (insert request, advance date). Cancellation
 *   is honoured between templates only.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/metrics"
	"github.com/payflow/approval-service/internal/store"
	"go.uber.org/zap"
)

const recurrenceLockName = "recurrence:run"

// TemplateStore defines the template operations the runner needs.
type TemplateStore interface {
	FindDueTemplates(ctx context.Context, date time.Time) ([]domain.RecurringTemplate, error)
	FireTemplate(ctx context.Context, params store.FireParams) (*domain.PaymentRequest, error)
}

// RequestEventPublisher is notified after a payment request is created.
type RequestEventPublisher interface {
	PublishPaymentRequestCreated(ctx context.Context, event domain.PaymentRequestEvent) error
}

// RunLocker extends the in-process guard across instances.
type RunLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// RecurrenceRunner implements one recurrence tick.
type RecurrenceRunner struct {
	store   TemplateStore
	events  RequestEventPublisher
	locker  RunLocker
	lockTTL time.Duration
	loc     *time.Location
	logger  *zap.Logger

	mu sync.Mutex
}

// RecurrenceOption customizes a RecurrenceRunner.
type RecurrenceOption func(*RecurrenceRunner)

// WithRunLocker adds a cross-instance lock held for at most ttl.
func WithRunLocker(locker RunLocker, ttl time.Duration) RecurrenceOption {
	return func(r *RecurrenceRunner) {
		r.locker = locker
		r.lockTTL = ttl
	}
}

// WithRequestEvents publishes an event for every generated request.
func WithRequestEvents(events RequestEventPublisher) RecurrenceOption {
	return func(r *RecurrenceRunner) {
		r.events = events
	}
}

// NewRecurrenceRunner creates a runner that evaluates "today" in loc.
func NewRecurrenceRunner(store TemplateStore, loc *time.Location, logger *zap.Logger, opts ...RecurrenceOption) *RecurrenceRunner {
	if loc == nil {
		loc = time.UTC
	}
	r := &RecurrenceRunner{
		store:   store,
		loc:     loc,
		logger:  logger.Named("recurrence"),
		lockTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Location is the business timezone used to derive the firing date.
func (r *RecurrenceRunner) Location() *time.Location {
	return r.loc
}

// Run fires every active template due on the calendar date of asOf.
// It returns ErrRunInProgress when another run holds the guard.
func (r *RecurrenceRunner) Run(ctx context.Context, asOf time.Time) (summary domain.RunSummary, err error) {
	if !r.mu.TryLock() {
		metrics.RecurrenceRuns.WithLabelValues("skipped").Inc()
		return summary, ErrRunInProgress
	}
	defer r.mu.Unlock()

	date := DateOf(asOf, r.loc)
	summary.Date = date.Format(domain.DateLayout)

	if r.locker != nil {
		release, acquired, lockErr := r.locker.Acquire(ctx, recurrenceLockName, r.lockTTL)
		switch {
		case lockErr != nil:
			r.logger.Warn("distributed run lock unavailable; continuing with local guard", zap.Error(lockErr))
		case !acquired:
			metrics.RecurrenceRuns.WithLabelValues("skipped").Inc()
			return summary, ErrRunInProgress
		default:
			defer func() {
				if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
					r.logger.Warn("failed to release run lock", zap.Error(relErr))
				}
			}()
		}
	}

	start := time.Now()
	defer func() {
		metrics.RecurrenceDuration.Observe(time.Since(start).Seconds())
		result := "success"
		if err != nil {
			result = "failed"
		}
		metrics.RecurrenceRuns.WithLabelValues(result).Inc()
	}()

	r.logger.Info("starting recurrence run", zap.String("date", summary.Date))

	templates, err := r.store.FindDueTemplates(ctx, date)
	if err != nil {
		r.logger.Error("failed to load due templates", zap.String("date", summary.Date), zap.Error(err))
		return summary, fmt.Errorf("find due templates: %w", err)
	}
	summary.Due = len(templates)

	for _, tpl := range templates {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.logger.Warn("recurrence run cancelled", zap.String("date", summary.Date), zap.Int("created", summary.Created))
			return summary, ctxErr
		}
		r.fire(ctx, tpl, date, &summary)
	}

	r.logger.Info("recurrence run finished",
		zap.String("date", summary.Date),
		zap.Int("due", summary.Due),
		zap.Int("created", summary.Created),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (r *RecurrenceRunner) fire(ctx context.Context, tpl domain.RecurringTemplate, date time.Time, summary *domain.RunSummary) {
	log := r.logger.With(zap.String("template_id", tpl.ID.String()), zap.String("frequency", string(tpl.Frequency)))

	next, ok := NextDueDate(tpl, date)
	if !ok {
		summary.Skipped++
		metrics.RecurrenceTemplates.WithLabelValues("unknown_frequency").Inc()
		log.Warn("unknown frequency; template not fired")
		return
	}

	// A started firing runs to commit or rollback even if the tick is cancelled.
	req, err := r.store.FireTemplate(context.WithoutCancel(ctx), store.FireParams{
		TemplateID:  tpl.ID,
		Date:        date,
		NextDueDate: next,
	})
	if errors.Is(err, store.ErrTemplateNotDue) {
		summary.Skipped++
		metrics.RecurrenceTemplates.WithLabelValues("already_fired").Inc()
		log.Info("template no longer due; skipping")
		return
	}
	if err != nil {
		summary.Failed++
		metrics.RecurrenceTemplates.WithLabelValues("failed").Inc()
		log.Error("failed to fire template", zap.Error(err))
		return
	}

	summary.Created++
	metrics.RecurrenceTemplates.WithLabelValues("created").Inc()
	metrics.PaymentRequests.WithLabelValues(string(domain.StatusPending), "recurring").Inc()
	log.Info("generated payment request", zap.String("request_id", req.ID.String()), zap.String("next_due_date", next.Format(domain.DateLayout)))

	r.publish(ctx, req)
}

func (r *RecurrenceRunner) publish(ctx context.Context, req *domain.PaymentRequest) {
	if r.events == nil {
		return
	}
	event := requestEvent(req)
	if err := r.events.PublishPaymentRequestCreated(ctx, event); err != nil {
		r.logger.Warn("failed to publish payment request event", zap.String("request_id", req.ID.String()), zap.Error(err))
	}
}

func requestEvent(req *domain.PaymentRequest) domain.PaymentRequestEvent {
	var templateID *uuid.UUID
	if req.TemplateID != nil {
		id := *req.TemplateID
		templateID = &id
	}
	return domain.PaymentRequestEvent{
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		TemplateID:  templateID,
		Amount:      req.Amount,
		DueDate:     req.DueDate.Format(domain.DateLayout),
		Timestamp:   time.Now().UTC(),
	}
}
