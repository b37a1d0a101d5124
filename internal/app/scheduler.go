/**
 * @description
 * Cron scheduler for the recurrence tick.
 */
package app

import (
	"context"
	"errors"
	"time"

	"github.com/payflow/approval-service/internal/logging"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	runner   *RecurrenceRunner
	logger   *zap.Logger
	schedule string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance. Cron expressions are evaluated in the runner's timezone.
func NewScheduler(runner *RecurrenceRunner, schedule string, logger *zap.Logger) *Scheduler {
	cronLogger := logging.CronLogger(logger)
	c := cron.New(
		cron.WithLocation(runner.Location()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:     c,
		runner:   runner,
		logger:   logger.Named("scheduler"),
		schedule: schedule,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start registers the recurrence job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.RunRecurrence); err != nil {
		s.logger.Error("failed to schedule recurrence job", zap.String("schedule", s.schedule), zap.Error(err))
		return err
	}
	s.logger.Info("scheduled recurrence job", zap.String("schedule", s.schedule))

	s.cron.Start()
	return nil
}

// RunRecurrence is the cron entry point.
func (s *Scheduler) RunRecurrence() {
	summary, err := s.runner.Run(s.ctx, time.Now())
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("recurrence run skipped; another run is in progress")
	case err != nil:
		s.logger.Error("recurrence run failed", zap.String("date", summary.Date), zap.Error(err))
	}
}

// Stop cancels an in-flight tick between templates and waits for running jobs.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}
