package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/payflow/approval-service/internal/api"
	"github.com/payflow/approval-service/internal/app"
	"github.com/payflow/approval-service/internal/lockout"
	"github.com/payflow/approval-service/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the recurrence scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	d, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer d.Close()
	cfg, logger := d.cfg, d.logger

	repository := store.NewPostgresRepository(d.pool)
	if err := repository.EnsureSchema(ctx); err != nil {
		return err
	}

	rdb := d.openRedis(ctx)
	if rdb != nil {
		defer rdb.Close()
	}
	events := d.openEvents()
	defer events.Close()

	tokens := app.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	policy := lockout.Policy{
		MaxTempAttempts: cfg.LoginMaxTempAttempts,
		MaxPermAttempts: cfg.LoginMaxPermAttempts,
		LockDuration:    cfg.LoginLockDuration,
	}
	runner := d.recurrenceRunner(repository, rdb, events)

	handler := api.NewHandler(api.Services{
		Auth:       app.NewAuthService(repository, tokens, policy, events, logger),
		Users:      app.NewUserService(repository, logger),
		Requests:   app.NewRequestService(repository, events, cfg.Location(), logger),
		Templates:  app.NewTemplateService(repository, cfg.Location(), logger),
		Recurrence: runner,
	}, logger)

	routerOpts := api.RouterOptions{
		Tokens:                  tokens,
		InternalAPIKey:          cfg.InternalAPIKey,
		AllowedOrigins:          cfg.CORSAllowedOrigins,
		LoginRateLimitPerMinute: cfg.LoginRateLimitPerMinute,
		Logger:                  logger,
	}
	if rdb != nil {
		routerOpts.LoginLimiter = app.NewRedisRateLimiter(rdb, cfg.RedisKeyPrefix)
	}
	if cfg.InternalAPIKey == "" {
		logger.Warn("internal api key not configured; internal task endpoints will reject every call")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.NewRouter(handler, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var scheduler *app.Scheduler
	if cfg.RecurrenceEnabled {
		scheduler = app.NewScheduler(runner, cfg.RecurrenceSchedule, logger)
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		logger.Info("recurrence scheduler disabled; use the task endpoint or `approvald recurrence run`")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping")

		if scheduler != nil {
			<-scheduler.Stop().Done()
			logger.Info("scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		return err
	}
	logger.Info("service stopped gracefully")
	return nil
}
