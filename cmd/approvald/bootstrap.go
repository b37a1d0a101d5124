package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/payflow/approval-service/internal/app"
	"github.com/payflow/approval-service/internal/config"
	"github.com/payflow/approval-service/internal/logging"
	"github.com/payflow/approval-service/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deps bundles what every command needs after configuration is loaded.
type deps struct {
	cfg    config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
}

func (d *deps) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
	_ = d.logger.Sync()
}

// bootstrap loads configuration, builds the logger and connects to PostgreSQL.
func bootstrap(ctx context.Context) (*deps, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Info("database connection established", zap.Int32("max_conns", cfg.DBMaxConns))

	return &deps{cfg: cfg, logger: logger, pool: pool}, nil
}

func openPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns > 0 && cfg.DBMinConns <= poolConfig.MaxConns {
		poolConfig.MinConns = cfg.DBMinConns
	}
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching so poolers in transaction mode keep working.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// openRedis returns nil when Redis is not configured or unreachable; every Redis-backed
// feature degrades to its in-process behaviour.
func (d *deps) openRedis(ctx context.Context) *redis.Client {
	if d.cfg.RedisURL == "" {
		d.logger.Info("redis url not configured; distributed run lock and login rate limiting disabled")
		return nil
	}
	options, err := redis.ParseURL(d.cfg.RedisURL)
	if err != nil {
		d.logger.Warn("redis url parse failed; continuing without redis", zap.Error(err))
		return nil
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		d.logger.Warn("redis ping failed; continuing without redis", zap.Error(err))
		_ = client.Close()
		return nil
	}
	d.logger.Info("redis connected")
	return client
}

// openEvents returns the broker publisher, or the logging fallback when the broker is unavailable.
func (d *deps) openEvents() rabbitmq.Publisher {
	if d.cfg.RabbitMQURL == "" {
		d.logger.Info("rabbitmq url not configured; events are logged only")
		return rabbitmq.NewFallback(d.logger)
	}
	producer, err := rabbitmq.NewEventProducer(d.cfg.RabbitMQURL, d.cfg.EventsExchange, d.logger)
	if err != nil {
		d.logger.Warn("rabbitmq producer unavailable; using fallback", zap.Error(err))
		return rabbitmq.NewFallback(d.logger)
	}
	d.logger.Info("rabbitmq producer connected", zap.String("exchange", d.cfg.EventsExchange))
	return producer
}

// recurrenceRunner wires the runner with the optional Redis run lock.
func (d *deps) recurrenceRunner(repo app.TemplateStore, rdb *redis.Client, events app.RequestEventPublisher) *app.RecurrenceRunner {
	opts := []app.RecurrenceOption{app.WithRequestEvents(events)}
	if rdb != nil {
		opts = append(opts, app.WithRunLocker(app.NewRedisRunLock(rdb, d.cfg.RedisKeyPrefix), d.cfg.RecurrenceLockTTL))
	}
	return app.NewRecurrenceRunner(repo, d.cfg.Location(), d.logger, opts...)
}
