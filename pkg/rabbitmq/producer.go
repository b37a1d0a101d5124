/**
 * @description
 * This package provides a small producer for publishing domain events to a RabbitMQ
 * topic exchange, plus a no-op fallback used when the broker is not configured or
 * unreachable at startup.
 *
 * @dependencies
 * - github.com/rabbitmq/amqp091-go: The RabbitMQ client library.
 * - go.uber.org/zap: structured logging.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/payflow/approval-service/internal/domain"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	RoutingKeyPaymentRequestCreated = "payment_request.created"
	RoutingKeyAccountLocked         = "account.locked"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	PublishPaymentRequestCreated(ctx context.Context, event domain.PaymentRequestEvent) error
	PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error
	Close()
}

// EventProducer holds the RabbitMQ connection and channel for publishing messages.
type EventProducer struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *zap.Logger
}

// EventProducerFallback is a no-op publisher used when RabbitMQ is unavailable.
type EventProducerFallback struct {
	logger *zap.Logger
}

// NewFallback returns a publisher that only logs skipped events.
func NewFallback(logger *zap.Logger) *EventProducerFallback {
	return &EventProducerFallback{logger: logger.Named("rabbitmq_producer")}
}

func (p *EventProducerFallback) Publish(ctx context.Context, routingKey string, body interface{}) error {
	p.logger.Debug("publish skipped", zap.String("mode", "fallback"), zap.String("routing_key", routingKey))
	return nil
}

func (p *EventProducerFallback) PublishPaymentRequestCreated(ctx context.Context, event domain.PaymentRequestEvent) error {
	return p.Publish(ctx, RoutingKeyPaymentRequestCreated, event)
}

func (p *EventProducerFallback) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	return p.Publish(ctx, RoutingKeyAccountLocked, event)
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	// Tolerate stray characters before the scheme.
	idx := strings.Index(strings.ToLower(clean), "amqp")
	if idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials the broker and declares the durable topic exchange.
func NewEventProducer(amqpURL, exchange string, logger *zap.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	p := &EventProducer{conn: conn, channel: ch, exchange: exchange, logger: logger.Named("rabbitmq_producer")}
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *EventProducer) declare() error {
	return p.channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	)
}

// reopen replaces a closed channel. Callers hold p.mu.
func (p *EventProducer) reopen() error {
	if p.conn == nil || p.conn.IsClosed() {
		return amqp091.ErrClosed
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	p.channel = ch
	return p.declare()
}

// Publish sends body as JSON to the configured exchange.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		p.logger.Error("json marshal failed", zap.String("routing_key", routingKey), zap.Error(err))
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         jsonBody,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	p.logger.Warn("publish failed; reopening channel", zap.String("exchange", p.exchange), zap.String("routing_key", routingKey), zap.Error(err))
	// One-shot retry on a fresh channel.
	if reopenErr := p.reopen(); reopenErr != nil {
		return errors.Join(err, reopenErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

// PublishPaymentRequestCreated announces a new payment request.
func (p *EventProducer) PublishPaymentRequestCreated(ctx context.Context, event domain.PaymentRequestEvent) error {
	return p.Publish(ctx, RoutingKeyPaymentRequestCreated, event)
}

// PublishAccountLocked announces a temporary or permanent lockout.
func (p *EventProducer) PublishAccountLocked(ctx context.Context, event domain.AccountLockedEvent) error {
	return p.Publish(ctx, RoutingKeyAccountLocked, event)
}

// Close gracefully closes the channel and connection to RabbitMQ.
func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
