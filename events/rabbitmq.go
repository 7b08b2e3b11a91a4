package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitConfig configures the RabbitMQ publisher.
type RabbitConfig struct {
	URL            string
	Exchange       string
	ExchangeType   string
	RetryAttempts  int
	RetryInterval  time.Duration
	PublishRetries int
	PublishDelay   time.Duration
	Heartbeat      time.Duration
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes events to a topic exchange, using the event type
// as routing key.
type RabbitPublisher struct {
	cfg    RabbitConfig
	conn   *amqp.Connection
	ch     channel
	logger *slog.Logger
	sleep  func(time.Duration)
}

var errNotConnected = errors.New("events: not connected to rabbitmq")

// DialRabbit connects with retries and declares the exchange.
func DialRabbit(cfg RabbitConfig, logger *slog.Logger) (*RabbitPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("events: empty rabbitmq url")
	}
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("events: empty exchange name")
	}
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		conn *amqp.Connection
		err  error
	)
	for attempt := 1; attempt <= cfg.RetryAttempts; attempt++ {
		conn, err = amqp.DialConfig(cfg.URL, amqp.Config{Heartbeat: cfg.Heartbeat, Locale: "en_US"})
		if err == nil {
			break
		}
		logger.Warn("rabbitmq dial failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.RetryAttempts),
			slog.Any("error", err),
		)
		if attempt < cfg.RetryAttempts {
			time.Sleep(cfg.RetryInterval)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("events: dial rabbitmq after %d attempts: %w", cfg.RetryAttempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange: %w", err)
	}

	logger.Info("rabbitmq publisher ready", slog.String("exchange", cfg.Exchange))
	return &RabbitPublisher{cfg: cfg, conn: conn, ch: ch, logger: logger, sleep: time.Sleep}, nil
}

// Publish sends the event as persistent JSON, retrying with exponential
// backoff.
func (p *RabbitPublisher) Publish(ctx context.Context, evt Event) error {
	if p == nil || p.ch == nil {
		return errNotConnected
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}

	retries := p.cfg.PublishRetries
	if retries < 0 {
		retries = 0
	}
	delay := p.cfg.PublishDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    evt.ID,
		Timestamp:    evt.OccurredAt,
		Type:         string(evt.Type),
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		lastErr = p.ch.PublishWithContext(ctx, p.cfg.Exchange, string(evt.Type), false, false, msg)
		if lastErr == nil {
			p.logger.Debug("event published",
				slog.String("event_id", evt.ID),
				slog.String("type", string(evt.Type)),
				slog.Int("attempt", attempt+1),
			)
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < retries {
			backoff := delay * time.Duration(1<<uint(attempt))
			p.logger.Warn("event publish failed, retrying",
				slog.String("event_id", evt.ID),
				slog.Int("attempt", attempt+1),
				slog.Duration("retry_after", backoff),
				slog.Any("error", lastErr),
			)
			p.sleep(backoff)
		}
	}
	return fmt.Errorf("events: publish %s: %w", evt.Type, lastErr)
}

func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			p.logger.Warn("close rabbitmq channel", slog.Any("error", err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
