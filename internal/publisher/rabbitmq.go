package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"job_applier/internal/domain"
)

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

// RabbitMQ emits a StatusEvent for every lifecycle transition a run commits.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	logger  *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("status publisher ready",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{conn: conn, channel: ch, cfg: cfg, logger: logger}, nil
}

// declareTopology sets up the durable exchange, queue and binding so events
// survive broker restarts and are queued even before a consumer attaches.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// StatusEvent is the message emitted on every lifecycle transition.
type StatusEvent struct {
	Fingerprint      string        `json:"fingerprint"`
	JobTitle         string        `json:"job_title"`
	Company          string        `json:"company"`
	From             domain.Status `json:"from"`
	To               domain.Status `json:"to"`
	ResumeVariantRef string        `json:"resume_variant_ref,omitempty"`
	Timestamp        time.Time     `json:"timestamp"`
}

func (r *RabbitMQ) PublishStatus(ctx context.Context, rec *domain.ApplicationRecord, from domain.Status) error {
	evt := StatusEvent{
		Fingerprint: rec.Fingerprint,
		JobTitle:    rec.Title,
		Company:     rec.Company,
		From:        from,
		To:          rec.Status,
		Timestamp:   time.Now().UTC(),
	}
	if rec.ResumeVariantRef != nil {
		evt.ResumeVariantRef = *rec.ResumeVariantRef
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	pub := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    time.Now(),
	}
	if err := r.channel.PublishWithContext(ctx, r.cfg.Exchange, r.cfg.RoutingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}

	r.logger.Debug("published status change",
		"fingerprint", rec.Fingerprint,
		"from", from,
		"to", rec.Status,
	)
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
