package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the RabbitMQ queue notifications are published to.
const DefaultQueue = "roombooking.notifications"

type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes notifications as persistent JSON messages so that mail
// or chat relays can deliver them out of band.
type AMQPSink struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel amqpPublisher
	queue   string
	logger  *slog.Logger
	timeout time.Duration
}

// DialAMQP connects to the broker and declares the durable queue.
func DialAMQP(url, queue string, logger *slog.Logger) (*AMQPSink, error) {
	if queue == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare queue %s: %w", queue, err)
	}

	sink := newAMQPSink(ch, queue, logger)
	sink.conn = conn
	return sink, nil
}

func newAMQPSink(publisher amqpPublisher, queue string, logger *slog.Logger) *AMQPSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPSink{channel: publisher, queue: queue, logger: logger, timeout: 5 * time.Second}
}

// Notify implements Sink.
func (s *AMQPSink) Notify(ctx context.Context, n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		s.logger.ErrorContext(ctx, "rabbitmq: encode notification", "error", err)
		return
	}

	// Publishing must not be cut short by the request that triggered it.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.channel.PublishWithContext(pubCtx, "", s.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.At.UTC(),
		Body:         body,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "rabbitmq: publish notification", "queue", s.queue, "error", err)
	}
}

// Close shuts the broker connection.
func (s *AMQPSink) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
