package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/payments/domain"
)

// ExchangeName is the topic exchange deferred payments are published to.
// The routing key is the entry's event type.
const ExchangeName = "payments"

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("rabbitmq did not confirm the message")

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type amqpChannel interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

// confirmChannel is an amqp channel in publisher-confirm mode.
type confirmChannel struct {
	*amqp.Channel
}

func (c confirmChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	return c.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
}

// RabbitMQPublisher implements domain.MessagePublisher on a RabbitMQ topic exchange.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel amqpChannel
}

// DialRabbitMQ connects to url, retrying until attempts run out or ctx ends,
// and declares the exchange.
func DialRabbitMQ(ctx context.Context, url string, attempts int) (*RabbitMQPublisher, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logging.Warn("Failed to connect to RabbitMQ, retrying", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enabling publisher confirms: %w", err)
	}

	logging.Info("Connected to RabbitMQ", "exchange", ExchangeName)
	return &RabbitMQPublisher{conn: conn, channel: confirmChannel{ch}}, nil
}

// Publish sends entry to the exchange as a persistent message and waits for
// the broker to confirm it.
func (p *RabbitMQPublisher) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	confirm, err := p.channel.publish(ctx, ExchangeName, entry.EventType, amqpPublishing(entry))
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", entry.ID, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm %s: %w", entry.ID, err)
	}
	if !acked {
		return fmt.Errorf("rabbitmq publish %s: %w", entry.ID, ErrNotConfirmed)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func amqpPublishing(entry *domain.OutboxEntry) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     entry.ID.String(),
		CorrelationId: entry.CorrelationID.String(),
		Type:          entry.EventType,
		Body:          entry.Payload,
		DeliveryMode:  amqp.Persistent,
		Timestamp:     entry.OccurredAt,
		Headers:       amqp.Table{"message_key": entry.Key},
	}
}

var _ domain.MessagePublisher = (*RabbitMQPublisher)(nil)
