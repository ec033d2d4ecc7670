// Package broker delivers outbox entries to a message broker.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"eventmanagement/internal/payments/domain"
)

// Header names carried on every message.
const (
	HeaderEventType     = "event_type"
	HeaderMessageID     = "message_id"
	HeaderCorrelationID = "correlation_id"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements domain.MessagePublisher on a Kafka topic.
// Messages are keyed by (user, event) so deferred payments for the same pair stay ordered.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,
		},
	}
}

// Publish writes entry synchronously and returns once the brokers acknowledged it.
func (p *KafkaPublisher) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	if err := p.writer.WriteMessages(ctx, kafkaMessage(entry)); err != nil {
		return fmt.Errorf("kafka publish %s: %w", entry.ID, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func kafkaMessage(entry *domain.OutboxEntry) kafka.Message {
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(entry.EventType)},
		{Key: HeaderMessageID, Value: []byte(entry.ID.String())},
	}
	if !entry.CorrelationID.IsEmpty() {
		headers = append(headers, kafka.Header{Key: HeaderCorrelationID, Value: []byte(entry.CorrelationID.String())})
	}

	return kafka.Message{
		Key:     []byte(entry.Key),
		Value:   entry.Payload,
		Headers: headers,
		Time:    entry.OccurredAt,
	}
}

var _ domain.MessagePublisher = (*KafkaPublisher)(nil)
