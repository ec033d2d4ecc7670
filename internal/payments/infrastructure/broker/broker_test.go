package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanagement/internal/common/types"
	"eventmanagement/internal/payments/domain"
)

func outboxEntry() *domain.OutboxEntry {
	return &domain.OutboxEntry{
		ID:            types.MessageID("msg-1"),
		EventType:     domain.EventTypeDeferredPayment,
		Key:           "user-1:event-1",
		CorrelationID: types.CorrelationID("corr-1"),
		Payload:       []byte(`{"amount":100}`),
		OccurredAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	writer := &fakeWriter{}
	publisher := &KafkaPublisher{writer: writer}

	require.NoError(t, publisher.Publish(context.Background(), outboxEntry()))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "user-1:event-1", string(msg.Key))
	assert.JSONEq(t, `{"amount":100}`, string(msg.Value))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, domain.EventTypeDeferredPayment, headers[HeaderEventType])
	assert.Equal(t, "msg-1", headers[HeaderMessageID])
	assert.Equal(t, "corr-1", headers[HeaderCorrelationID])
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	publisher := &KafkaPublisher{writer: &fakeWriter{err: errors.New("leader not available")}}

	err := publisher.Publish(context.Background(), outboxEntry())
	assert.ErrorContains(t, err, "msg-1")
}

type fakeConfirmation struct {
	acked bool
	err   error
}

func (c fakeConfirmation) WaitContext(ctx context.Context) (bool, error) {
	return c.acked, c.err
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	confirm       fakeConfirmation
}

func (c *fakeChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.confirm, nil
}

func (c *fakeChannel) Close() error { return nil }

func TestRabbitMQPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{confirm: fakeConfirmation{acked: true}}
	publisher := &RabbitMQPublisher{channel: ch}

	require.NoError(t, publisher.Publish(context.Background(), outboxEntry()))

	assert.Equal(t, ExchangeName, ch.exchange)
	assert.Equal(t, domain.EventTypeDeferredPayment, ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "msg-1", ch.msg.MessageId)
	assert.Equal(t, "corr-1", ch.msg.CorrelationId)
	assert.Equal(t, "user-1:event-1", ch.msg.Headers["message_key"])
	assert.Equal(t, "application/json", ch.msg.ContentType)
}

func TestRabbitMQPublisher_Unconfirmed(t *testing.T) {
	tests := []struct {
		name    string
		confirm fakeConfirmation
		wantErr error
	}{
		{"nack", fakeConfirmation{acked: false}, ErrNotConfirmed},
		{"confirm wait fails", fakeConfirmation{err: context.DeadlineExceeded}, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			publisher := &RabbitMQPublisher{channel: &fakeChannel{confirm: tt.confirm}}

			err := publisher.Publish(context.Background(), outboxEntry())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorContains(t, err, "msg-1")
		})
	}
}
