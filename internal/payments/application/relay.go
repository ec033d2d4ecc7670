package application

import (
	"context"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/common/types"
	"eventmanagement/internal/payments/domain"
)

// OutboxRelay moves unpublished outbox entries to a broker.
// Entries are marked published only after the broker accepted them, so delivery
// is at-least-once.
type OutboxRelay struct {
	store     domain.AtomicExecutor
	publisher domain.MessagePublisher
	batchSize int
}

// NewOutboxRelay creates a relay publishing up to batchSize entries per pass.
func NewOutboxRelay(store domain.AtomicExecutor, publisher domain.MessagePublisher, batchSize int) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{store: store, publisher: publisher, batchSize: batchSize}
}

// PublishPending runs one relay pass and returns how many entries were published.
// Entries the broker refused stay unpublished for the next pass.
func (r *OutboxRelay) PublishPending(ctx context.Context) (int, error) {
	var pending, published, failed int

	err := r.store.Atomic(ctx, func(repos domain.Repositories) error {
		entries, err := repos.Outbox().FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		pending = len(entries)

		ids := make([]types.MessageID, 0, len(entries))
		for _, entry := range entries {
			if err := r.publisher.Publish(ctx, entry); err != nil {
				failed++
				logging.WarnContext(ctx, "Failed to relay outbox entry",
					"message_id", entry.ID.String(),
					"event_type", entry.EventType,
					"error", err,
				)
				continue
			}
			ids = append(ids, entry.ID)
		}

		if len(ids) == 0 {
			return nil
		}
		if err := repos.Outbox().MarkPublished(ctx, ids); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	metrics.RecordOutboxRelay(pending, published, failed)
	if published > 0 || failed > 0 {
		logging.InfoContext(ctx, "Outbox relay pass finished",
			"published", published,
			"failed", failed,
		)
	}
	return published, nil
}
