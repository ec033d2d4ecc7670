package postgres

import (
	"context"
	"time"

	"eventmanagement/internal/common/types"
	"eventmanagement/internal/payments/domain"
)

// OutboxRepository implements domain.OutboxRepository using PostgreSQL.
// Entries are relayed to the broker by OutboxRelay.
type OutboxRepository struct {
	db Executor
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(db Executor) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Append adds an entry to the outbox as part of the current transaction.
func (r *OutboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments.outbox (message_id, event_type, message_key, correlation_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID.String(), entry.EventType, entry.Key, nullableString(entry.CorrelationID.String()), entry.Payload, entry.OccurredAt,
	)
	return err
}

// FetchUnpublished retrieves unpublished entries, oldest first.
// Rows are locked with FOR UPDATE SKIP LOCKED so concurrent relays never share an entry.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT message_id, event_type, message_key, COALESCE(correlation_id, ''), payload, occurred_at, published_at
		FROM payments.outbox
		WHERE published_at IS NULL
		ORDER BY occurred_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.OutboxEntry
	for rows.Next() {
		var (
			id, correlationID string
			entry             domain.OutboxEntry
		)
		if err := rows.Scan(&id, &entry.EventType, &entry.Key, &correlationID, &entry.Payload, &entry.OccurredAt, &entry.PublishedAt); err != nil {
			return nil, err
		}
		entry.ID = types.MessageID(id)
		entry.CorrelationID = types.CorrelationID(correlationID)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// MarkPublished marks entries as published.
// It is a no-op when the input list is empty.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []types.MessageID) error {
	if len(ids) == 0 {
		return nil
	}

	stringIDs := make([]string, len(ids))
	for i, id := range ids {
		stringIDs[i] = id.String()
	}

	_, err := r.db.Exec(ctx, `
		UPDATE payments.outbox SET published_at = $1 WHERE message_id = ANY($2)`,
		time.Now().UTC(), stringIDs,
	)
	return err
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
