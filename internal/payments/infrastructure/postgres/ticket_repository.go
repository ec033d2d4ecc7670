package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/payments/domain"
)

// TicketRepository implements domain.TicketRepository using PostgreSQL.
type TicketRepository struct {
	db Executor
}

// NewTicketRepository creates a new PostgreSQL ticket repository.
func NewTicketRepository(db Executor) *TicketRepository {
	return &TicketRepository{db: db}
}

// LockForPurchase takes a transaction-scoped advisory lock on the pair.
// Outside a transaction the lock is released as soon as the statement ends.
func (r *TicketRepository) LockForPurchase(ctx context.Context, userID domain.UserID, eventID domain.EventID) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, domain.TicketKey(userID, eventID))
	return err
}

// FindByUserAndEvent returns (nil, nil) when the pair has no row.
func (r *TicketRepository) FindByUserAndEvent(ctx context.Context, userID domain.UserID, eventID domain.EventID) (*domain.Ticket, error) {
	user, err := uuidArg(userID)
	if err != nil {
		return nil, err
	}
	event, err := uuidArg(eventID)
	if err != nil {
		return nil, err
	}

	var (
		hasTicket            bool
		version              int
		createdAt, updatedAt time.Time
	)
	err = r.db.QueryRow(ctx, `
		SELECT has_ticket, version, created_at, updated_at
		FROM payments.tickets
		WHERE user_id = $1 AND event_id = $2
		FOR UPDATE`,
		user, event,
	).Scan(&hasTicket, &version, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return domain.ReconstructTicket(userID, eventID, hasTicket, version, createdAt, updatedAt), nil
}

// Save inserts a new ticket or updates a loaded one, checking its version.
// Returns ErrOptimisticLock when another writer got there first.
func (r *TicketRepository) Save(ctx context.Context, ticket *domain.Ticket) error {
	user, err := uuidArg(ticket.UserID())
	if err != nil {
		return err
	}
	event, err := uuidArg(ticket.EventID())
	if err != nil {
		return err
	}

	if ticket.IsNew() {
		tag, err := r.db.Exec(ctx, `
			INSERT INTO payments.tickets (user_id, event_id, has_ticket, version, created_at, updated_at)
			VALUES ($1, $2, $3, 1, $4, $5)
			ON CONFLICT (user_id, event_id) DO NOTHING`,
			user, event, ticket.HasTicket(), ticket.CreatedAt(), ticket.UpdatedAt(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			metrics.RecordOptimisticLockConflict("tickets")
			return domain.ErrOptimisticLock
		}
		return nil
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE payments.tickets
		SET has_ticket = $3, version = version + 1, updated_at = $4
		WHERE user_id = $1 AND event_id = $2 AND version = $5`,
		user, event, ticket.HasTicket(), ticket.UpdatedAt(), ticket.Version(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		metrics.RecordOptimisticLockConflict("tickets")
		return domain.ErrOptimisticLock
	}
	return nil
}

var _ domain.TicketRepository = (*TicketRepository)(nil)
