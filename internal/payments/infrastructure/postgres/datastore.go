package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/payments/domain"
)

// DataStore implements domain.DataStore on PostgreSQL.
type DataStore struct {
	pool       *pgxpool.Pool
	userRepo   *UserRepository
	eventRepo  *EventRepository
	ticketRepo *TicketRepository
	outboxRepo *OutboxRepository
}

// NewDataStore creates a new DataStore with the given connection pool.
func NewDataStore(pool *pgxpool.Pool) *DataStore {
	return &DataStore{
		pool:       pool,
		userRepo:   NewUserRepository(pool),
		eventRepo:  NewEventRepository(pool),
		ticketRepo: NewTicketRepository(pool),
		outboxRepo: NewOutboxRepository(pool),
	}
}

// Users returns the user repository.
func (ds *DataStore) Users() domain.UserRepository { return ds.userRepo }

// Events returns the event repository.
func (ds *DataStore) Events() domain.EventRepository { return ds.eventRepo }

// Tickets returns the ticket repository.
func (ds *DataStore) Tickets() domain.TicketRepository { return ds.ticketRepo }

// Outbox returns the outbox repository.
func (ds *DataStore) Outbox() domain.OutboxRepository { return ds.outboxRepo }

// withTx creates a DataStore whose repositories share tx.
func (ds *DataStore) withTx(tx pgx.Tx) *DataStore {
	return &DataStore{
		pool:       ds.pool,
		userRepo:   NewUserRepository(tx),
		eventRepo:  NewEventRepository(tx),
		ticketRepo: NewTicketRepository(tx),
		outboxRepo: NewOutboxRepository(tx),
	}
}

// Atomic executes the callback within a database transaction.
// If the callback returns nil, the transaction is committed.
// If the callback returns an error or panics, the transaction is rolled back.
// The callback's error is returned unchanged so callers can match it with errors.Is.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordTransactionDuration("atomic", time.Since(start))
	}()

	tx, err := ds.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				err = fmt.Errorf("%w (rollback error: %v)", err, rbErr)
			}
			return
		}
		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	err = fn(ds.withTx(tx))
	return
}

var _ domain.DataStore = (*DataStore)(nil)
