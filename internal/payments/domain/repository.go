package domain

import (
	"context"
	"time"

	"eventmanagement/internal/common/types"
)

// UserRepository defines the interface for user persistence.
type UserRepository interface {
	// Save persists a user.
	Save(ctx context.Context, user *User) error
	// FindByID retrieves a user by ID.
	// Returns ErrUserNotFound when no record exists.
	FindByID(ctx context.Context, id UserID) (*User, error)
	// FindByUsername retrieves a user by username.
	// Returns ErrUserNotFound when no record exists.
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// EventRepository defines the interface for event persistence.
type EventRepository interface {
	// Save persists an event.
	Save(ctx context.Context, event *Event) error
	// FindByID retrieves an event by ID.
	// Returns ErrEventNotFound when no record exists.
	FindByID(ctx context.Context, id EventID) (*Event, error)
	// FindByName retrieves an event by its unique name.
	// Returns ErrEventNotFound when no record exists.
	FindByName(ctx context.Context, name string) (*Event, error)
}

// TicketRepository is the ticket ledger. It stores issuance per (user, event)
// and holds no business rules; the purchase guard lives in the application layer.
type TicketRepository interface {
	// FindByUserAndEvent retrieves the ticket for a pair.
	// Returns (nil, nil) when no row exists; absence is not treated as an error.
	FindByUserAndEvent(ctx context.Context, userID UserID, eventID EventID) (*Ticket, error)
	// Save persists a ticket.
	// Implementations return ErrOptimisticLock if the row changed since it was read.
	Save(ctx context.Context, ticket *Ticket) error
	// LockForPurchase serializes purchases of the same pair until the surrounding
	// transaction ends. Purchases of different pairs do not contend.
	LockForPurchase(ctx context.Context, userID UserID, eventID EventID) error
}

// OutboxEntry represents a message waiting to be published.
type OutboxEntry struct {
	ID            types.MessageID
	EventType     string
	Key           string
	CorrelationID types.CorrelationID
	Payload       []byte
	OccurredAt    time.Time
	PublishedAt   *time.Time
}

// OutboxRepository defines the interface for the outbox pattern.
// Messages are written to the outbox transactionally, then relayed to the broker
// by a separate process.
type OutboxRepository interface {
	// Append adds a message to the outbox.
	Append(ctx context.Context, entry *OutboxEntry) error
	// FetchUnpublished retrieves unpublished messages, oldest first.
	FetchUnpublished(ctx context.Context, limit int) ([]*OutboxEntry, error)
	// MarkPublished marks messages as published.
	MarkPublished(ctx context.Context, ids []types.MessageID) error
}

// MessagePublisher delivers outbox messages to a broker.
type MessagePublisher interface {
	Publish(ctx context.Context, entry *OutboxEntry) error
}

// Repositories provides access to all repositories within a transaction.
// This is used with the Atomic pattern to ensure all operations share the same transaction.
type Repositories interface {
	Users() UserRepository
	Events() EventRepository
	Tickets() TicketRepository
	Outbox() OutboxRepository
}

// AtomicCallback is the function signature for atomic operations.
// Any error returned will cause the transaction to be rolled back.
type AtomicCallback func(repos Repositories) error

// AtomicExecutor runs a set of repository operations in one transaction.
// The service decides what happens inside the callback; commits and rollbacks
// are left to the implementation.
//
// Example usage:
//
//	err := executor.Atomic(ctx, func(repos Repositories) error {
//	    ticket, err := repos.Tickets().FindByUserAndEvent(ctx, userID, eventID)
//	    if err != nil {
//	        return err
//	    }
//	    if err := ticket.Issue(now); err != nil {
//	        return err
//	    }
//	    return repos.Tickets().Save(ctx, ticket)
//	})
type AtomicExecutor interface {
	// Atomic executes the callback within a database transaction.
	// If the callback returns nil, the transaction is committed.
	// If the callback returns an error, the transaction is rolled back.
	Atomic(ctx context.Context, fn AtomicCallback) error
}

// DataStore is a transactional store exposing every repository.
type DataStore interface {
	AtomicExecutor
	Repositories
}
