package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"eventmanagement/internal/common/types"
	"eventmanagement/internal/payments/domain"
)

// ticketRecord is the stored form of a ticket row.
// Tickets are copied in and out so a rolled-back transaction cannot leak mutations.
type ticketRecord struct {
	userID    domain.UserID
	eventID   domain.EventID
	hasTicket bool
	version   int
	createdAt time.Time
	updatedAt time.Time
}

func (r ticketRecord) toDomain() *domain.Ticket {
	return domain.ReconstructTicket(r.userID, r.eventID, r.hasTicket, r.version, r.createdAt, r.updatedAt)
}

// DataStore implements domain.DataStore in memory for development and tests.
// Concurrency: Atomic holds a single mutex for the whole callback, so every
// transaction is serialized, including those of unrelated (user, event) pairs.
type DataStore struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	events  map[string]*domain.Event
	tickets map[string]ticketRecord
	outbox  []*domain.OutboxEntry
}

// NewDataStore creates a new in-memory DataStore.
func NewDataStore() *DataStore {
	return &DataStore{
		users:   make(map[string]*domain.User),
		events:  make(map[string]*domain.Event),
		tickets: make(map[string]ticketRecord),
	}
}

// Atomic locks the store, runs the callback against staged state,
// and commits staged changes only if the callback succeeds.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	tx := &transaction{
		parent:    ds,
		users:     make(map[string]*domain.User),
		events:    make(map[string]*domain.Event),
		tickets:   make(map[string]ticketRecord),
		published: make(map[types.MessageID]time.Time),
	}

	if err := fn(tx); err != nil {
		return err
	}

	for k, v := range tx.users {
		ds.users[k] = v
	}
	for k, v := range tx.events {
		ds.events[k] = v
	}
	for k, v := range tx.tickets {
		ds.tickets[k] = v
	}
	ds.outbox = append(ds.outbox, tx.outbox...)
	for _, entry := range ds.outbox {
		if at, ok := tx.published[entry.ID]; ok {
			entry.PublishedAt = &at
		}
	}

	return nil
}

// Users returns a user repository that commits each call on its own.
func (ds *DataStore) Users() domain.UserRepository { return &autoUsers{ds: ds} }

// Events returns an event repository that commits each call on its own.
func (ds *DataStore) Events() domain.EventRepository { return &autoEvents{ds: ds} }

// Tickets returns a ticket repository that commits each call on its own.
func (ds *DataStore) Tickets() domain.TicketRepository { return &autoTickets{ds: ds} }

// Outbox returns an outbox repository that commits each call on its own.
func (ds *DataStore) Outbox() domain.OutboxRepository { return &autoOutbox{ds: ds} }

// OutboxEntries returns a snapshot of every outbox entry, published or not.
func (ds *DataStore) OutboxEntries() []*domain.OutboxEntry {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	out := make([]*domain.OutboxEntry, len(ds.outbox))
	copy(out, ds.outbox)
	return out
}

// transaction stages writes until Atomic commits them.
type transaction struct {
	parent    *DataStore
	users     map[string]*domain.User
	events    map[string]*domain.Event
	tickets   map[string]ticketRecord
	outbox    []*domain.OutboxEntry
	published map[types.MessageID]time.Time
}

func (tx *transaction) Users() domain.UserRepository     { return &txUsers{tx: tx} }
func (tx *transaction) Events() domain.EventRepository   { return &txEvents{tx: tx} }
func (tx *transaction) Tickets() domain.TicketRepository { return &txTickets{tx: tx} }
func (tx *transaction) Outbox() domain.OutboxRepository  { return &txOutbox{tx: tx} }

type txUsers struct {
	tx *transaction
}

func (r *txUsers) Save(ctx context.Context, user *domain.User) error {
	r.tx.users[user.ID().String()] = user
	return nil
}

func (r *txUsers) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	if u, ok := r.tx.users[id.String()]; ok {
		return u, nil
	}
	if u, ok := r.tx.parent.users[id.String()]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *txUsers) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, u := range r.tx.users {
		if u.Username() == username {
			return u, nil
		}
	}
	for _, u := range r.tx.parent.users {
		if u.Username() == username {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

type txEvents struct {
	tx *transaction
}

func (r *txEvents) Save(ctx context.Context, event *domain.Event) error {
	r.tx.events[event.ID().String()] = event
	return nil
}

func (r *txEvents) FindByID(ctx context.Context, id domain.EventID) (*domain.Event, error) {
	if e, ok := r.tx.events[id.String()]; ok {
		return e, nil
	}
	if e, ok := r.tx.parent.events[id.String()]; ok {
		return e, nil
	}
	return nil, domain.ErrEventNotFound
}

func (r *txEvents) FindByName(ctx context.Context, name string) (*domain.Event, error) {
	for _, e := range r.tx.events {
		if e.Name() == name {
			return e, nil
		}
	}
	for _, e := range r.tx.parent.events {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, domain.ErrEventNotFound
}

type txTickets struct {
	tx *transaction
}

func (r *txTickets) lookup(key string) (ticketRecord, bool) {
	if rec, ok := r.tx.tickets[key]; ok {
		return rec, true
	}
	rec, ok := r.tx.parent.tickets[key]
	return rec, ok
}

func (r *txTickets) FindByUserAndEvent(ctx context.Context, userID domain.UserID, eventID domain.EventID) (*domain.Ticket, error) {
	rec, ok := r.lookup(domain.TicketKey(userID, eventID))
	if !ok {
		return nil, nil
	}
	return rec.toDomain(), nil
}

// Save applies the same version check as the Postgres repository.
func (r *txTickets) Save(ctx context.Context, ticket *domain.Ticket) error {
	key := ticket.Key()
	current, exists := r.lookup(key)

	if ticket.IsNew() {
		if exists {
			return domain.ErrOptimisticLock
		}
	} else if !exists || current.version != ticket.Version() {
		return domain.ErrOptimisticLock
	}

	r.tx.tickets[key] = ticketRecord{
		userID:    ticket.UserID(),
		eventID:   ticket.EventID(),
		hasTicket: ticket.HasTicket(),
		version:   ticket.Version() + 1,
		createdAt: ticket.CreatedAt(),
		updatedAt: ticket.UpdatedAt(),
	}
	return nil
}

// LockForPurchase is a no-op: Atomic already serializes every transaction.
func (r *txTickets) LockForPurchase(ctx context.Context, userID domain.UserID, eventID domain.EventID) error {
	return nil
}

type txOutbox struct {
	tx *transaction
}

func (r *txOutbox) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	r.tx.outbox = append(r.tx.outbox, entry)
	return nil
}

func (r *txOutbox) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	all := make([]*domain.OutboxEntry, 0, len(r.tx.parent.outbox)+len(r.tx.outbox))
	all = append(all, r.tx.parent.outbox...)
	all = append(all, r.tx.outbox...)
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].OccurredAt.Before(all[j].OccurredAt)
	})

	var entries []*domain.OutboxEntry
	for _, entry := range all {
		if entry.PublishedAt != nil {
			continue
		}
		if _, ok := r.tx.published[entry.ID]; ok {
			continue
		}
		entries = append(entries, entry)
		if len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func (r *txOutbox) MarkPublished(ctx context.Context, ids []types.MessageID) error {
	now := time.Now()
	for _, id := range ids {
		r.tx.published[id] = now
	}
	return nil
}

// Auto-commit repositories wrap each call in its own transaction.

type autoUsers struct {
	ds *DataStore
}

func (r *autoUsers) Save(ctx context.Context, user *domain.User) error {
	return r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Users().Save(ctx, user)
	})
}

func (r *autoUsers) FindByID(ctx context.Context, id domain.UserID) (user *domain.User, err error) {
	err = r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		user, err = repos.Users().FindByID(ctx, id)
		return err
	})
	return user, err
}

func (r *autoUsers) FindByUsername(ctx context.Context, username string) (user *domain.User, err error) {
	err = r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		user, err = repos.Users().FindByUsername(ctx, username)
		return err
	})
	return user, err
}

type autoEvents struct {
	ds *DataStore
}

func (r *autoEvents) Save(ctx context.Context, event *domain.Event) error {
	return r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Events().Save(ctx, event)
	})
}

func (r *autoEvents) FindByID(ctx context.Context, id domain.EventID) (event *domain.Event, err error) {
	err = r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		event, err = repos.Events().FindByID(ctx, id)
		return err
	})
	return event, err
}

func (r *autoEvents) FindByName(ctx context.Context, name string) (event *domain.Event, err error) {
	err = r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		event, err = repos.Events().FindByName(ctx, name)
		return err
	})
	return event, err
}

type autoTickets struct {
	ds *DataStore
}

func (r *autoTickets) FindByUserAndEvent(ctx context.Context, userID domain.UserID, eventID domain.EventID) (ticket *domain.Ticket, err error) {
	err = r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		ticket, err = repos.Tickets().FindByUserAndEvent(ctx, userID, eventID)
		return err
	})
	return ticket, err
}

func (r *autoTickets) Save(ctx context.Context, ticket *domain.Ticket) error {
	return r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Tickets().Save(ctx, ticket)
	})
}

func (r *autoTickets) LockForPurchase(ctx context.Context, userID domain.UserID, eventID domain.EventID) error {
	return nil
}

type autoOutbox struct {
	ds *DataStore
}

func (r *autoOutbox) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	return r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Outbox().Append(ctx, entry)
	})
}

func (r *autoOutbox) FetchUnpublished(ctx context.Context, limit int) (entries []*domain.OutboxEntry, err error) {
	err = r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		entries, err = repos.Outbox().FetchUnpublished(ctx, limit)
		return err
	})
	return entries, err
}

func (r *autoOutbox) MarkPublished(ctx context.Context, ids []types.MessageID) error {
	return r.ds.Atomic(ctx, func(repos domain.Repositories) error {
		return repos.Outbox().MarkPublished(ctx, ids)
	})
}

var _ domain.DataStore = (*DataStore)(nil)
