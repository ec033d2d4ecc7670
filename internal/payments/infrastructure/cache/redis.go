// Package cache keeps read-mostly event data in Redis in front of the DataStore.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/common/types"
	"eventmanagement/internal/payments/domain"
)

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return client, nil
}

// EventCache stores events by ID with a fixed TTL.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventCache creates an EventCache.
func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	return &EventCache{client: client, ttl: ttl}
}

type cachedEvent struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	TicketPrice types.Amount `json:"ticket_price"`
	Date        time.Time    `json:"date"`
	OrganizerID string       `json:"organizer_id"`
	Capacity    int          `json:"capacity"`
	CreatedAt   time.Time    `json:"created_at"`
}

func eventKey(id domain.EventID) string {
	return fmt.Sprintf("event:%s", id.String())
}

// Get returns the cached event, or (nil, nil) on a miss.
func (c *EventCache) Get(ctx context.Context, id domain.EventID) (*domain.Event, error) {
	data, err := c.client.Get(ctx, eventKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event from Redis")
	}

	var cached cachedEvent
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cached event")
	}

	eventID, err := domain.ParseEventID(cached.ID)
	if err != nil {
		return nil, errors.Wrap(err, "cached event id")
	}
	organizerID, err := domain.ParseUserID(cached.OrganizerID)
	if err != nil {
		return nil, errors.Wrap(err, "cached organizer id")
	}
	return domain.ReconstructEvent(eventID, cached.Name, cached.TicketPrice, cached.Date, organizerID, cached.Capacity, cached.CreatedAt), nil
}

// Set stores event until the TTL passes.
func (c *EventCache) Set(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(cachedEvent{
		ID:          event.ID().String(),
		Name:        event.Name(),
		TicketPrice: event.TicketPrice(),
		Date:        event.Date(),
		OrganizerID: event.OrganizerID().String(),
		Capacity:    event.Capacity(),
		CreatedAt:   event.CreatedAt(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal event for caching")
	}
	return errors.Wrap(c.client.Set(ctx, eventKey(event.ID()), data, c.ttl).Err(), "failed to set event in Redis")
}

// Invalidate drops the cached copy of id.
func (c *EventCache) Invalidate(ctx context.Context, id domain.EventID) error {
	return errors.Wrap(c.client.Del(ctx, eventKey(id)).Err(), "failed to delete event from Redis")
}

// DataStore decorates a domain.DataStore so event reads outside a transaction
// go through the cache. Inside Atomic events are always read from the store,
// since the price charged must be the current one.
type DataStore struct {
	domain.DataStore
	cache *EventCache
}

// NewDataStore wraps store with cache.
func NewDataStore(store domain.DataStore, cache *EventCache) *DataStore {
	return &DataStore{DataStore: store, cache: cache}
}

// Events returns the cached event repository.
func (ds *DataStore) Events() domain.EventRepository {
	return &eventRepository{next: ds.DataStore.Events(), cache: ds.cache, readThrough: true}
}

// Atomic runs fn with repositories that read events uncached but still
// invalidate the cache when an event is saved.
func (ds *DataStore) Atomic(ctx context.Context, fn domain.AtomicCallback) error {
	return ds.DataStore.Atomic(ctx, func(repos domain.Repositories) error {
		return fn(&repositories{Repositories: repos, cache: ds.cache})
	})
}

type repositories struct {
	domain.Repositories
	cache *EventCache
}

func (r *repositories) Events() domain.EventRepository {
	return &eventRepository{next: r.Repositories.Events(), cache: r.cache}
}

// eventRepository invalidates on Save and, when readThrough is set, serves
// FindByID from the cache. Redis failures degrade to the underlying repository.
type eventRepository struct {
	next        domain.EventRepository
	cache       *EventCache
	readThrough bool
}

func (r *eventRepository) Save(ctx context.Context, event *domain.Event) error {
	if err := r.next.Save(ctx, event); err != nil {
		return err
	}
	if err := r.cache.Invalidate(ctx, event.ID()); err != nil {
		logging.WarnContext(ctx, "Event cache invalidation failed", "event_id", event.ID().String(), "error", err)
	}
	return nil
}

func (r *eventRepository) FindByID(ctx context.Context, id domain.EventID) (*domain.Event, error) {
	if !r.readThrough {
		return r.next.FindByID(ctx, id)
	}

	cached, err := r.cache.Get(ctx, id)
	if err != nil {
		logging.WarnContext(ctx, "Event cache read failed", "event_id", id.String(), "error", err)
	}
	if cached != nil {
		metrics.RecordEventCacheLookup(true)
		return cached, nil
	}
	metrics.RecordEventCacheLookup(false)

	event, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, event); err != nil {
		logging.WarnContext(ctx, "Event cache write failed", "event_id", id.String(), "error", err)
	}
	return event, nil
}

func (r *eventRepository) FindByName(ctx context.Context, name string) (*domain.Event, error) {
	return r.next.FindByName(ctx, name)
}

var _ domain.DataStore = (*DataStore)(nil)
