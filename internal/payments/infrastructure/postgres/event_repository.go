package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"eventmanagement/internal/payments/domain"
)

// EventRepository implements domain.EventRepository using PostgreSQL.
type EventRepository struct {
	db Executor
}

// NewEventRepository creates a new PostgreSQL event repository.
func NewEventRepository(db Executor) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, name, ticket_price, event_date, organizer_id, capacity, created_at`

// Save inserts the event or updates it in place.
func (r *EventRepository) Save(ctx context.Context, event *domain.Event) error {
	id, err := uuidArg(event.ID())
	if err != nil {
		return err
	}
	organizerID, err := uuidArg(event.OrganizerID())
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO payments.events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			ticket_price = EXCLUDED.ticket_price,
			event_date = EXCLUDED.event_date,
			capacity = EXCLUDED.capacity`,
		id, event.Name(), amountToNumeric(event.TicketPrice()), event.Date(), organizerID, event.Capacity(), event.CreatedAt(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: name %q is taken", domain.ErrInvalidEvent, event.Name())
	}
	return err
}

// FindByID retrieves an event by ID.
func (r *EventRepository) FindByID(ctx context.Context, id domain.EventID) (*domain.Event, error) {
	arg, err := uuidArg(id)
	if err != nil {
		return nil, domain.ErrEventNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM payments.events WHERE id = $1`, arg)
	return scanEvent(row)
}

// FindByName retrieves an event by its unique name.
func (r *EventRepository) FindByName(ctx context.Context, name string) (*domain.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM payments.events WHERE name = $1`, name)
	return scanEvent(row)
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var (
		id, organizer   uuid.UUID
		name            string
		price           pgtype.Numeric
		date, createdAt time.Time
		capacity        int
	)
	err := row.Scan(&id, &name, &price, &date, &organizer, &capacity, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}

	eventID, err := domain.ParseEventID(id.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptData, err)
	}
	organizerID, err := domain.ParseUserID(organizer.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptData, err)
	}
	ticketPrice, err := numericToAmount(price)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ticket_price: %v", domain.ErrCorruptData, err)
	}

	return domain.ReconstructEvent(eventID, name, ticketPrice, date, organizerID, capacity, createdAt), nil
}

var _ domain.EventRepository = (*EventRepository)(nil)
