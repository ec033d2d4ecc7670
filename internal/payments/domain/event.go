package domain

import (
	"fmt"
	"strings"
	"time"

	"eventmanagement/internal/common/types"
)

// Event is something tickets are sold for.
// Invariants:
//   - Name is non-empty and unique across events
//   - Ticket price is not negative
//   - Capacity is positive
type Event struct {
	id          EventID
	name        string
	ticketPrice types.Amount
	date        time.Time
	organizerID UserID
	capacity    int
	createdAt   time.Time
}

// NewEvent validates and creates an event organised by organizerID.
func NewEvent(name string, ticketPrice types.Amount, date time.Time, organizerID UserID, capacity int, now time.Time) (*Event, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if ticketPrice.IsNegative() {
		return nil, fmt.Errorf("%w: ticket price cannot be negative", ErrInvalidEvent)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidEvent)
	}
	if organizerID.IsEmpty() {
		return nil, fmt.Errorf("%w: organizer is required", ErrInvalidEvent)
	}
	return &Event{
		id:          NewEventID(),
		name:        name,
		ticketPrice: ticketPrice,
		date:        date,
		organizerID: organizerID,
		capacity:    capacity,
		createdAt:   now,
	}, nil
}

// ReconstructEvent reconstructs an Event from persistence.
// This bypasses validation - only use for loading from database.
func ReconstructEvent(
	id EventID,
	name string,
	ticketPrice types.Amount,
	date time.Time,
	organizerID UserID,
	capacity int,
	createdAt time.Time,
) *Event {
	return &Event{
		id:          id,
		name:        name,
		ticketPrice: ticketPrice,
		date:        date,
		organizerID: organizerID,
		capacity:    capacity,
		createdAt:   createdAt,
	}
}

func (e *Event) ID() EventID               { return e.id }
func (e *Event) Name() string              { return e.name }
func (e *Event) TicketPrice() types.Amount { return e.ticketPrice }
func (e *Event) Date() time.Time           { return e.date }
func (e *Event) OrganizerID() UserID       { return e.organizerID }
func (e *Event) Capacity() int             { return e.capacity }
func (e *Event) CreatedAt() time.Time      { return e.createdAt }
