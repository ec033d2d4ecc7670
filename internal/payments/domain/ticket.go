package domain

import "time"

// TicketState is the lifecycle position of a (user, event) ticket.
//
//	NONE -> PENDING -> ISSUED
//
// PENDING exists only in memory while a purchase is in flight and is never persisted.
// ISSUED is terminal.
type TicketState string

const (
	TicketStateNone    TicketState = "none"
	TicketStatePending TicketState = "pending"
	TicketStateIssued  TicketState = "issued"
)

// Ticket records whether a user holds a ticket for an event (aggregate root).
// Identity is the (user, event) pair; at most one row exists per pair.
type Ticket struct {
	userID    UserID
	eventID   EventID
	hasTicket bool
	pending   bool
	version   int
	createdAt time.Time
	updatedAt time.Time
}

// NewPendingTicket synthesizes the pre-purchase ticket for a pair with no stored row.
// A version of zero marks it as never persisted.
func NewPendingTicket(userID UserID, eventID EventID, now time.Time) *Ticket {
	return &Ticket{
		userID:    userID,
		eventID:   eventID,
		createdAt: now,
		updatedAt: now,
	}
}

// ReconstructTicket reconstructs a Ticket from persistence.
// This bypasses validation - only use for loading from database.
func ReconstructTicket(userID UserID, eventID EventID, hasTicket bool, version int, createdAt, updatedAt time.Time) *Ticket {
	return &Ticket{
		userID:    userID,
		eventID:   eventID,
		hasTicket: hasTicket,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// MarkPending records that a purchase is in flight. The flag is never persisted.
func (t *Ticket) MarkPending() {
	t.pending = true
}

// Issue marks the ticket as bought. It must only be called after the bank settled the payment.
// Returns ErrTicketAlreadyBought if the ticket was already issued.
func (t *Ticket) Issue(now time.Time) error {
	if t.hasTicket {
		return ErrTicketAlreadyBought
	}
	t.hasTicket = true
	t.pending = false
	t.updatedAt = now
	return nil
}

// State derives the lifecycle state.
// A persisted row with hasTicket=false is equivalent to an absent row.
func (t *Ticket) State() TicketState {
	switch {
	case t == nil:
		return TicketStateNone
	case t.hasTicket:
		return TicketStateIssued
	case t.pending:
		return TicketStatePending
	default:
		return TicketStateNone
	}
}

// IsNew reports whether the ticket has never been persisted.
func (t *Ticket) IsNew() bool {
	return t.version == 0
}

// Key returns the composite identity used for locking and message keys.
func (t *Ticket) Key() string {
	return TicketKey(t.userID, t.eventID)
}

// TicketKey formats the composite (user, event) identity.
func TicketKey(userID UserID, eventID EventID) string {
	return userID.String() + ":" + eventID.String()
}

// Getters

func (t *Ticket) UserID() UserID       { return t.userID }
func (t *Ticket) EventID() EventID     { return t.eventID }
func (t *Ticket) HasTicket() bool      { return t.hasTicket }
func (t *Ticket) Version() int         { return t.version }
func (t *Ticket) CreatedAt() time.Time { return t.createdAt }
func (t *Ticket) UpdatedAt() time.Time { return t.updatedAt }
