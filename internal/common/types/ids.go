package types

import "github.com/google/uuid"

// CorrelationID tracks a request across service boundaries.
type CorrelationID string

// MessageID uniquely identifies an outbound message held in the outbox.
type MessageID string

// NewMessageID generates a new unique MessageID.
func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}

// NewCorrelationID generates a new unique CorrelationID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

// String returns the string representation of CorrelationID.
func (c CorrelationID) String() string {
	return string(c)
}

// String returns the string representation of MessageID.
func (m MessageID) String() string {
	return string(m)
}

// IsEmpty checks if the CorrelationID is empty.
func (c CorrelationID) IsEmpty() bool {
	return c == ""
}
