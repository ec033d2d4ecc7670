package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrEmptyID is returned when parsing an empty identifier.
	ErrEmptyID = errors.New("id cannot be empty")

	// ErrInvalidID is returned when an identifier is not a UUID.
	ErrInvalidID = errors.New("invalid uuid format")
)

// UserID uniquely identifies a user.
// It is a struct wrapper to prevent accidental type confusion at compile time.
type UserID struct {
	value string
}

// ParseUserID creates a UserID from a string, validating UUID format.
func ParseUserID(s string) (UserID, error) {
	v, err := parseUUID("user_id", s)
	return UserID{value: v}, err
}

// NewUserID generates a new unique UserID.
func NewUserID() UserID {
	return UserID{value: uuid.NewString()}
}

// String returns the string representation of UserID.
func (u UserID) String() string {
	return u.value
}

// IsEmpty checks if the UserID is empty.
func (u UserID) IsEmpty() bool {
	return u.value == ""
}

// EventID uniquely identifies an event tickets are sold for.
type EventID struct {
	value string
}

// ParseEventID creates an EventID from a string, validating UUID format.
func ParseEventID(s string) (EventID, error) {
	v, err := parseUUID("event_id", s)
	return EventID{value: v}, err
}

// MustParseEventID parses an EventID, panicking on invalid input.
// Use only in tests or initialization code where panicking is acceptable.
func MustParseEventID(s string) EventID {
	id, err := ParseEventID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// NewEventID generates a new unique EventID.
func NewEventID() EventID {
	return EventID{value: uuid.NewString()}
}

// String returns the string representation of EventID.
func (e EventID) String() string {
	return e.value
}

// IsEmpty checks if the EventID is empty.
func (e EventID) IsEmpty() bool {
	return e.value == ""
}

func parseUUID(field, s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("%s: %w", field, ErrEmptyID)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%s: %w: %s", field, ErrInvalidID, s)
	}
	return s, nil
}
