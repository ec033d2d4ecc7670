package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is the access level of a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// User is a registered account. Tickets and events reference users but never own them.
type User struct {
	id             UserID
	username       string
	credentialHash string
	accountNumber  string
	role           Role
	createdAt      time.Time
}

// NewUser creates a user from an already hashed credential.
func NewUser(username, credentialHash, accountNumber string, role Role, now time.Time) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidUser)
	}
	if credentialHash == "" {
		return nil, fmt.Errorf("%w: credential hash is required", ErrInvalidUser)
	}
	if role == "" {
		role = RoleUser
	}
	return &User{
		id:             NewUserID(),
		username:       username,
		credentialHash: credentialHash,
		accountNumber:  accountNumber,
		role:           role,
		createdAt:      now,
	}, nil
}

// ReconstructUser reconstructs a User from persistence.
// This bypasses validation - only use for loading from database.
func ReconstructUser(id UserID, username, credentialHash, accountNumber string, role Role, createdAt time.Time) *User {
	return &User{
		id:             id,
		username:       username,
		credentialHash: credentialHash,
		accountNumber:  accountNumber,
		role:           role,
		createdAt:      createdAt,
	}
}

// HashCredential produces the bcrypt hash stored for a password.
func HashCredential(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing credential: %w", err)
	}
	return string(hash), nil
}

// VerifyCredential checks password against the stored hash.
// Returns ErrBadCredentials on mismatch.
func (u *User) VerifyCredential(password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(u.credentialHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadCredentials, err)
	}
	return nil
}

func (u *User) ID() UserID             { return u.id }
func (u *User) Username() string       { return u.username }
func (u *User) CredentialHash() string { return u.credentialHash }
func (u *User) AccountNumber() string  { return u.accountNumber }
func (u *User) Role() Role             { return u.role }
func (u *User) CreatedAt() time.Time   { return u.createdAt }
