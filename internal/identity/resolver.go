// Package identity turns bearer credentials into caller identities.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredential is returned when a token cannot be parsed or verified.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrExpiredCredential is returned when a token is past its expiry.
	ErrExpiredCredential = errors.New("credential expired")
)

// Resolver verifies HS256 tokens and extracts the subject (the username).
// It is safe for concurrent use.
type Resolver struct {
	secret []byte
	now    func() time.Time
}

// NewResolver creates a Resolver for tokens signed with secret.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret), now: time.Now}
}

// Resolve returns the username carried by the credential.
func (r *Resolver) Resolve(credential string) (string, error) {
	if credential == "" {
		return "", ErrInvalidCredential
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(credential, claims, r.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredCredential
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	return claims.Subject, nil
}

func (r *Resolver) keyFunc(*jwt.Token) (any, error) {
	return r.secret, nil
}

// Issuer signs tokens with the same secret a Resolver verifies.
// It backs local tooling and tests; production tokens come from the auth service.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for username that expires after ttl.
func (i *Issuer) Issue(username string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}
