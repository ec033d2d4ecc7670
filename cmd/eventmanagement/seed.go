package main

import (
	"context"
	"time"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/common/types"
	"eventmanagement/internal/identity"
	"eventmanagement/internal/payments/domain"
)

const (
	demoUsername     = "johnny"
	demoBankPassword = "johnny-bank"
)

// seedDevelopmentData stores a buyer, an organizer and one event so the
// in-memory service can be exercised by hand, and logs a token for the buyer.
func seedDevelopmentData(ctx context.Context, store domain.DataStore, jwtSecret string) error {
	now := time.Now().UTC()

	hash, err := domain.HashCredential(demoBankPassword)
	if err != nil {
		return err
	}
	buyer, err := domain.NewUser(demoUsername, hash, "1234567890", domain.RoleUser, now)
	if err != nil {
		return err
	}
	organizer, err := domain.NewUser("organizer", hash, "0987654321", domain.RoleAdmin, now)
	if err != nil {
		return err
	}
	event, err := domain.NewEvent("Summer Concert", types.NewAmountFromFloat(100.0), now.AddDate(0, 1, 0), organizer.ID(), 500, now)
	if err != nil {
		return err
	}

	err = store.Atomic(ctx, func(repos domain.Repositories) error {
		if err := repos.Users().Save(ctx, buyer); err != nil {
			return err
		}
		if err := repos.Users().Save(ctx, organizer); err != nil {
			return err
		}
		return repos.Events().Save(ctx, event)
	})
	if err != nil {
		return err
	}

	token, err := identity.NewIssuer(jwtSecret).Issue(demoUsername, 24*time.Hour)
	if err != nil {
		return err
	}

	logging.InfoContext(ctx, "Seeded development data",
		"username", demoUsername,
		"bank_password", demoBankPassword,
		"event_id", event.ID().String(),
		"token", token,
	)
	return nil
}
