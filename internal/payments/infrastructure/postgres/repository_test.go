package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"eventmanagement/internal/common/types"
	"eventmanagement/internal/payments/domain"
	"eventmanagement/internal/payments/infrastructure/postgres"
)

type RepositorySuite struct {
	suite.Suite
	ctx       context.Context
	dataStore *postgres.DataStore
	now       time.Time
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(truncateTables(s.ctx, getTestPool()))
	s.dataStore = postgres.NewDataStore(getTestPool())
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *RepositorySuite) saveUser(name string) *domain.User {
	user, err := domain.NewUser(name, "$2a$10$hash", "ACC-"+name, domain.RoleUser, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.dataStore.Users().Save(s.ctx, user))
	return user
}

func (s *RepositorySuite) TestUsers() {
	user := s.saveUser("johnny")

	s.Run("find by username", func() {
		found, err := s.dataStore.Users().FindByUsername(s.ctx, "johnny")
		s.Require().NoError(err)
		s.Equal(user.ID(), found.ID())
		s.Equal("ACC-johnny", found.AccountNumber())
		s.Equal(domain.RoleUser, found.Role())
	})

	s.Run("missing user", func() {
		_, err := s.dataStore.Users().FindByID(s.ctx, domain.NewUserID())
		s.ErrorIs(err, domain.ErrUserNotFound)
	})

	s.Run("duplicate username", func() {
		dup, err := domain.NewUser("johnny", "$2a$10$other", "ACC-X", domain.RoleUser, s.now)
		s.Require().NoError(err)
		s.ErrorIs(s.dataStore.Users().Save(s.ctx, dup), domain.ErrInvalidUser)
	})
}

func (s *RepositorySuite) TestEvents() {
	organizer := s.saveUser("organizer")
	event, err := domain.NewEvent("Summer Concert", types.MustAmount("100.0"), s.now.Add(time.Hour), organizer.ID(), 10, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.dataStore.Events().Save(s.ctx, event))

	found, err := s.dataStore.Events().FindByID(s.ctx, event.ID())
	s.Require().NoError(err)
	s.True(found.TicketPrice().Equal(types.MustAmount("100")))
	s.Equal(organizer.ID(), found.OrganizerID())

	byName, err := s.dataStore.Events().FindByName(s.ctx, "Summer Concert")
	s.Require().NoError(err)
	s.Equal(event.ID(), byName.ID())

	_, err = s.dataStore.Events().FindByName(s.ctx, "Nope")
	s.ErrorIs(err, domain.ErrEventNotFound)
}

func (s *RepositorySuite) TestTickets() {
	user := s.saveUser("johnny")
	organizer := s.saveUser("organizer")
	event, err := domain.NewEvent("Summer Concert", types.MustAmount("100.0"), s.now, organizer.ID(), 10, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.dataStore.Events().Save(s.ctx, event))

	s.Run("absent pair", func() {
		ticket, err := s.dataStore.Tickets().FindByUserAndEvent(s.ctx, user.ID(), event.ID())
		s.Require().NoError(err)
		s.Nil(ticket)
	})

	s.Run("malformed id is an error, not an absent row", func() {
		ticket, err := s.dataStore.Tickets().FindByUserAndEvent(s.ctx, domain.UserID{}, event.ID())
		s.Error(err)
		s.Nil(ticket)

		ticket, err = s.dataStore.Tickets().FindByUserAndEvent(s.ctx, user.ID(), domain.EventID{})
		s.Error(err)
		s.Nil(ticket)
	})

	s.Run("insert then version-checked update", func() {
		ticket := domain.NewPendingTicket(user.ID(), event.ID(), s.now)
		s.Require().NoError(s.dataStore.Tickets().Save(s.ctx, ticket))

		loaded, err := s.dataStore.Tickets().FindByUserAndEvent(s.ctx, user.ID(), event.ID())
		s.Require().NoError(err)
		s.False(loaded.HasTicket())
		s.Require().NoError(loaded.Issue(s.now.Add(time.Minute)))
		s.Require().NoError(s.dataStore.Tickets().Save(s.ctx, loaded))

		issued, err := s.dataStore.Tickets().FindByUserAndEvent(s.ctx, user.ID(), event.ID())
		s.Require().NoError(err)
		s.True(issued.HasTicket())
		s.Equal(2, issued.Version())
	})

	s.Run("stale writes conflict", func() {
		s.ErrorIs(s.dataStore.Tickets().Save(s.ctx, domain.NewPendingTicket(user.ID(), event.ID(), s.now)), domain.ErrOptimisticLock)

		stale := domain.ReconstructTicket(user.ID(), event.ID(), true, 1, s.now, s.now)
		s.ErrorIs(s.dataStore.Tickets().Save(s.ctx, stale), domain.ErrOptimisticLock)
	})
}

func (s *RepositorySuite) TestOutbox() {
	entry := &domain.OutboxEntry{
		ID:            types.NewMessageID(),
		EventType:     domain.EventTypeDeferredPayment,
		Key:           "u:e",
		CorrelationID: types.NewCorrelationID(),
		Payload:       []byte(`{"amount": 100}`),
		OccurredAt:    s.now,
	}
	s.Require().NoError(s.dataStore.Outbox().Append(s.ctx, entry))

	entries, err := s.dataStore.Outbox().FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(entry.ID, entries[0].ID)
	s.Equal(entry.CorrelationID, entries[0].CorrelationID)
	s.JSONEq(`{"amount": 100}`, string(entries[0].Payload))
	s.Nil(entries[0].PublishedAt)

	s.Require().NoError(s.dataStore.Outbox().MarkPublished(s.ctx, []types.MessageID{entry.ID}))

	entries, err = s.dataStore.Outbox().FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(entries)
}
