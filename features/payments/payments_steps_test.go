package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"eventmanagement/internal/common/types"
	"eventmanagement/internal/identity"
	"eventmanagement/internal/payments/api"
	"eventmanagement/internal/payments/application"
	"eventmanagement/internal/payments/domain"
	"eventmanagement/internal/payments/infrastructure/gateway"
	"eventmanagement/internal/payments/infrastructure/memory"
)

const jwtSecret = "feature-secret"

// fakeBank answers every transaction with a fixed status.
type fakeBank struct {
	mu       sync.Mutex
	status   int
	received int
}

func (b *fakeBank) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received++
	w.WriteHeader(b.status)
}

func (b *fakeBank) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.received
}

type paymentsState struct {
	ctx      context.Context
	store    *memory.DataStore
	notifier *application.OutboxNotifier
	bank     *fakeBank
	bankSrv  *httptest.Server
	apiSrv   *httptest.Server
	issuer   *identity.Issuer
	users    map[string]*domain.User
	events   map[string]*domain.Event
	tokens   map[string]string

	status int
	body   []byte
}

func InitializePaymentsScenario(sc *godog.ScenarioContext) {
	state := &paymentsState{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		state.close()
		return ctx, nil
	})

	// Background steps
	sc.Step(`^a user "([^"]*)" with bank password "([^"]*)"$`, state.aUserWithBankPassword)
	sc.Step(`^an event "([^"]*)" priced at ([\d.]+) organized by "([^"]*)"$`, state.anEventPricedAtOrganizedBy)
	sc.Step(`^"([^"]*)" is signed in$`, state.isSignedIn)
	sc.Step(`^"([^"]*)" has an unbought ticket row for "([^"]*)"$`, state.hasAnUnboughtTicketRow)

	// Bank steps
	sc.Step(`^the bank answers with status (\d+)$`, state.theBankAnswersWithStatus)
	sc.Step(`^the bank is unreachable$`, state.theBankIsUnreachable)
	sc.Step(`^the bank should have received (\d+) transactions?$`, state.theBankShouldHaveReceived)

	// Purchase steps
	sc.Step(`^"([^"]*)" buys a ticket for "([^"]*)" with bank password "([^"]*)"$`, state.buysATicket)
	sc.Step(`^"([^"]*)" has bought a ticket for "([^"]*)"$`, state.hasBoughtATicket)
	sc.Step(`^"([^"]*)" buys a ticket for an unknown event$`, state.buysATicketForAnUnknownEvent)

	// Outcome steps
	sc.Step(`^the response status should be (\d+)$`, state.theResponseStatusShouldBe)
	sc.Step(`^the response message should be "([^"]*)"$`, state.theResponseMessageShouldBe)
	sc.Step(`^the charged amount should be "([^"]*)"$`, state.theChargedAmountShouldBe)
	sc.Step(`^the error code should be "([^"]*)"$`, state.theErrorCodeShouldBe)
	sc.Step(`^"([^"]*)" should hold a ticket for "([^"]*)"$`, state.shouldHoldATicket)
	sc.Step(`^"([^"]*)" should not hold a ticket for "([^"]*)"$`, state.shouldNotHoldATicket)
	sc.Step(`^no deferred payment should be queued$`, state.noDeferredPaymentShouldBeQueued)
	sc.Step(`^exactly (\d+) deferred payments? should be queued for (\d+) paid to "([^"]*)"$`, state.deferredPaymentsShouldBeQueued)
}

func (s *paymentsState) reset() {
	s.ctx = context.Background()
	s.store = memory.NewDataStore()
	s.notifier = application.NewOutboxNotifier(s.store)
	s.bank = &fakeBank{status: http.StatusOK}
	s.bankSrv = httptest.NewServer(s.bank)
	s.issuer = identity.NewIssuer(jwtSecret)
	s.users = make(map[string]*domain.User)
	s.events = make(map[string]*domain.Event)
	s.tokens = make(map[string]string)
	s.status, s.body = 0, nil

	service := application.NewPaymentService(
		s.store,
		identity.NewResolver(jwtSecret),
		gateway.NewClient(s.bankSrv.URL, 2*time.Second),
		s.notifier,
	)
	mux := http.NewServeMux()
	api.NewHandler(service).RegisterRoutes(mux)
	s.apiSrv = httptest.NewServer(mux)
}

func (s *paymentsState) close() {
	s.notifier.Flush()
	s.apiSrv.Close()
	s.bankSrv.Close()
}

func (s *paymentsState) saveUser(username, password string) (*domain.User, error) {
	hash, err := domain.HashCredential(password)
	if err != nil {
		return nil, err
	}
	user, err := domain.NewUser(username, hash, "ACC-"+username, domain.RoleUser, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.store.Users().Save(s.ctx, user); err != nil {
		return nil, err
	}
	s.users[username] = user
	return user, nil
}

func (s *paymentsState) aUserWithBankPassword(username, password string) error {
	_, err := s.saveUser(username, password)
	return err
}

func (s *paymentsState) anEventPricedAtOrganizedBy(name, price, organizerName string) error {
	organizer, ok := s.users[organizerName]
	if !ok {
		var err error
		if organizer, err = s.saveUser(organizerName, "organizer-secret"); err != nil {
			return err
		}
	}

	amount, err := types.NewAmountFromString(price)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	event, err := domain.NewEvent(name, amount, now.AddDate(0, 1, 0), organizer.ID(), 100, now)
	if err != nil {
		return err
	}
	if err := s.store.Events().Save(s.ctx, event); err != nil {
		return err
	}
	s.events[name] = event
	return nil
}

func (s *paymentsState) isSignedIn(username string) error {
	token, err := s.issuer.Issue(username, time.Hour)
	if err != nil {
		return err
	}
	s.tokens[username] = token
	return nil
}

func (s *paymentsState) hasAnUnboughtTicketRow(username, eventName string) error {
	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("unknown user %q", username)
	}
	event, ok := s.events[eventName]
	if !ok {
		return fmt.Errorf("unknown event %q", eventName)
	}
	return s.store.Tickets().Save(s.ctx, domain.NewPendingTicket(user.ID(), event.ID(), time.Now().UTC()))
}

func (s *paymentsState) theBankAnswersWithStatus(status int) error {
	s.bank.mu.Lock()
	defer s.bank.mu.Unlock()
	s.bank.status = status
	return nil
}

func (s *paymentsState) theBankIsUnreachable() error {
	s.bankSrv.Close()
	return nil
}

func (s *paymentsState) theBankShouldHaveReceived(expected int) error {
	if got := s.bank.count(); got != expected {
		return fmt.Errorf("expected bank to receive %d transactions, got %d", expected, got)
	}
	return nil
}

func (s *paymentsState) buy(username, eventID, password string) error {
	body, err := json.Marshal(api.BuyTicketRequest{
		EventID:      eventID,
		BankPassword: password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(s.ctx, http.MethodPut, s.apiSrv.URL+"/payments/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.tokens[username])

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("purchase request failed: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return err
	}
	s.status, s.body = resp.StatusCode, buf.Bytes()
	return nil
}

func (s *paymentsState) eventID(name string) (string, error) {
	event, ok := s.events[name]
	if !ok {
		return "", fmt.Errorf("unknown event %q", name)
	}
	return event.ID().String(), nil
}

func (s *paymentsState) buysATicket(username, eventName, password string) error {
	id, err := s.eventID(eventName)
	if err != nil {
		return err
	}
	return s.buy(username, id, password)
}

func (s *paymentsState) hasBoughtATicket(username, eventName string) error {
	id, err := s.eventID(eventName)
	if err != nil {
		return err
	}
	if err := s.buy(username, id, "johnny-bank"); err != nil {
		return err
	}
	if s.status != http.StatusOK {
		return fmt.Errorf("setup purchase failed with status %d: %s", s.status, s.body)
	}
	return nil
}

func (s *paymentsState) buysATicketForAnUnknownEvent(username string) error {
	return s.buy(username, domain.NewEventID().String(), "johnny-bank")
}

func (s *paymentsState) theResponseStatusShouldBe(expected int) error {
	if s.status != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.status, s.body)
	}
	return nil
}

func (s *paymentsState) theResponseMessageShouldBe(expected string) error {
	var resp api.BuyTicketResponse
	if err := json.Unmarshal(s.body, &resp); err != nil {
		return err
	}
	if resp.Message != expected {
		return fmt.Errorf("expected message %q, got %q", expected, resp.Message)
	}
	return nil
}

func (s *paymentsState) theChargedAmountShouldBe(expected string) error {
	var resp api.BuyTicketResponse
	if err := json.Unmarshal(s.body, &resp); err != nil {
		return err
	}
	if resp.Amount != expected {
		return fmt.Errorf("expected amount %s, got %s", expected, resp.Amount)
	}
	return nil
}

func (s *paymentsState) theErrorCodeShouldBe(expected string) error {
	var resp api.ErrorResponse
	if err := json.Unmarshal(s.body, &resp); err != nil {
		return fmt.Errorf("response is not an error body: %w", err)
	}
	if resp.Code != expected {
		return fmt.Errorf("expected error code %q, got %q", expected, resp.Code)
	}
	return nil
}

func (s *paymentsState) holdsTicket(username, eventName string) (bool, error) {
	user, ok := s.users[username]
	if !ok {
		return false, fmt.Errorf("unknown user %q", username)
	}
	event, ok := s.events[eventName]
	if !ok {
		return false, fmt.Errorf("unknown event %q", eventName)
	}
	ticket, err := s.store.Tickets().FindByUserAndEvent(s.ctx, user.ID(), event.ID())
	if err != nil {
		return false, err
	}
	return ticket.State() == domain.TicketStateIssued, nil
}

func (s *paymentsState) shouldHoldATicket(username, eventName string) error {
	held, err := s.holdsTicket(username, eventName)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("%s holds no ticket for %s", username, eventName)
	}
	return nil
}

func (s *paymentsState) shouldNotHoldATicket(username, eventName string) error {
	held, err := s.holdsTicket(username, eventName)
	if err != nil {
		return err
	}
	if held {
		return fmt.Errorf("%s unexpectedly holds a ticket for %s", username, eventName)
	}
	return nil
}

func (s *paymentsState) queued() []*domain.OutboxEntry {
	s.notifier.Flush()
	return s.store.OutboxEntries()
}

func (s *paymentsState) noDeferredPaymentShouldBeQueued() error {
	if entries := s.queued(); len(entries) != 0 {
		return fmt.Errorf("expected no deferred payments, got %d", len(entries))
	}
	return nil
}

func (s *paymentsState) deferredPaymentsShouldBeQueued(count, amount int, organizerName string) error {
	entries := s.queued()
	if len(entries) != count {
		return fmt.Errorf("expected %d deferred payments, got %d", count, len(entries))
	}

	organizer, ok := s.users[organizerName]
	if !ok {
		return fmt.Errorf("unknown organizer %q", organizerName)
	}
	want := types.NewAmountFromFloat(float64(amount))

	for _, entry := range entries {
		if entry.EventType != domain.EventTypeDeferredPayment {
			return fmt.Errorf("unexpected message type %q", entry.EventType)
		}
		var msg domain.DeferredPayment
		if err := json.Unmarshal(entry.Payload, &msg); err != nil {
			return err
		}
		if !msg.Amount.Equal(want) {
			return fmt.Errorf("expected amount %s, got %s", want, msg.Amount)
		}
		if msg.OrganizerAccountNumber != organizer.AccountNumber() {
			return fmt.Errorf("expected payee %s, got %s", organizer.AccountNumber(), msg.OrganizerAccountNumber)
		}
	}
	return nil
}
