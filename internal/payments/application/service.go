package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/identity"
	"eventmanagement/internal/payments/domain"
)

// IdentityResolver maps an opaque session credential to a username.
type IdentityResolver interface {
	Resolve(credential string) (string, error)
}

// PaymentService orchestrates ticket purchases against the bank.
//
// Key design decisions:
//   - Event lookup, ticket guard, bank call and issuance run in one Atomic transaction
//   - The (user, event) pair is locked for the duration of that transaction
//   - Deferred payments are handed to the notifier only after the transaction rolled back
type PaymentService struct {
	store    domain.DataStore
	identity IdentityResolver
	gateway  domain.PaymentGateway
	notifier domain.DeferredPaymentNotifier
	now      func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	store domain.DataStore,
	resolver IdentityResolver,
	gateway domain.PaymentGateway,
	notifier domain.DeferredPaymentNotifier,
) *PaymentService {
	return &PaymentService{
		store:    store,
		identity: resolver,
		gateway:  gateway,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// BuyTicket buys the caller a ticket for req.EventID.
// The ticket is issued only when the bank settles the transaction synchronously.
// When the bank cannot be reached the payment is deferred and ErrBankServiceUnavailable
// is returned; no ticket is issued in that case.
func (s *PaymentService) BuyTicket(ctx context.Context, req domain.PurchaseRequest, credential string) (*domain.TicketReceipt, error) {
	receipt, err := s.buyTicket(ctx, req, credential)

	outcome := purchaseOutcome(err)
	metrics.RecordPurchase(outcome)
	if err != nil {
		logging.WarnContext(ctx, "Ticket purchase failed",
			"event_id", req.EventID.String(),
			"outcome", outcome,
			"error", err,
		)
		return nil, err
	}

	logging.InfoContext(ctx, "Ticket purchased",
		"event_id", req.EventID.String(),
		"outcome", outcome,
		"amount", receipt.Amount.String(),
	)
	return receipt, nil
}

func (s *PaymentService) buyTicket(ctx context.Context, req domain.PurchaseRequest, credential string) (*domain.TicketReceipt, error) {
	user, err := s.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithUsername(ctx, user.Username())

	if err := user.VerifyCredential(req.BankPassword); err != nil {
		return nil, err
	}

	var (
		receipt  *domain.TicketReceipt
		deferred *domain.DeferredPayment
	)

	// The transaction ignores caller cancellation: once the bank is called the
	// purchase runs to completion, bounded by the gateway timeout.
	txCtx := context.WithoutCancel(ctx)

	err = s.store.Atomic(txCtx, func(repos domain.Repositories) error {
		event, err := repos.Events().FindByID(txCtx, req.EventID)
		if err != nil {
			return err
		}

		if err := repos.Tickets().LockForPurchase(txCtx, user.ID(), event.ID()); err != nil {
			return err
		}

		ticket, err := repos.Tickets().FindByUserAndEvent(txCtx, user.ID(), event.ID())
		if err != nil {
			return err
		}
		if ticket == nil {
			ticket = domain.NewPendingTicket(user.ID(), event.ID(), s.now())
		}
		if ticket.State() == domain.TicketStateIssued {
			return domain.ErrTicketAlreadyBought
		}
		ticket.MarkPending()

		account := strings.TrimSpace(req.AccountNumber)
		if account == "" {
			account = user.AccountNumber()
		}
		tx := domain.NewTicketTransaction(account, event)

		// A caller that left before dispatch is not charged.
		if err := ctx.Err(); err != nil {
			return err
		}

		settlement := domain.NewSettlement(tx)
		if err := settlement.Resolve(s.gateway.Process(txCtx, tx)); err != nil {
			return err
		}

		if settlement.Deferred() {
			msg := domain.NewDeferredPayment(tx, user, event, s.findOrganizer(txCtx, repos, event))
			deferred = &msg
			return settlement.Err()
		}
		if !settlement.Settled() {
			return settlement.Err()
		}

		issuedAt := s.now()
		if err := ticket.Issue(issuedAt); err != nil {
			return err
		}
		if err := repos.Tickets().Save(txCtx, ticket); err != nil {
			return err
		}

		receipt = &domain.TicketReceipt{
			UserID:    user.ID(),
			EventID:   event.ID(),
			EventName: event.Name(),
			Amount:    tx.Amount,
			IssuedAt:  issuedAt,
		}
		return nil
	})

	if deferred != nil {
		s.notifier.Publish(ctx, *deferred)
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// findOrganizer loads the payee of a deferred payment.
// A missing organizer leaves the payee account blank rather than failing the deferral.
func (s *PaymentService) findOrganizer(ctx context.Context, repos domain.Repositories, event *domain.Event) *domain.User {
	organizer, err := repos.Users().FindByID(ctx, event.OrganizerID())
	if err != nil {
		logging.WarnContext(ctx, "Organizer lookup failed for deferred payment",
			"event_id", event.ID().String(),
			"organizer_id", event.OrganizerID().String(),
			"error", err,
		)
		return nil
	}
	return organizer
}

func (s *PaymentService) authenticate(ctx context.Context, credential string) (*domain.User, error) {
	username, err := s.identity.Resolve(credential)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", username, err)
	}
	return user, nil
}

// TicketStatus describes the caller's ticket for an event.
type TicketStatus struct {
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	State     string `json:"state"`
	HasTicket bool   `json:"has_ticket"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// GetTicket reports whether the caller holds a ticket for eventID.
// This is a read-only operation and doesn't use the Atomic pattern.
func (s *PaymentService) GetTicket(ctx context.Context, eventID domain.EventID, credential string) (*TicketStatus, error) {
	user, err := s.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}

	event, err := s.store.Events().FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.store.Tickets().FindByUserAndEvent(ctx, user.ID(), event.ID())
	if err != nil {
		return nil, err
	}

	status := &TicketStatus{
		EventID:   event.ID().String(),
		EventName: event.Name(),
		State:     string(ticket.State()),
		HasTicket: ticket.State() == domain.TicketStateIssued,
	}
	if ticket != nil {
		status.UpdatedAt = ticket.UpdatedAt().Format(time.RFC3339)
	}
	return status, nil
}

func purchaseOutcome(err error) string {
	switch {
	case err == nil:
		return "issued"
	case errors.Is(err, domain.ErrBankServiceUnavailable):
		return "deferred"
	case errors.Is(err, domain.ErrTransactionProcessClient):
		return "rejected_client"
	case errors.Is(err, domain.ErrTransactionProcessServer):
		return "rejected_server"
	case errors.Is(err, domain.ErrTicketAlreadyBought):
		return "already_bought"
	case errors.Is(err, domain.ErrBadCredentials):
		return "bad_credentials"
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrEventNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrOptimisticLock):
		return "conflict"
	case errors.Is(err, identity.ErrInvalidCredential), errors.Is(err, identity.ErrExpiredCredential):
		return "unauthenticated"
	default:
		return "error"
	}
}
