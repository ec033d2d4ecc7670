package domain

import (
	"context"
	"encoding/json"
	"time"

	"eventmanagement/internal/common/types"
)

// TransactionType classifies a transaction for the bank service.
type TransactionType string

const (
	// TransactionTypeOnlinePayment is used for ticket purchases.
	TransactionTypeOnlinePayment TransactionType = "ONLINE_PAYMENT"
)

// PurchaseRequest is the per-call input of a ticket purchase. It is never persisted.
type PurchaseRequest struct {
	EventID       EventID
	AccountNumber string
	BankPassword  string
}

// TransactionRequest is the payload sent to the bank service.
type TransactionRequest struct {
	AccountNumber   string          `json:"accountNumber"`
	Amount          types.Amount    `json:"amount"`
	TransactionType TransactionType `json:"transactionType"`
}

// NewTicketTransaction builds the bank transaction paying for an event ticket.
func NewTicketTransaction(accountNumber string, event *Event) TransactionRequest {
	return TransactionRequest{
		AccountNumber:   accountNumber,
		Amount:          event.TicketPrice(),
		TransactionType: TransactionTypeOnlinePayment,
	}
}

// TicketReceipt confirms a settled purchase.
type TicketReceipt struct {
	UserID    UserID
	EventID   EventID
	EventName string
	Amount    types.Amount
	IssuedAt  time.Time
}

// Message renders the confirmation shown to the buyer.
func (r TicketReceipt) Message() string {
	return "You have bought a ticket for the event " + r.EventName
}

// PaymentGateway settles transactions synchronously with the bank.
type PaymentGateway interface {
	// Process submits the transaction.
	// Returns ErrTransactionProcessClient for 4xx responses, ErrTransactionProcessServer
	// for 5xx responses and ErrGatewayUnreachable for network-level failures.
	Process(ctx context.Context, tx TransactionRequest) error
}

// EventTypeDeferredPayment names deferred payment messages in the outbox.
const EventTypeDeferredPayment = "payment.deferred"

// DeferredPayment is emitted when the bank could not be reached synchronously.
type DeferredPayment struct {
	AccountNumber          string          `json:"accountNumber"`
	Amount                 types.Amount    `json:"amount"`
	TransactionType        TransactionType `json:"transactionType"`
	EventID                string          `json:"eventId"`
	UserID                 string          `json:"userId"`
	OrganizerAccountNumber string          `json:"organizerAccountNumber"`
}

// NewDeferredPayment captures the transaction the bank could not settle.
func NewDeferredPayment(tx TransactionRequest, user *User, event *Event, organizer *User) DeferredPayment {
	msg := DeferredPayment{
		AccountNumber:   tx.AccountNumber,
		Amount:          tx.Amount,
		TransactionType: tx.TransactionType,
		EventID:         event.ID().String(),
		UserID:          user.ID().String(),
	}
	if organizer != nil {
		msg.OrganizerAccountNumber = organizer.AccountNumber()
	}
	return msg
}

// Key partitions deferred payments per (user, event).
func (d DeferredPayment) Key() string {
	return d.UserID + ":" + d.EventID
}

// NewDeferredPaymentOutboxEntry wraps a deferred payment for the outbox.
func NewDeferredPaymentOutboxEntry(msg DeferredPayment, correlationID types.CorrelationID, now time.Time) (*OutboxEntry, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	return &OutboxEntry{
		ID:            types.NewMessageID(),
		EventType:     EventTypeDeferredPayment,
		Key:           msg.Key(),
		CorrelationID: correlationID,
		Payload:       payload,
		OccurredAt:    now,
	}, nil
}

// DeferredPaymentNotifier hands a deferred payment to asynchronous settlement.
// Publish must not block on delivery and never reports delivery failures.
type DeferredPaymentNotifier interface {
	Publish(ctx context.Context, msg DeferredPayment)
}
