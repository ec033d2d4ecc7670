package domain

import "errors"

// Domain errors for ticket purchases.
var (
	// ErrUserNotFound is returned when no stored user matches the caller.
	ErrUserNotFound = errors.New("user not found")

	// ErrEventNotFound is returned when an event cannot be found.
	ErrEventNotFound = errors.New("event not found")

	// ErrBadCredentials is returned when the supplied bank password does not match the stored hash.
	ErrBadCredentials = errors.New("bad credentials")

	// ErrTicketAlreadyBought is returned when the caller already holds a ticket for the event.
	ErrTicketAlreadyBought = errors.New("ticket already bought")

	// ErrTransactionProcessClient is returned when the bank rejects the transaction with a 4xx.
	ErrTransactionProcessClient = errors.New("transaction rejected by bank")

	// ErrTransactionProcessServer is returned when the bank fails the transaction with a 5xx.
	ErrTransactionProcessServer = errors.New("bank failed to process transaction")

	// ErrBankServiceUnavailable is returned when the bank cannot be reached.
	// The payment is handed to the deferred-payment notifier before this is surfaced.
	ErrBankServiceUnavailable = errors.New("bank service unavailable")

	// ErrGatewayUnreachable marks network-level failures reaching the bank.
	ErrGatewayUnreachable = errors.New("bank gateway unreachable")

	// ErrOptimisticLock is returned when an optimistic lock conflict occurs.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrCorruptData is returned when data loaded from persistence is invalid.
	ErrCorruptData = errors.New("corrupt data in database")

	// ErrInvalidEvent is returned when event attributes violate invariants.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidUser is returned when user attributes violate invariants.
	ErrInvalidUser = errors.New("invalid user")
)
