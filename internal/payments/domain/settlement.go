package domain

import (
	"errors"
	"fmt"
)

// SettlementState is the position of a payment in the sync-then-async settlement flow.
//
//	ATTEMPTING_SYNC -> SETTLED   bank confirmed the transaction
//	ATTEMPTING_SYNC -> REJECTED  bank answered with an error; not retried
//	ATTEMPTING_SYNC -> DEFERRED  bank unreachable; handed to asynchronous settlement
type SettlementState string

const (
	SettlementAttemptingSync SettlementState = "attempting_sync"
	SettlementSettled        SettlementState = "settled"
	SettlementRejected       SettlementState = "rejected"
	SettlementDeferred       SettlementState = "deferred"
)

// Settlement tracks one transaction through the settlement state machine.
type Settlement struct {
	transaction TransactionRequest
	state       SettlementState
	err         error
}

// NewSettlement starts a settlement attempt for tx.
func NewSettlement(tx TransactionRequest) *Settlement {
	return &Settlement{transaction: tx, state: SettlementAttemptingSync}
}

// Resolve moves the settlement out of ATTEMPTING_SYNC using the gateway result.
// It can be called once; later calls return ErrInvalidSettlementTransition.
func (s *Settlement) Resolve(gatewayErr error) error {
	if s.state != SettlementAttemptingSync {
		return ErrInvalidSettlementTransition
	}

	switch {
	case gatewayErr == nil:
		s.state = SettlementSettled
	case errors.Is(gatewayErr, ErrGatewayUnreachable):
		s.state = SettlementDeferred
		s.err = fmt.Errorf("%w: %v", ErrBankServiceUnavailable, gatewayErr)
	default:
		// 4xx, 5xx and unclassified failures are final.
		s.state = SettlementRejected
		s.err = gatewayErr
	}
	return nil
}

// ErrInvalidSettlementTransition is returned when resolving a finished settlement.
var ErrInvalidSettlementTransition = errors.New("settlement already resolved")

// State returns the current state.
func (s *Settlement) State() SettlementState { return s.state }

// Transaction returns the transaction being settled.
func (s *Settlement) Transaction() TransactionRequest { return s.transaction }

// Err returns the purchase error for REJECTED and DEFERRED settlements, nil otherwise.
func (s *Settlement) Err() error { return s.err }

// Settled reports whether the bank confirmed the transaction.
func (s *Settlement) Settled() bool { return s.state == SettlementSettled }

// Deferred reports whether the transaction must be settled asynchronously.
func (s *Settlement) Deferred() bool { return s.state == SettlementDeferred }
