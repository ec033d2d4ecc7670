package application

import (
	"context"
	"sync"
	"time"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/common/metrics"
	"eventmanagement/internal/common/types"
	"eventmanagement/internal/payments/domain"
)

// OutboxNotifier implements domain.DeferredPaymentNotifier by writing deferred
// payments to the outbox. The OutboxRelay delivers them to the broker later.
// Concurrency: each Publish runs in its own goroutine and its own transaction.
type OutboxNotifier struct {
	store domain.AtomicExecutor
	now   func() time.Time
	wg    sync.WaitGroup
}

// NewOutboxNotifier creates a notifier backed by store.
func NewOutboxNotifier(store domain.AtomicExecutor) *OutboxNotifier {
	return &OutboxNotifier{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Publish queues msg without waiting for it to be stored.
// Failures are logged and counted; they never reach the caller.
func (n *OutboxNotifier) Publish(ctx context.Context, msg domain.DeferredPayment) {
	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID.IsEmpty() {
		correlationID = types.NewCorrelationID()
	}
	ctx = context.WithoutCancel(ctx)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		entry, err := domain.NewDeferredPaymentOutboxEntry(msg, correlationID, n.now())
		if err == nil {
			err = n.store.Atomic(ctx, func(repos domain.Repositories) error {
				return repos.Outbox().Append(ctx, entry)
			})
		}
		if err != nil {
			metrics.RecordDeferredPayment("failed")
			logging.ErrorContext(ctx, "Failed to queue deferred payment",
				"event_id", msg.EventID,
				"user_id", msg.UserID,
				"error", err,
			)
			return
		}

		metrics.RecordDeferredPayment("queued")
		logging.InfoContext(ctx, "Deferred payment queued",
			"message_id", entry.ID.String(),
			"event_id", msg.EventID,
			"amount", msg.Amount.String(),
		)
	}()
}

// Flush blocks until every in-flight Publish has finished.
func (n *OutboxNotifier) Flush() {
	n.wg.Wait()
}

var _ domain.DeferredPaymentNotifier = (*OutboxNotifier)(nil)
