package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/events"
	"github.com/amirasaad/creditcore/pkg/eventbus"
)

// Subscriber forwards ledger events to a Dispatcher.
type Subscriber struct {
	dispatcher Dispatcher
	localizer  *Localizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewSubscriber creates a Subscriber rendering messages with localizer.
func NewSubscriber(d Dispatcher, localizer *Localizer, logger *slog.Logger) *Subscriber {
	if localizer == nil {
		localizer = NewLocalizer("en")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		dispatcher: d,
		localizer:  localizer,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes to every event that produces a notice.
func (s *Subscriber) Register(bus eventbus.Bus) {
	bus.Register(events.BalanceChangedType, s.onBalanceChanged)
	bus.Register(events.TransactionRejectedType, s.onTransactionRejected)
	bus.Register(events.PaymentFailedType, s.onPaymentFailed)
}

func (s *Subscriber) onBalanceChanged(ctx context.Context, e eventbus.Event) error {
	ev, ok := e.(events.BalanceChanged)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	n := SuccessNotice{
		UserID:      ev.UserID,
		OperationID: ev.OperationID,
		Amount:      ev.Amount,
		NewBalance:  ev.NewBalance,
		Category:    ev.Category,
		Direction:   ev.Direction,
		At:          s.now(),
	}
	n.Message = s.localizer.Success(n)
	return s.deliver("success", ev.UserID, func() error { return s.dispatcher.NotifySuccess(ctx, n) })
}

func (s *Subscriber) onTransactionRejected(ctx context.Context, e eventbus.Event) error {
	ev, ok := e.(events.TransactionRejected)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	return s.failure(ctx, FailureNotice{
		UserID:    ev.UserID,
		Kind:      KindTransaction,
		Reason:    ev.Reason,
		Reference: ev.OperationID,
	})
}

func (s *Subscriber) onPaymentFailed(ctx context.Context, e eventbus.Event) error {
	ev, ok := e.(events.PaymentFailed)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	return s.failure(ctx, FailureNotice{
		UserID:    ev.UserID,
		Kind:      KindPayment,
		Reason:    ev.Reason,
		Reference: ev.InvoiceRef,
	})
}

func (s *Subscriber) failure(ctx context.Context, n FailureNotice) error {
	n.At = s.now()
	n.Message = s.localizer.Failure(n)
	return s.deliver("failure", n.UserID, func() error { return s.dispatcher.NotifyFailure(ctx, n) })
}

// deliver logs dispatcher errors and swallows them.
func (s *Subscriber) deliver(kind string, userID int64, send func() error) error {
	if err := send(); err != nil {
		s.logger.Warn("⚠️ Notification not delivered", "kind", kind, "user_id", userID, "error", err)
	}
	return nil
}
