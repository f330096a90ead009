package transaction

import (
	"context"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
)

// StatusUpdate describes a status transition and the fields it sets.
type StatusUpdate struct {
	Status        credit.Status
	BalanceAfter  *money.Amount
	FailureReason string
	CompletedAt   *time.Time
	External      map[string]string
}

// Repository defines data access for the append-mostly transaction log.
// Rows are keyed by (user_id, operation_id), which storage enforces as unique.
type Repository interface {
	// InsertIfAbsent writes tx unless a row with the same (user_id, operation_id)
	// exists. It reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, tx *credit.Transaction) (bool, error)

	// UpdateStatus transitions the row from status `from` to update.Status.
	// It reports whether a row matched; a false result means the row was
	// absent or no longer in `from`.
	UpdateStatus(
		ctx context.Context,
		userID int64,
		operationID string,
		from credit.Status,
		update StatusUpdate,
	) (bool, error)

	// Find returns the transaction or nil when it does not exist.
	Find(ctx context.Context, userID int64, operationID string) (*credit.Transaction, error)

	// FindPendingByInvoiceRef returns the payment record for an invoice
	// reference regardless of status, or nil when it does not exist.
	FindPendingByInvoiceRef(ctx context.Context, invoiceRef string) (*credit.Transaction, error)

	// ListStalePending returns PENDING invoice records created before cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*credit.Transaction, error)

	// ListByUser returns the user's transactions, newest first.
	ListByUser(ctx context.Context, userID int64, limit int) ([]*credit.Transaction, error)

	// SumCompleted returns the signed sum of the user's COMPLETED transactions.
	SumCompleted(ctx context.Context, userID int64) (money.Amount, error)
}
