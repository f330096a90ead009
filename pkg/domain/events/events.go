// Package events declares the events the ledger emits after a commit.
package events

import (
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/google/uuid"
)

const (
	BalanceChangedType      = "Ledger.BalanceChanged"
	TransactionRejectedType = "Ledger.TransactionRejected"
	PaymentFailedType       = "Payment.Failed"
)

// BalanceChanged is emitted once per COMPLETED transaction, never on replay.
type BalanceChanged struct {
	TransactionID uuid.UUID        `json:"transaction_id"`
	OperationID   string           `json:"operation_id"`
	UserID        int64            `json:"user_id"`
	Amount        money.Amount     `json:"amount"`
	Direction     credit.Direction `json:"direction"`
	Category      credit.Category  `json:"category"`
	NewBalance    money.Amount     `json:"new_balance"`
}

func (BalanceChanged) Type() string { return BalanceChangedType }

// TransactionRejected is emitted when a debit is refused for lack of funds,
// and when an operation could not be stored (Reason is credit.ReasonStorageFailure).
type TransactionRejected struct {
	OperationID string          `json:"operation_id"`
	UserID      int64           `json:"user_id"`
	Amount      money.Amount    `json:"amount"`
	Category    credit.Category `json:"category"`
	Reason      string          `json:"reason"`
}

func (TransactionRejected) Type() string { return TransactionRejectedType }

// PaymentFailed is emitted when a pending payment ends FAILED.
type PaymentFailed struct {
	InvoiceRef string         `json:"invoice_ref"`
	UserID     int64          `json:"user_id"`
	Gateway    credit.Gateway `json:"gateway"`
	Reason     string         `json:"reason"`
}

func (PaymentFailed) Type() string { return PaymentFailedType }
