// Package notification turns ledger outcomes into user-facing notices.
//
// Delivery is best effort: a dispatcher error is logged and never undoes the
// balance change that caused it.
package notification

import (
	"context"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
)

// FailureKind tells what kind of operation a FailureNotice is about.
type FailureKind string

const (
	KindTransaction FailureKind = "transaction"
	KindPayment     FailureKind = "payment"
)

// SuccessNotice reports a completed balance change.
type SuccessNotice struct {
	UserID      int64            `json:"user_id"`
	OperationID string           `json:"operation_id"`
	Amount      money.Amount     `json:"amount"`
	NewBalance  money.Amount     `json:"new_balance"`
	Category    credit.Category  `json:"category"`
	Direction   credit.Direction `json:"direction"`
	Message     string           `json:"message"`
	At          time.Time        `json:"at"`
}

// FailureNotice reports an operation the user asked for that did not happen.
type FailureNotice struct {
	UserID    int64       `json:"user_id"`
	Kind      FailureKind `json:"kind"`
	Reason    string      `json:"reason"`
	Reference string      `json:"reference"`
	Message   string      `json:"message"`
	At        time.Time   `json:"at"`
}

// Dispatcher delivers notices to users or operators.
type Dispatcher interface {
	NotifySuccess(ctx context.Context, n SuccessNotice) error
	NotifyFailure(ctx context.Context, n FailureNotice) error
}
