package ledger

import (
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/money"
	ledgersvc "github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/amirasaad/creditcore/pkg/service/refund"
)

//revive:disable

// ApplyRequest is the body of POST /api/v1/transactions.
type ApplyRequest struct {
	OperationID string  `json:"operation_id" validate:"required,max=128"`
	UserID      int64   `json:"user_id" validate:"required,gt=0"`
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Direction   string  `json:"direction" validate:"required,oneof=CREDIT DEBIT"`
	Category    string  `json:"category" validate:"required,oneof=image_gen video_gen voice_gen text_gen purchase subscription_purchase referral_bonus refund adjustment"`
	Description string  `json:"description" validate:"max=512"`
	Bypass      bool    `json:"bypass"`
}

// ReverseRequest is the body of POST /api/v1/transactions/reverse.
type ReverseRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	OperationID string `json:"operation_id" validate:"required,max=128"`
	Reason      string `json:"reason" validate:"max=256"`
}

// ApplyResponse is returned for applied and replayed operations.
type ApplyResponse struct {
	TransactionID     string  `json:"transaction_id"`
	OperationID       string  `json:"operation_id"`
	Status            string  `json:"status"`
	NewBalance        float64 `json:"new_balance"`
	Replayed          bool    `json:"replayed"`
	SubscriptionError string  `json:"subscription_error,omitempty"`
}

// ReverseResponse describes a completed reversal.
type ReverseResponse struct {
	ReversalID          string  `json:"reversal_id"`
	OriginalOperationID string  `json:"original_operation_id"`
	Amount              float64 `json:"amount"`
	NewBalance          float64 `json:"new_balance"`
}

// TransactionDTO is the API representation of a log entry.
type TransactionDTO struct {
	ID            string     `json:"id"`
	OperationID   string     `json:"operation_id"`
	UserID        int64      `json:"user_id"`
	Amount        float64    `json:"amount"`
	Direction     string     `json:"direction"`
	Status        string     `json:"status"`
	Category      string     `json:"category"`
	Description   string     `json:"description,omitempty"`
	Bypass        bool       `json:"bypass,omitempty"`
	BalanceAfter  *float64   `json:"balance_after,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	InvoiceRef    string     `json:"invoice_ref,omitempty"`
	ReversalOf    string     `json:"reversal_of,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

//revive:enable

func credits(a money.Amount) float64 {
	return a.Decimal(money.CRD).InexactFloat64()
}

func toApplyResponse(res *ledgersvc.Result) *ApplyResponse {
	out := &ApplyResponse{
		TransactionID: res.TransactionID.String(),
		OperationID:   res.OperationID,
		Status:        string(res.Status),
		NewBalance:    credits(res.NewBalance),
		Replayed:      res.Replayed,
	}
	if res.SubscriptionErr != nil {
		out.SubscriptionError = res.SubscriptionErr.Error()
	}
	return out
}

func toReverseResponse(res *refund.Result) *ReverseResponse {
	return &ReverseResponse{
		ReversalID:          res.ReversalID.String(),
		OriginalOperationID: res.OriginalOperationID,
		Amount:              credits(res.Amount),
		NewBalance:          credits(res.NewBalance),
	}
}

// ToTransactionDTO maps a transaction to its API form.
func ToTransactionDTO(tx *credit.Transaction) *TransactionDTO {
	if tx == nil {
		return nil
	}
	dto := &TransactionDTO{
		ID:            tx.ID.String(),
		OperationID:   tx.OperationID,
		UserID:        tx.UserID,
		Amount:        credits(tx.Amount),
		Direction:     string(tx.Direction),
		Status:        string(tx.Status),
		Category:      string(tx.Category),
		Description:   tx.Description,
		Bypass:        tx.Bypass,
		FailureReason: tx.FailureReason,
		InvoiceRef:    tx.Metadata.InvoiceRef,
		ReversalOf:    tx.Metadata.ReversalOf,
		CreatedAt:     tx.CreatedAt,
		CompletedAt:   tx.CompletedAt,
	}
	if tx.BalanceAfter != nil {
		b := credits(*tx.BalanceAfter)
		dto.BalanceAfter = &b
	}
	return dto
}
