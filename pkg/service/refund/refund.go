// Package refund reverses completed debits with a compensating credit.
package refund

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/metrics"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/google/uuid"
)

// ReversalPrefix prefixes the operation id of a reversal credit.
const ReversalPrefix = "reverse:"

// Ledger is the part of the transaction processor a reversal needs.
type Ledger interface {
	Apply(ctx context.Context, req ledger.ApplyRequest) (*ledger.Result, error)
	Find(ctx context.Context, userID int64, operationID string) (*credit.Transaction, error)
}

// Result describes a completed reversal.
type Result struct {
	ReversalID          uuid.UUID
	OriginalOperationID string
	Amount              money.Amount
	NewBalance          money.Amount
}

// Service is the refund/reversal handler.
type Service struct {
	ledger  Ledger
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Service.
func New(l Ledger, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: l, metrics: m, logger: logger.With("service", "refund")}
}

// ReversalOperationID returns the operation id used to reverse originalOperationID.
func ReversalOperationID(originalOperationID string) string {
	return ReversalPrefix + originalOperationID
}

// Reverse credits back a completed debit. A debit can be reversed once;
// later attempts get credit.ErrAlreadyReversed.
func (s *Service) Reverse(
	ctx context.Context,
	userID int64,
	originalOperationID string,
	reason string,
) (*Result, error) {
	log := s.logger.With("user_id", userID, "operation_id", originalOperationID)
	log.Info("🟢 [START] Reversal requested", "reason", reason)

	original, err := s.ledger.Find(ctx, userID, originalOperationID)
	if err != nil {
		s.metrics.Reversal(metrics.OutcomeError)
		return nil, err
	}
	if original.Status != credit.StatusCompleted || original.Direction != credit.Debit {
		s.metrics.Reversal(metrics.OutcomeRejected)
		return nil, fmt.Errorf("%w: only completed debits can be reversed (status %s, direction %s)",
			credit.ErrInvalidState, original.Status, original.Direction)
	}

	reversalOp := ReversalOperationID(originalOperationID)
	prior, err := s.ledger.Find(ctx, userID, reversalOp)
	switch {
	case err == nil && prior.Status == credit.StatusCompleted:
		s.metrics.Reversal(metrics.OutcomeReplayed)
		log.Info("🔁 [SKIP] Already reversed", "reversal_id", prior.ID)
		return nil, credit.ErrAlreadyReversed
	case err != nil && !errors.Is(err, credit.ErrNotFound):
		s.metrics.Reversal(metrics.OutcomeError)
		return nil, err
	}

	description := "reversal of " + originalOperationID
	if reason != "" {
		description += ": " + reason
	}
	res, err := s.ledger.Apply(ctx, ledger.ApplyRequest{
		OperationID: reversalOp,
		UserID:      userID,
		Amount:      original.Amount,
		Direction:   credit.Credit,
		Category:    credit.CategoryRefund,
		Description: description,
		Bypass:      true,
		Metadata:    credit.Metadata{ReversalOf: originalOperationID},
	})
	if err != nil {
		s.metrics.Reversal(metrics.OutcomeError)
		log.Error("❌ [ERROR] Reversal failed", "error", err)
		return nil, err
	}
	if res.Replayed {
		// A concurrent reversal committed between the check and the apply.
		s.metrics.Reversal(metrics.OutcomeReplayed)
		return nil, credit.ErrAlreadyReversed
	}

	s.metrics.Reversal(metrics.OutcomeCompleted)
	log.Info("✅ [SUCCESS] Debit reversed", "reversal_id", res.TransactionID, "new_balance", res.NewBalance)
	return &Result{
		ReversalID:          res.TransactionID,
		OriginalOperationID: originalOperationID,
		Amount:              original.Amount,
		NewBalance:          res.NewBalance,
	}, nil
}
