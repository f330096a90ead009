// Package ledger applies balance-affecting operations exactly once.
//
// Every operation is keyed by (user id, operation id). The first call does the
// work; later calls with the same parameters replay the recorded outcome, and
// calls that reuse the key with different parameters are rejected. Safety
// against concurrent callers comes from storage: a unique key on the
// transaction log and a guarded balance update, both inside one database
// transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/domain/events"
	"github.com/amirasaad/creditcore/pkg/eventbus"
	"github.com/amirasaad/creditcore/pkg/metrics"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/repository"
	"github.com/amirasaad/creditcore/pkg/repository/transaction"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// MaxOperationIDLength bounds caller-supplied operation ids.
const MaxOperationIDLength = 128

const maxAttempts = 3

// errLostRace aborts a database transaction whose conditional status update
// matched nothing because a concurrent caller finished the same record first.
var errLostRace = errors.New("ledger: record transitioned concurrently")

// ApplyRequest describes one balance-affecting operation.
type ApplyRequest struct {
	OperationID string
	UserID      int64
	Amount      money.Amount
	Direction   credit.Direction
	Category    credit.Category
	Description string
	// Bypass skips the non-negative balance check. Debits need operator opt-in.
	Bypass   bool
	Metadata credit.Metadata
}

// Result is the outcome of Apply. Replayed is true when nothing was changed
// because the operation had already completed.
type Result struct {
	TransactionID uuid.UUID
	OperationID   string
	Status        credit.Status
	NewBalance    money.Amount
	Replayed      bool
	// SubscriptionErr reports a failed subscription extension. The credit
	// itself is committed regardless.
	SubscriptionErr error
}

// SubscriptionExtender creates or extends a subscription for a completed purchase.
// It must be idempotent per transaction id.
type SubscriptionExtender interface {
	Extend(ctx context.Context, userID int64, tier string, transactionID uuid.UUID) (*credit.Subscription, error)
}

// Deps holds the collaborators of the Service.
type Deps struct {
	Uow      repository.UnitOfWork
	Bus      eventbus.Bus
	Extender SubscriptionExtender
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Config   *config.Ledger
	Now      func() time.Time
}

// Service is the transaction processor.
type Service struct {
	uow      repository.UnitOfWork
	bus      eventbus.Bus
	extender SubscriptionExtender
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      config.Ledger
	now      func() time.Time
	inflight singleflight.Group
}

// New creates a Service.
func New(deps Deps) *Service {
	s := &Service{
		uow:      deps.Uow,
		bus:      deps.Bus,
		extender: deps.Extender,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if deps.Config != nil {
		s.cfg = *deps.Config
	}
	if s.cfg.StorageTimeout <= 0 {
		s.cfg.StorageTimeout = 3 * time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Apply performs req exactly once. See the package documentation for the
// replay rules. Errors are credit sentinels; only credit.ErrStorageFailure is
// worth retrying with the same operation id. An operation id that names a
// pending gateway purchase is refused with credit.ErrInvalidState: only
// CompletePending may complete it.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*Result, error) {
	return s.run(ctx, req, false)
}

// CompletePending completes the PENDING purchase recorded under
// req.OperationID. It is called by the payment lifecycle once the gateway
// has confirmed the payment. credit.ErrNotFound is returned when there is no
// such record.
func (s *Service) CompletePending(ctx context.Context, req ApplyRequest) (*Result, error) {
	return s.run(ctx, req, true)
}

func (s *Service) run(ctx context.Context, req ApplyRequest, completing bool) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.Bypass && req.Direction == credit.Debit && !s.cfg.AllowBypassDebit {
		s.logger.Warn("⚠️ [BYPASS] Refused bypassed debit",
			"user_id", req.UserID, "operation_id", req.OperationID)
		return nil, credit.ErrBypassNotAllowed
	}

	// Identical in-process requests share one storage round trip. The shared
	// call is detached from the first caller's cancellation and bounded by
	// the storage timeout instead.
	ch := s.inflight.DoChan(flightKey(req, completing), func() (any, error) {
		return s.apply(context.WithoutCancel(ctx), req, completing)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*Result)
		return &res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", credit.ErrStorageFailure, ctx.Err())
	}
}

// flightKey differs for requests with different parameters so they still
// reach the conflict check.
func flightKey(req ApplyRequest, completing bool) string {
	return fmt.Sprintf("%d:%s:%d:%s:%s:%t:%t",
		req.UserID, req.OperationID, req.Amount, req.Direction, req.Category, req.Bypass, completing)
}

func (s *Service) apply(ctx context.Context, req ApplyRequest, completing bool) (*Result, error) {
	start := time.Now()
	log := s.logger.With(
		"handler", "ledger.Apply",
		"user_id", req.UserID,
		"operation_id", req.OperationID,
		"direction", req.Direction,
		"category", req.Category,
		"amount", req.Amount,
	)
	log.Debug("🟢 [START] Applying transaction")

	ctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()

	var (
		out *outcome
		err error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err = s.attempt(ctx, req, completing, log)
		if !errors.Is(err, errLostRace) {
			break
		}
		log.Info("🔁 [RETRY] Record finished concurrently, re-reading", "attempt", attempt)
	}
	if errors.Is(err, errLostRace) {
		err = fmt.Errorf("%w: %w", credit.ErrStorageFailure, err)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, credit.ErrStorageFailure) {
			err = fmt.Errorf("%w: %w", credit.ErrStorageFailure, err)
		}
		switch {
		case errors.Is(err, credit.ErrDuplicateOperation):
			log.Warn("⚠️ [CONFLICT] Operation id reused with different parameters")
		case errors.Is(err, credit.ErrInvalidState):
			log.Warn("⚠️ [CONFLICT] Operation id belongs to a pending payment")
		default:
			log.Error("❌ [ERROR] Transaction failed", "error", err)
		}
		s.metrics.ObserveApply(string(req.Direction), string(req.Category), metrics.OutcomeError, time.Since(start))
		if credit.IsRetryable(err) {
			// Nothing was committed; the user is asked to try again.
			s.emit(context.WithoutCancel(ctx), log, events.TransactionRejected{
				OperationID: req.OperationID,
				UserID:      req.UserID,
				Amount:      req.Amount,
				Category:    req.Category,
				Reason:      credit.ReasonStorageFailure,
			})
		}
		return nil, err
	}

	// Side effects run only after commit.
	switch {
	case out.rejected:
		s.metrics.ObserveApply(string(req.Direction), string(req.Category), metrics.OutcomeRejected, time.Since(start))
		if !out.replayed {
			log.Info("🚫 [REJECTED] Insufficient funds", "balance", out.balance)
			s.emit(ctx, log, events.TransactionRejected{
				OperationID: req.OperationID,
				UserID:      req.UserID,
				Amount:      req.Amount,
				Category:    req.Category,
				Reason:      out.tx.FailureReason,
			})
		} else {
			log.Info("🔁 [SKIP] Replaying recorded rejection")
		}
		return nil, out.err

	case out.replayed:
		s.metrics.ObserveApply(string(req.Direction), string(req.Category), metrics.OutcomeReplayed, time.Since(start))
		log.Info("🔁 [SKIP] Operation already completed", "transaction_id", out.tx.ID)

	default:
		s.metrics.ObserveApply(string(req.Direction), string(req.Category), metrics.OutcomeCompleted, time.Since(start))
		if out.tx.Bypass {
			log.Warn("⚠️ [BYPASS] Balance floor bypassed", "new_balance", out.balance)
		}
		log.Info("✅ [SUCCESS] Transaction completed", "transaction_id", out.tx.ID, "new_balance", out.balance)
		s.emit(ctx, log, events.BalanceChanged{
			TransactionID: out.tx.ID,
			OperationID:   out.tx.OperationID,
			UserID:        out.tx.UserID,
			Amount:        out.tx.Amount,
			Direction:     out.tx.Direction,
			Category:      out.tx.Category,
			NewBalance:    out.balance,
		})
	}

	res := &Result{
		TransactionID: out.tx.ID,
		OperationID:   out.tx.OperationID,
		Status:        credit.StatusCompleted,
		NewBalance:    out.balance,
		Replayed:      out.replayed,
	}
	if out.tx.Direction == credit.Credit && out.tx.Category == credit.CategorySubscriptionPurchase {
		// Re-invoked on replay so a previously failed extension heals.
		res.SubscriptionErr = s.extendSubscription(ctx, log, out.tx)
	}
	return res, nil
}

// outcome is what one database transaction decided.
type outcome struct {
	tx       *credit.Transaction
	balance  money.Amount
	replayed bool
	rejected bool
	err      error
}

func (s *Service) attempt(ctx context.Context, req ApplyRequest, completing bool, log *slog.Logger) (*outcome, error) {
	var out *outcome
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		txRepo := uow.TransactionRepository()
		candidate := s.newTransaction(req)

		existing, err := txRepo.Find(ctx, req.UserID, req.OperationID)
		if err != nil {
			return err
		}
		if existing == nil && completing {
			return credit.ErrNotFound
		}
		if existing == nil {
			inserted, err := txRepo.InsertIfAbsent(ctx, candidate)
			if err != nil {
				return err
			}
			if inserted {
				existing = candidate
			} else {
				// A concurrent caller won the insert; judge against its row.
				existing, err = txRepo.Find(ctx, req.UserID, req.OperationID)
				if err != nil {
					return err
				}
				if existing == nil {
					// The conflict was on another unique key, e.g. an invoice reference.
					return credit.ErrDuplicateOperation
				}
			}
		}

		if existing != candidate {
			if !existing.SameOperation(candidate) {
				return credit.ErrDuplicateOperation
			}
			switch existing.Status {
			case credit.StatusCompleted:
				out = &outcome{tx: existing, replayed: true}
				if existing.BalanceAfter != nil {
					out.balance = *existing.BalanceAfter
				}
				return nil
			case credit.StatusFailed:
				out = &outcome{tx: existing, replayed: true, rejected: true, err: replayError(existing)}
				return nil
			}
			if !completing {
				return fmt.Errorf("%w: operation %s is awaiting its payment", credit.ErrInvalidState, existing.OperationID)
			}
		}

		var floor *money.Amount
		if existing.Direction == credit.Debit && !existing.Bypass {
			zero := money.Amount(0)
			floor = &zero
		}
		balance, ok, err := uow.BalanceRepository().ConditionalAdjust(ctx, existing.UserID, existing.Delta(), floor)
		if err != nil {
			return err
		}

		if !ok {
			updated, err := txRepo.UpdateStatus(ctx, existing.UserID, existing.OperationID, credit.StatusPending,
				transaction.StatusUpdate{
					Status:        credit.StatusFailed,
					FailureReason: credit.ReasonInsufficientFunds,
				})
			if err != nil {
				return err
			}
			if !updated {
				return errLostRace
			}
			existing.Status = credit.StatusFailed
			existing.FailureReason = credit.ReasonInsufficientFunds
			out = &outcome{
				tx:       existing,
				balance:  balance,
				rejected: true,
				err: fmt.Errorf("%w: balance %s, requested %s", credit.ErrInsufficientFunds,
					balance.Format(money.CRD), existing.Amount.Format(money.CRD)),
			}
			return nil
		}

		completedAt := s.now()
		updated, err := txRepo.UpdateStatus(ctx, existing.UserID, existing.OperationID, credit.StatusPending,
			transaction.StatusUpdate{
				Status:       credit.StatusCompleted,
				BalanceAfter: &balance,
				CompletedAt:  &completedAt,
				External:     req.Metadata.External,
			})
		if err != nil {
			return err
		}
		if !updated {
			return errLostRace
		}
		existing.Status = credit.StatusCompleted
		existing.BalanceAfter = &balance
		existing.CompletedAt = &completedAt
		out = &outcome{tx: existing, balance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: no outcome recorded", credit.ErrStorageFailure)
	}
	return out, nil
}

func (s *Service) newTransaction(req ApplyRequest) *credit.Transaction {
	return &credit.Transaction{
		ID:          uuid.New(),
		OperationID: req.OperationID,
		UserID:      req.UserID,
		Amount:      req.Amount,
		Direction:   req.Direction,
		Currency:    money.CRD,
		Status:      credit.StatusPending,
		Category:    req.Category,
		Description: req.Description,
		Bypass:      req.Bypass,
		Metadata:    req.Metadata,
		CreatedAt:   s.now(),
	}
}

func (s *Service) extendSubscription(ctx context.Context, log *slog.Logger, tx *credit.Transaction) error {
	if s.extender == nil {
		return nil
	}
	tier := tx.Metadata.SubscriptionTier
	if tier == "" {
		log.Warn("⚠️ Subscription purchase without a tier", "transaction_id", tx.ID)
		return credit.ErrUnknownTier
	}
	sub, err := s.extender.Extend(ctx, tx.UserID, tier, tx.ID)
	if err != nil {
		log.Error("❌ [ERROR] Subscription extension failed", "tier", tier, "error", err)
		return err
	}
	log.Info("✅ [SUCCESS] Subscription extended", "tier", sub.Tier, "valid_until", sub.ValidUntil)
	return nil
}

func (s *Service) emit(ctx context.Context, log *slog.Logger, e eventbus.Event) {
	if s.bus == nil {
		return
	}
	log.Debug("📤 [EMIT] Emitting event", "event_type", e.Type())
	if err := s.bus.Emit(ctx, e); err != nil {
		log.Error("❌ [ERROR] Failed to emit event", "event_type", e.Type(), "error", err)
	}
}

// Find returns the user's transaction for operationID or credit.ErrNotFound.
func (s *Service) Find(ctx context.Context, userID int64, operationID string) (*credit.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()
	tx, err := s.uow.TransactionRepository().Find(ctx, userID, operationID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, credit.ErrNotFound
	}
	return tx, nil
}

// History returns the user's most recent transactions, newest first.
func (s *Service) History(ctx context.Context, userID int64, limit int) ([]*credit.Transaction, error) {
	if limit <= 0 || (s.cfg.HistoryLimit > 0 && limit > s.cfg.HistoryLimit) {
		limit = s.cfg.HistoryLimit
	}
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StorageTimeout)
	defer cancel()
	return s.uow.TransactionRepository().ListByUser(ctx, userID, limit)
}

func validate(req ApplyRequest) error {
	switch {
	case strings.TrimSpace(req.OperationID) == "" || len(req.OperationID) > MaxOperationIDLength:
		return fmt.Errorf("%w: operation id must be 1-%d characters", credit.ErrInvalidRequest, MaxOperationIDLength)
	case req.UserID <= 0:
		return fmt.Errorf("%w: user id must be positive", credit.ErrInvalidRequest)
	case !req.Amount.IsPositive():
		return credit.ErrInvalidAmount
	case !req.Direction.IsValid():
		return fmt.Errorf("%w: unknown direction %q", credit.ErrInvalidRequest, req.Direction)
	case req.Category == "":
		return fmt.Errorf("%w: category is required", credit.ErrInvalidRequest)
	}
	return nil
}

func replayError(tx *credit.Transaction) error {
	if tx.FailureReason == credit.ReasonInsufficientFunds {
		return credit.ErrInsufficientFunds
	}
	return fmt.Errorf("%w: operation failed earlier (%s)", credit.ErrInvalidState, tx.FailureReason)
}
