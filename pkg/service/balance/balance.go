// Package balance serves balance reads for display. Reads go through a short
// TTL cache that is dropped on every committed change; the transaction
// processor never reads from here.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/events"
	"github.com/amirasaad/creditcore/pkg/eventbus"
	"github.com/amirasaad/creditcore/pkg/metrics"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/repository"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

// Deps holds the collaborators of the Service.
type Deps struct {
	Uow       repository.UnitOfWork
	Converter *money.DisplayConverter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	CacheTTL  time.Duration
	CacheSize int
	Timeout   time.Duration
}

// Reconciliation compares the materialized balance with the transaction log.
type Reconciliation struct {
	UserID       int64        `json:"user_id"`
	Materialized money.Amount `json:"materialized"`
	Derived      money.Amount `json:"derived"`
	Drift        money.Amount `json:"drift"`
}

// InSync reports whether both sources agree.
func (r *Reconciliation) InSync() bool {
	return r.Drift == 0
}

// Display is a balance rendered in a real-money currency.
type Display struct {
	Credits  money.Amount    `json:"credits"`
	Currency money.Code      `json:"currency"`
	Value    decimal.Decimal `json:"value"`
}

// Service is the balance reader.
type Service struct {
	uow       repository.UnitOfWork
	cache     *expirable.LRU[int64, money.Amount]
	converter *money.DisplayConverter
	metrics   *metrics.Metrics
	logger    *slog.Logger
	timeout   time.Duration
}

// New creates a Service.
func New(deps Deps) *Service {
	if deps.CacheTTL <= 0 {
		deps.CacheTTL = 5 * time.Second
	}
	if deps.CacheSize <= 0 {
		deps.CacheSize = 10000
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 3 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		uow:       deps.Uow,
		cache:     expirable.NewLRU[int64, money.Amount](deps.CacheSize, nil, deps.CacheTTL),
		converter: deps.Converter,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("service", "balance"),
		timeout:   deps.Timeout,
	}
}

// GetBalance returns the user's spendable balance, possibly cached.
func (s *Service) GetBalance(ctx context.Context, userID int64) (money.Amount, error) {
	if b, ok := s.cache.Get(userID); ok {
		s.metrics.CacheLookup(true)
		return b, nil
	}
	s.metrics.CacheLookup(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	b, err := s.uow.BalanceRepository().Read(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.cache.Add(userID, b)
	return b, nil
}

// Invalidate drops the cached balance of userID.
func (s *Service) Invalidate(userID int64) {
	s.cache.Remove(userID)
}

// HandleBalanceChanged is the event bus hook that keeps the cache coherent.
func (s *Service) HandleBalanceChanged(_ context.Context, e eventbus.Event) error {
	changed, ok := e.(events.BalanceChanged)
	if !ok {
		return fmt.Errorf("balance: unexpected event %T", e)
	}
	s.Invalidate(changed.UserID)
	return nil
}

// Reconcile recomputes the balance from COMPLETED transactions. The
// transaction log wins; drift is reported, not repaired.
func (s *Service) Reconcile(ctx context.Context, userID int64) (*Reconciliation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rec *Reconciliation
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		materialized, err := uow.BalanceRepository().Read(ctx, userID)
		if err != nil {
			return err
		}
		derived, err := uow.TransactionRepository().SumCompleted(ctx, userID)
		if err != nil {
			return err
		}
		rec = &Reconciliation{
			UserID:       userID,
			Materialized: materialized,
			Derived:      derived,
			Drift:        materialized - derived,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !rec.InSync() {
		s.metrics.BalanceDrift()
		s.logger.Warn("⚠️ [DRIFT] Balance column disagrees with transaction log",
			"user_id", userID, "materialized", rec.Materialized, "derived", rec.Derived)
	}
	return rec, nil
}

// Display converts the balance into code using static display rates.
func (s *Service) Display(ctx context.Context, userID int64, code money.Code) (*Display, error) {
	b, err := s.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.converter == nil {
		return nil, money.ErrRateUnavailable
	}
	v, err := s.converter.Convert(b, code)
	if err != nil {
		return nil, err
	}
	return &Display{Credits: b, Currency: code, Value: v}, nil
}
