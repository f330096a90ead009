// Package subscription resolves subscription tiers from completed purchases.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/amirasaad/creditcore/pkg/domain/credit"
	"github.com/amirasaad/creditcore/pkg/repository"
	"github.com/google/uuid"
)

const maxAttempts = 3

var errCreatedConcurrently = errors.New("subscription: created concurrently")

// Service creates and extends subscriptions. It implements ledger.SubscriptionExtender.
type Service struct {
	uow    repository.UnitOfWork
	tiers  map[string]time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service for the configured tier periods.
func New(uow repository.UnitOfWork, tiers map[string]time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		uow:    uow,
		tiers:  maps.Clone(tiers),
		logger: logger.With("service", "subscription"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Extend applies the purchase recorded by transactionID. Applying the same
// transaction twice returns the current subscription unchanged.
func (s *Service) Extend(
	ctx context.Context,
	userID int64,
	tier string,
	transactionID uuid.UUID,
) (*credit.Subscription, error) {
	period, ok := s.tiers[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", credit.ErrUnknownTier, tier)
	}
	log := s.logger.With("user_id", userID, "tier", tier, "transaction_id", transactionID)

	var (
		sub *credit.Subscription
		err error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sub, err = s.extend(ctx, log, userID, tier, period, transactionID)
		if !errors.Is(err, errCreatedConcurrently) {
			break
		}
		log.Info("🔁 [RETRY] Subscription created concurrently, re-reading", "attempt", attempt)
	}
	if errors.Is(err, errCreatedConcurrently) {
		err = fmt.Errorf("%w: %w", credit.ErrStorageFailure, err)
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// extend runs one read-modify-write with the subscription row locked. A
// user's first purchase has no row to lock, so its insert must win the
// unique key or the attempt is repeated against the winner's row.
func (s *Service) extend(
	ctx context.Context,
	log *slog.Logger,
	userID int64,
	tier string,
	period time.Duration,
	transactionID uuid.UUID,
) (*credit.Subscription, error) {
	var sub *credit.Subscription
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo := uow.SubscriptionRepository()
		current, err := repo.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if current == nil {
			fresh := &credit.Subscription{UserID: userID}
			fresh.Extend(tier, period, transactionID, s.now())
			inserted, err := repo.Insert(ctx, fresh)
			if err != nil {
				return err
			}
			if !inserted {
				return errCreatedConcurrently
			}
			sub = fresh
			return nil
		}
		if current.HasApplied(transactionID) {
			log.Info("🔁 [SKIP] Purchase already applied")
			sub = current
			return nil
		}
		current.Extend(tier, period, transactionID, s.now())
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		sub = current
		return nil
	})
	return sub, err
}

// Current returns the user's subscription or credit.ErrNotFound.
func (s *Service) Current(ctx context.Context, userID int64) (*credit.Subscription, error) {
	sub, err := s.uow.SubscriptionRepository().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, credit.ErrNotFound
	}
	return sub, nil
}

// Period returns the configured duration of tier.
func (s *Service) Period(tier string) (time.Duration, bool) {
	d, ok := s.tiers[tier]
	return d, ok
}
