package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/eventbus"
	"github.com/amirasaad/creditcore/pkg/metrics"
	"github.com/amirasaad/creditcore/pkg/money"
	"github.com/amirasaad/creditcore/pkg/notification"
	provider "github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/amirasaad/creditcore/pkg/repository"
	"github.com/amirasaad/creditcore/pkg/service/balance"
	"github.com/amirasaad/creditcore/pkg/service/ledger"
	"github.com/amirasaad/creditcore/pkg/service/payment"
	"github.com/amirasaad/creditcore/pkg/service/refund"
	"github.com/amirasaad/creditcore/pkg/service/subscription"
	"github.com/prometheus/client_golang/prometheus"
)

// CacheInvalidator spreads balance-cache invalidations to other instances.
type CacheInvalidator interface {
	Publish(ctx context.Context, userID int64) error
	Listen(ctx context.Context, onInvalidate func(userID int64)) error
}

// Deps contains the infrastructure the services are built on.
type Deps struct {
	Uow         repository.UnitOfWork
	EventBus    eventbus.Bus
	Gateways    []provider.Gateway
	Dispatcher  notification.Dispatcher
	Invalidator CacheInvalidator
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger
	Cleanup     []func() error
}

// App wires the services together.
type App struct {
	Deps                *Deps
	Config              *config.App
	LedgerService       *ledger.Service
	PaymentService      *payment.Service
	RefundService       *refund.Service
	BalanceService      *balance.Service
	SubscriptionService *subscription.Service
	Sweeper             *payment.Sweeper
}

// New builds the services from deps and cfg and registers their event handlers.
func New(deps *Deps, cfg *config.App) (*App, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	rates, err := money.ParseRates(cfg.DisplayRates)
	if err != nil {
		return nil, fmt.Errorf("display rates: %w", err)
	}

	app := &App{Deps: deps, Config: cfg}
	app.SubscriptionService = subscription.New(deps.Uow, cfg.SubscriptionTiers, deps.Logger)
	app.LedgerService = ledger.New(ledger.Deps{
		Uow:      deps.Uow,
		Bus:      deps.EventBus,
		Extender: app.SubscriptionService,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
		Config:   cfg.Ledger,
	})
	app.RefundService = refund.New(app.LedgerService, deps.Metrics, deps.Logger)
	app.BalanceService = balance.New(balance.Deps{
		Uow:       deps.Uow,
		Converter: money.NewDisplayConverter(rates),
		Metrics:   deps.Metrics,
		Logger:    deps.Logger,
		CacheTTL:  cfg.BalanceCache.TTL,
		CacheSize: cfg.BalanceCache.Size,
		Timeout:   cfg.Ledger.StorageTimeout,
	})
	app.PaymentService = payment.New(payment.Deps{
		Uow:      deps.Uow,
		Ledger:   app.LedgerService,
		Gateways: deps.Gateways,
		Bus:      deps.EventBus,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
		Config:   cfg.Payment,
		KnownTier: func(tier string) bool {
			_, ok := app.SubscriptionService.Period(tier)
			return ok
		},
	})
	app.Sweeper, err = payment.NewSweeper(app.PaymentService, cfg.Payment.SweepSchedule, cfg.Ledger.StorageTimeout*10, deps.Logger)
	if err != nil {
		return nil, err
	}

	app.setupEventBus()
	return app, nil
}

// Start runs the background workers until ctx is done.
func (a *App) Start(ctx context.Context) error {
	if a.Deps.Invalidator != nil {
		if err := a.Deps.Invalidator.Listen(ctx, a.BalanceService.Invalidate); err != nil {
			return err
		}
	}
	a.Sweeper.Start(ctx)
	return nil
}

// Close stops the workers and releases infrastructure.
func (a *App) Close() error {
	a.Sweeper.Stop()
	var firstErr error
	for _, fn := range a.Deps.Cleanup {
		if err := fn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
