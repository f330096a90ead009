// Package initializer builds the infrastructure behind the application from
// configuration.
package initializer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirasaad/creditcore/infra"
	"github.com/amirasaad/creditcore/infra/cache"
	infraeventbus "github.com/amirasaad/creditcore/infra/eventbus"
	"github.com/amirasaad/creditcore/infra/migrations"
	"github.com/amirasaad/creditcore/infra/notifier"
	"github.com/amirasaad/creditcore/infra/provider/platformpay"
	"github.com/amirasaad/creditcore/infra/provider/stripepayment"
	infrarepository "github.com/amirasaad/creditcore/infra/repository"
	"github.com/amirasaad/creditcore/pkg/app"
	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/metrics"
	"github.com/amirasaad/creditcore/pkg/notification"
	provider "github.com/amirasaad/creditcore/pkg/provider/payment"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// InitializeDependencies initializes all the application dependencies.
// On error, anything already opened is released.
func InitializeDependencies(cfg *config.App) (deps *app.Deps, err error) {
	logger := setupLogger(cfg.Log)
	deps = &app.Deps{Logger: logger}
	defer func() {
		if err != nil {
			for _, fn := range deps.Cleanup {
				_ = fn()
			}
			deps = nil
		}
	}()

	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return deps, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return deps, err
	}
	deps.Cleanup = append(deps.Cleanup, sqlDB.Close)
	if err = migrate(db, cfg.DB, logger); err != nil {
		return deps, err
	}
	deps.Uow = infrarepository.NewUoW(db)
	deps.EventBus = infraeventbus.NewWithMemory(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if deps.Metrics, err = metrics.New("creditcore", reg); err != nil {
		return deps, err
	}
	deps.Gatherer = reg

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		if rdb, err = newRedisClient(cfg.Redis); err != nil {
			return deps, err
		}
		deps.Cleanup = append(deps.Cleanup, rdb.Close)
		deps.Invalidator = cache.NewRedisInvalidator(rdb, cfg.Redis.KeyPrefix+cfg.BalanceCache.InvalidationChannel, logger)
	}

	deps.Dispatcher, err = newDispatcher(cfg, rdb, logger, &deps.Cleanup)
	if err != nil {
		return deps, err
	}
	deps.Gateways = newGateways(cfg.Payment, logger)
	return deps, nil
}

func migrate(db *gorm.DB, cfg *config.DB, logger *slog.Logger) error {
	if !cfg.Migrate {
		return nil
	}
	if infra.IsPostgresURL(cfg.Url) {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := migrations.Up(sqlDB); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	} else if err := infrarepository.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logger.Info("✅ Database schema up to date")
	return nil
}

func newRedisClient(cfg *config.Redis) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.PoolSize = cfg.PoolSize
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// newDispatcher always logs notices and adds the configured outbound channels.
func newDispatcher(
	cfg *config.App,
	rdb *redis.Client,
	logger *slog.Logger,
	cleanup *[]func() error,
) (notification.Dispatcher, error) {
	multi := notifier.Multi{notifier.NewLog(logger)}
	if rdb != nil && cfg.Notify.RedisStream != "" {
		multi = append(multi, notifier.NewRedis(rdb, cfg.Redis.KeyPrefix+cfg.Notify.RedisStream, 10000))
	}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		k, err := notifier.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		if err != nil {
			return nil, err
		}
		*cleanup = append(*cleanup, k.Close)
		multi = append(multi, k)
	}
	if len(multi) == 1 {
		return multi[0], nil
	}
	return multi, nil
}

// newGateways returns the rails that have credentials configured.
func newGateways(cfg *config.Payment, logger *slog.Logger) []provider.Gateway {
	var gateways []provider.Gateway
	if cfg.Stripe != nil && cfg.Stripe.ApiKey != "" {
		gateways = append(gateways, stripepayment.New(cfg.Stripe, logger))
	} else {
		logger.Warn("⚠️ Card payments disabled: PAYMENT_STRIPE_API_KEY not set")
	}
	if cfg.Platform != nil && cfg.Platform.Secret != "" {
		gateways = append(gateways, platformpay.New(cfg.Platform, logger))
	} else {
		logger.Warn("⚠️ Platform payments disabled: PAYMENT_PLATFORM_SECRET not set")
	}
	return gateways
}
