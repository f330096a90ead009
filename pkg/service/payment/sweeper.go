package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer is what the Sweeper drives.
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically expires pending payments nobody called back for.
type Sweeper struct {
	cron     *cron.Cron
	expirer  Expirer
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	stopOnce sync.Once
}

// NewSweeper schedules expirer on schedule, which accepts five-field cron
// expressions and descriptors such as "@every 5m".
func NewSweeper(expirer Expirer, schedule string, timeout time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Sweeper{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		expirer: expirer,
		timeout: timeout,
		logger:  logger.With("handler", "payment.Sweeper"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(schedule, s.Run); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Run performs one sweep.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.expirer.ExpireStale(ctx, s.now())
	if err != nil {
		s.logger.Error("❌ [ERROR] Sweep failed", "expired", n, "error", err)
	}
}

// Start runs the schedule until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("⏰ [SWEEP] Sweeper started")
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop waits for a running sweep to finish. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.logger.Info("⏰ [SWEEP] Sweeper stopped")
	})
}
