// Package notifier holds the Dispatcher implementations.
package notifier

import (
	"context"
	"log/slog"

	"github.com/amirasaad/creditcore/pkg/notification"
)

// LogDispatcher writes notices to the application log.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLog creates a LogDispatcher.
func NewLog(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger.With("notifier", "log")}
}

func (d *LogDispatcher) NotifySuccess(_ context.Context, n notification.SuccessNotice) error {
	d.logger.Info("📤 [EMIT] Balance changed",
		"user_id", n.UserID,
		"operation_id", n.OperationID,
		"direction", n.Direction,
		"amount", n.Amount,
		"new_balance", n.NewBalance,
		"message", n.Message,
	)
	return nil
}

func (d *LogDispatcher) NotifyFailure(_ context.Context, n notification.FailureNotice) error {
	d.logger.Warn("📤 [EMIT] Operation failed",
		"user_id", n.UserID,
		"kind", n.Kind,
		"reason", n.Reason,
		"reference", n.Reference,
		"message", n.Message,
	)
	return nil
}

var _ notification.Dispatcher = (*LogDispatcher)(nil)
