package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/amirasaad/creditcore/pkg/notification"
	"github.com/redis/go-redis/v9"
)

// streamAdder is the part of the redis client the dispatcher needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisDispatcher appends notices to a Redis stream read by the ops channel.
type RedisDispatcher struct {
	client streamAdder
	stream string
	maxLen int64
}

// NewRedis creates a RedisDispatcher writing to stream, trimmed to about
// maxLen entries when maxLen is positive.
func NewRedis(client redis.UniversalClient, stream string, maxLen int64) *RedisDispatcher {
	return &RedisDispatcher{client: client, stream: stream, maxLen: maxLen}
}

func (d *RedisDispatcher) NotifySuccess(ctx context.Context, n notification.SuccessNotice) error {
	return d.add(ctx, "success", n.UserID, n)
}

func (d *RedisDispatcher) NotifyFailure(ctx context.Context, n notification.FailureNotice) error {
	return d.add(ctx, "failure", n.UserID, n)
}

func (d *RedisDispatcher) add(ctx context.Context, kind string, userID int64, notice any) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("redis notifier: marshal: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"kind":    kind,
			"user_id": strconv.FormatInt(userID, 10),
			"payload": payload,
		},
	}
	if d.maxLen > 0 {
		args.MaxLen = d.maxLen
		args.Approx = true
	}
	if err := d.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis notifier: xadd %s: %w", d.stream, err)
	}
	return nil
}

var _ notification.Dispatcher = (*RedisDispatcher)(nil)
