// Package cache propagates balance-cache invalidations between instances.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisInvalidator broadcasts "user balance changed" over Redis pub/sub so
// every instance drops its cached copy, not only the one that committed.
type RedisInvalidator struct {
	client  redis.UniversalClient
	pub     publisher
	channel string
	logger  *slog.Logger
}

// NewRedisInvalidator creates a RedisInvalidator on channel.
func NewRedisInvalidator(client redis.UniversalClient, channel string, logger *slog.Logger) *RedisInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisInvalidator{
		client:  client,
		pub:     client,
		channel: channel,
		logger:  logger.With("component", "cache.invalidator", "channel", channel),
	}
}

// Publish announces that userID's balance changed.
func (i *RedisInvalidator) Publish(ctx context.Context, userID int64) error {
	if err := i.pub.Publish(ctx, i.channel, strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	return nil
}

// Listen subscribes to the channel and calls onInvalidate for every
// announcement until ctx is done. It returns once the subscription is
// confirmed.
func (i *RedisInvalidator) Listen(ctx context.Context, onInvalidate func(userID int64)) error {
	sub := i.client.Subscribe(ctx, i.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", i.channel, err)
	}
	i.logger.Info("🟢 [START] Listening for balance invalidations")

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				i.handle(msg, onInvalidate)
			}
		}
	}()
	return nil
}

func (i *RedisInvalidator) handle(msg *redis.Message, onInvalidate func(int64)) {
	userID, err := strconv.ParseInt(msg.Payload, 10, 64)
	if err != nil {
		i.logger.Warn("⚠️ Ignoring malformed invalidation", "payload", msg.Payload)
		return
	}
	onInvalidate(userID)
}
