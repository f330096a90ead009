// notify_tail follows the notification topic and prints each notice, to check
// a local Kafka setup end to end.
// Usage: go run ./scripts/notify_tail
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/amirasaad/creditcore/pkg/config"
	"github.com/amirasaad/creditcore/pkg/notification"
	"github.com/segmentio/kafka-go"
)

// describe renders a notification message published by the Kafka notifier.
func describe(msg kafka.Message) (string, error) {
	kind := ""
	for _, h := range msg.Headers {
		if h.Key == "kind" {
			kind = string(h.Value)
		}
	}
	switch kind {
	case "success":
		var n notification.SuccessNotice
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ user=%d op=%s %s", n.UserID, n.OperationID, n.Message), nil
	case "failure":
		var n notification.FailureNotice
		if err := json.Unmarshal(msg.Value, &n); err != nil {
			return "", err
		}
		return fmt.Sprintf("🚫 user=%d ref=%s reason=%s %s", n.UserID, n.Reference, n.Reason, n.Message), nil
	}
	return "", fmt.Errorf("unknown notice kind %q", kind)
}

func ensureTopic(ctx context.Context, broker, topic string) error {
	dialer := &kafka.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial %s: %w", broker, err)
	}
	defer func() { _ = conn.Close() }()
	err = conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	brokers := cfg.Notify.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	groupID := os.Getenv("GROUP_ID")
	if groupID == "" {
		groupID = "creditcore-notify-tail"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := ensureTopic(ctx, brokers[0], cfg.Notify.KafkaTopic); err != nil {
		return err
	}
	logger.Info("topic ready", "topic", cfg.Notify.KafkaTopic, "group", groupID)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       cfg.Notify.KafkaTopic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
	})
	defer func() { _ = r.Close() }()

	for {
		msg, err := r.FetchMessage(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		line, err := describe(msg)
		if err != nil {
			logger.Warn("undecodable notice", "offset", msg.Offset, "error", err)
		} else {
			fmt.Println(line)
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			logger.Warn("commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := run(logger); err != nil {
		logger.Error("notify tail failed", "error", err)
		os.Exit(1)
	}
}
