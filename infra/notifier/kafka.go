package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/amirasaad/creditcore/pkg/notification"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes notices to a Kafka topic keyed by user id, so a
// user's notices stay ordered within a partition.
type KafkaDispatcher struct {
	writer messageWriter
}

// NewKafka creates a KafkaDispatcher for topic on brokers.
func NewKafka(brokers []string, topic string) (*KafkaDispatcher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier: brokers are required")
	}
	return &KafkaDispatcher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
	}}, nil
}

func (d *KafkaDispatcher) NotifySuccess(ctx context.Context, n notification.SuccessNotice) error {
	return d.publish(ctx, "success", n.UserID, n)
}

func (d *KafkaDispatcher) NotifyFailure(ctx context.Context, n notification.FailureNotice) error {
	return d.publish(ctx, "failure", n.UserID, n)
}

func (d *KafkaDispatcher) publish(ctx context.Context, kind string, userID int64, notice any) error {
	value, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("kafka notifier: marshal: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(strconv.FormatInt(userID, 10)),
		Value:   value,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(kind)}},
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka notifier: publish failed: %w", err)
	}
	return nil
}

// Close flushes pending writes.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

var _ notification.Dispatcher = (*KafkaDispatcher)(nil)
