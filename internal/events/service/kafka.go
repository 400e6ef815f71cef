package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/corvusHold/changenotify/internal/events/domain"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// DefaultPublishTimeout bounds one Publish call, retries included.
const DefaultPublishTimeout = 2 * time.Second

// Kafka publishes events as JSON messages keyed by subject, so events about
// one record stay ordered within a partition.
type Kafka struct {
	w       messageWriter
	timeout time.Duration
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			// WriteMessages returns once the batch flushes.
			BatchTimeout: 5 * time.Millisecond,
			WriteTimeout: DefaultPublishTimeout,
			MaxAttempts:  3,
		},
		timeout: DefaultPublishTimeout,
	}
}

func (k *Kafka) Publish(ctx context.Context, e domain.Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}
	if err := k.w.WriteMessages(ctx, kafka.Message{Key: []byte(e.Subject), Value: msg}); err != nil {
		return fmt.Errorf("write event %s: %w", e.Type, err)
	}
	return nil
}

func (k *Kafka) Close() error { return k.w.Close() }

// Multi publishes to every publisher and returns the first error.
type Multi []domain.Publisher

func (m Multi) Publish(ctx context.Context, e domain.Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
