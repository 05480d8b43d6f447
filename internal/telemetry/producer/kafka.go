package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"trustcore/internal/audit/domain"
)

// writeTimeout bounds a single Kafka write so a slow broker does not block callers.
const writeTimeout = 5 * time.Second

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements Producer using segmentio/kafka-go. Events and alerts
// share one topic and are told apart by the "kind" header.
type KafkaProducer struct {
	writer messageWriter
	topic  string
}

// NewKafkaProducer creates a producer writing to topic. It returns nil when
// brokers or topic are empty, and a nil producer drops everything.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
		},
		topic: topic,
	}
}

// WriteEvent publishes e keyed by subject, so one subject's events stay ordered
// within a partition.
func (p *KafkaProducer) WriteEvent(ctx context.Context, e *domain.Event) error {
	if p == nil || e == nil {
		return nil
	}
	return p.publish(ctx, KindEvent, e.Subject, e)
}

// Notify publishes a keyed by alert type.
func (p *KafkaProducer) Notify(ctx context.Context, a *domain.Alert) error {
	if p == nil || a == nil {
		return nil
	}
	return p.publish(ctx, KindAlert, string(a.Type), a)
}

func (p *KafkaProducer) publish(ctx context.Context, kind, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: HeaderKind, Value: []byte(kind)}},
	})
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

var _ Producer = (*KafkaProducer)(nil)
