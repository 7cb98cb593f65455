package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"parley/pkg/domain"
)

// KafkaSink wraps an inner sink and mirrors every appended notification onto
// a kafka topic so downstream consumers (email, push, analytics) can react.
// The local append is authoritative; a produce failure is logged and the
// notification still stands.
type KafkaSink struct {
	inner  Sink
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink dials the brokers and returns a publishing sink.
func NewKafkaSink(inner Sink, brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if inner == nil {
		return nil, fmt.Errorf("notification: inner sink is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("notification: topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("dial kafka: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &KafkaSink{inner: inner, client: client, topic: topic, logger: logger}, nil
}

func (s *KafkaSink) Append(ctx context.Context, n *Notification) error {
	if err := s.inner.Append(ctx, n); err != nil {
		return err
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(n.UserID.String()),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("notification publish failed",
				"notification_id", n.ID, "user_id", n.UserID, "error", err)
		}
	})
	return nil
}

func (s *KafkaSink) ListByUser(ctx context.Context, userID domain.UserID) ([]*Notification, error) {
	return s.inner.ListByUser(ctx, userID)
}

// Close flushes buffered records and releases the client.
func (s *KafkaSink) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	s.client.Close()
	return nil
}
