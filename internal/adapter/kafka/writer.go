// Package kafka publishes committed canonical events to a downstream topic
// for ledger consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// Writer produces canonical disaster events to a Kafka topic. It implements
// engine.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured events topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes and publishes the cycle's committed events in a single
// WriteMessages call. Messages are keyed by event ID, so consumers see
// updates to one event in order.
func (w *Writer) Publish(ctx context.Context, events []domain.DisasterEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.logger.Debug("events published", "count", len(events))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a DisasterEvent into a Kafka message.
func serializeToMessage(event domain.DisasterEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize disaster event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "severity", Value: []byte(event.Severity.String())},
			{Key: "last_updated_at", Value: []byte(event.LastUpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
