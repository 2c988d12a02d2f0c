//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

const testEventsTopic = "test-disaster-events"

// publishedMessage holds a deserialized message read from the events topic.
type publishedMessage struct {
	Event   domain.DisasterEvent
	Key     string
	Headers map[string]string
}

// readPublished reads a single message from the consumer and deserializes it.
func readPublished(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from events topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.DisasterEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal event message")

	return publishedMessage{
		Event:   event,
		Key:     string(msg.Key),
		Headers: headers,
	}
}

// TestWriterPublish verifies that kafka.Writer round-trips canonical events
// through a real broker with the ID key and the routing headers intact.
func TestWriterPublish(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	updated := time.Date(2026, 8, 27, 15, 10, 0, 0, time.UTC)
	events := []domain.DisasterEvent{
		{
			ID:                "earthquake-1a2b3c4d5e6f7a8b",
			Title:             "M6.2 earthquake hits Honshu",
			Category:          domain.CategoryEarthquake,
			Severity:          domain.SeverityHigh,
			Location:          domain.Location{Text: "Honshu, Japan", Lat: 37.5, Lon: 141.9, Precision: domain.PrecisionExact},
			ConfidenceScore:   100,
			LifecycleState:    domain.LifecycleNew,
			TimestampObserved: updated.Add(-2 * time.Hour),
			LastUpdatedAt:     updated,
		},
		{
			ID:             "flood-9f8e7d6c5b4a3f2e",
			Title:          "Severe flooding in Jakarta",
			Category:       domain.CategoryFlood,
			Severity:       domain.SeverityCritical,
			Location:       domain.Location{Text: "Jakarta, Indonesia", Lat: -6.2, Lon: 106.8, Precision: domain.PrecisionPlace},
			LifecycleState: domain.LifecycleNew,
			LastUpdatedAt:  updated,
		},
	}

	writer := kafka.NewWriter([]string{broker}, testEventsTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	require.NoError(t, writer.Publish(ctx, events))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := make(map[string]publishedMessage, len(events))
	for len(received) < len(events) {
		pm := readPublished(ctx, t, consumer)
		received[pm.Key] = pm
	}

	quake, ok := received["earthquake-1a2b3c4d5e6f7a8b"]
	require.True(t, ok, "expected earthquake event on topic")
	assert.Equal(t, "EARTHQUAKE", quake.Headers["category"])
	assert.Equal(t, "HIGH", quake.Headers["severity"])
	assert.Equal(t, updated.Format(time.RFC3339), quake.Headers["last_updated_at"])
	assert.Equal(t, "M6.2 earthquake hits Honshu", quake.Event.Title)
	assert.Equal(t, domain.CategoryEarthquake, quake.Event.Category)
	assert.Equal(t, 100, quake.Event.ConfidenceScore)
	assert.InDelta(t, 37.5, quake.Event.Location.Lat, 1e-9)

	flood, ok := received["flood-9f8e7d6c5b4a3f2e"]
	require.True(t, ok, "expected flood event on topic")
	assert.Equal(t, "FLOOD", flood.Headers["category"])
	assert.Equal(t, "CRITICAL", flood.Headers["severity"])
	assert.Equal(t, domain.SeverityCritical, flood.Event.Severity)
}

// TestWriterPublishUpdatesKeepOrder verifies that successive updates to the
// same event land on one partition in publish order, keyed by event ID.
func TestWriterPublishUpdatesKeepOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testEventsTopic)

	writer := kafka.NewWriter([]string{broker}, testEventsTopic, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	base := domain.DisasterEvent{
		ID:             "wildfire-0011223344556677",
		Title:          "Wildfire near Athens",
		Category:       domain.CategoryWildfire,
		Severity:       domain.SeverityMedium,
		LifecycleState: domain.LifecycleNew,
		LastUpdatedAt:  time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, writer.Publish(ctx, []domain.DisasterEvent{base}))

	escalated := base
	escalated.Severity = domain.SeverityHigh
	escalated.LifecycleState = domain.LifecycleActive
	escalated.LastUpdatedAt = base.LastUpdatedAt.Add(time.Hour)
	require.NoError(t, writer.Publish(ctx, []domain.DisasterEvent{escalated}))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testEventsTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readPublished(ctx, t, consumer)
	second := readPublished(ctx, t, consumer)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, domain.SeverityMedium, first.Event.Severity)
	assert.Equal(t, domain.SeverityHigh, second.Event.Severity)
	assert.Equal(t, "HIGH", second.Headers["severity"])
	assert.Equal(t, domain.LifecycleActive, second.Event.LifecycleState)
}
