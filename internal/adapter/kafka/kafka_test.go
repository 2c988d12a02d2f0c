package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

func TestSerializeToMessage(t *testing.T) {
	updated := time.Date(2026, 8, 27, 15, 10, 0, 0, time.UTC)
	event := domain.DisasterEvent{
		ID:            "earthquake-1a2b3c4d5e6f7a8b",
		Title:         "M6.2 earthquake hits Honshu",
		Category:      domain.CategoryEarthquake,
		Severity:      domain.SeverityHigh,
		Location:      domain.Location{Lat: 37.5, Lon: 141.9, Precision: domain.PrecisionExact},
		LastUpdatedAt: updated,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("earthquake-1a2b3c4d5e6f7a8b"), msg.Key)
	assert.Contains(t, string(msg.Value), `"category":"EARTHQUAKE"`)
	assert.Contains(t, string(msg.Value), `"severity":"HIGH"`)

	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "category", msg.Headers[0].Key)
	assert.Equal(t, []byte("EARTHQUAKE"), msg.Headers[0].Value)
	assert.Equal(t, "severity", msg.Headers[1].Key)
	assert.Equal(t, []byte("HIGH"), msg.Headers[1].Value)
	assert.Equal(t, "last_updated_at", msg.Headers[2].Key)
	assert.Equal(t, []byte(updated.Format(time.RFC3339)), msg.Headers[2].Value)
}
