package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

func completionWith(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func TestAISearch_Fetch(t *testing.T) {
	const drafts = `Here are the recent disasters:
[
  {
    "title": "Severe flooding in Jakarta",
    "description": "Monsoon rains flood the capital. Thousands evacuated.",
    "location": "Jakarta, Indonesia",
    "category": "FLOOD",
    "date": "2026-08-26",
    "source": "Reuters"
  },
  {
    "title": "",
    "description": "malformed entry without a title"
  }
]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(completionWith(drafts)))
	}))
	defer srv.Close()

	s := NewAISearch(srv.URL, "test-key", "gpt-4o-mini", 5*time.Second)
	records, err := s.Fetch(context.Background(), time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 1, "untitled drafts must be dropped")

	r := records[0]
	assert.Equal(t, "ai-search", r.SourceID)
	assert.Equal(t, domain.SourceTypeAI, r.SourceType)
	assert.Equal(t, domain.CategoryFlood, r.CategoryHint)
	assert.Equal(t, "Jakarta, Indonesia", r.LocationText)
	assert.Equal(t, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), r.Timestamp)
}

func TestAISearch_Fetch_NoJSONArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(completionWith("I could not find any disasters.")))
	}))
	defer srv.Close()

	s := NewAISearch(srv.URL, "test-key", "gpt-4o-mini", 5*time.Second)
	_, err := s.Fetch(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAIUnavailable))
}

func TestAISearch_Fetch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewAISearch(srv.URL, "test-key", "gpt-4o-mini", 5*time.Second)
	_, err := s.Fetch(context.Background(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAIUnavailable))
}
