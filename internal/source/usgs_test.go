package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

const usgsFixture = `{
  "features": [
    {
      "id": "us7000abcd",
      "properties": {
        "mag": 6.2,
        "place": "72 km ESE of Namie, Japan",
        "time": 1756300800000,
        "url": "https://earthquake.usgs.gov/earthquakes/eventpage/us7000abcd",
        "title": "M 6.2 - 72 km ESE of Namie, Japan"
      },
      "geometry": {"coordinates": [141.9, 37.5, 42.0]}
    },
    {
      "id": "us7000tiny",
      "properties": {
        "mag": 2.1,
        "place": "5 km N of Somewhere",
        "time": 1756300800000,
        "title": "M 2.1 - 5 km N of Somewhere"
      },
      "geometry": {"coordinates": [10.0, 20.0, 5.0]}
    }
  ]
}`

func TestUSGS_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "crisis-aggregator/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(usgsFixture))
	}))
	defer srv.Close()

	s := NewUSGS([]string{srv.URL}, 4.0, srv.Client())
	records, err := s.Fetch(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1, "below-floor magnitude must be dropped")

	r := records[0]
	assert.Equal(t, "usgs", r.SourceID)
	assert.Equal(t, domain.SourceTypeAPI, r.SourceType)
	assert.Equal(t, domain.CategoryEarthquake, r.CategoryHint)
	assert.True(t, r.HasCoords)
	assert.Equal(t, 37.5, r.Lat)
	assert.Equal(t, 141.9, r.Lon)
	assert.Equal(t, 6.2, r.Magnitude)
	assert.Equal(t, "72 km ESE of Namie, Japan", r.LocationText)
	assert.Equal(t, time.UnixMilli(1756300800000).UTC(), r.Timestamp)
}

func TestUSGS_Fetch_SinceFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(usgsFixture))
	}))
	defer srv.Close()

	s := NewUSGS([]string{srv.URL}, 4.0, srv.Client())
	records, err := s.Fetch(context.Background(), time.UnixMilli(1756300800000).Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestUSGS_Fetch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewUSGS([]string{srv.URL}, 4.0, srv.Client())
	_, err := s.Fetch(context.Background(), time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
