package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// USGS pulls earthquakes from the USGS GeoJSON summary feeds. Records carry
// exact epicenter coordinates and a reported magnitude, so they skip
// geocoding entirely.
type USGS struct {
	feedURLs     []string
	minMagnitude float64
	httpClient   *http.Client
}

func NewUSGS(feedURLs []string, minMagnitude float64, client *http.Client) *USGS {
	return &USGS{feedURLs: feedURLs, minMagnitude: minMagnitude, httpClient: client}
}

func (s *USGS) Name() string            { return "usgs" }
func (s *USGS) Type() domain.SourceType { return domain.SourceTypeAPI }

// usgsFeed mirrors the GeoJSON summary format. Coordinates are [lon, lat,
// depth]; time is epoch milliseconds.
type usgsFeed struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Mag   float64 `json:"mag"`
			Place string  `json:"place"`
			Time  int64   `json:"time"`
			URL   string  `json:"url"`
			Title string  `json:"title"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Fetch reads every configured feed and returns the union of events at or
// above the magnitude floor. The significant and magnitude-filtered feeds
// overlap; duplicates survive here and fold together during deduplication.
func (s *USGS) Fetch(ctx context.Context, since time.Time) ([]domain.RawRecord, error) {
	fetchedAt := time.Now().UTC()
	var records []domain.RawRecord

	for _, url := range s.feedURLs {
		var feed usgsFeed
		if err := getJSON(ctx, s.httpClient, url, &feed); err != nil {
			return nil, err
		}

		for _, f := range feed.Features {
			if f.Properties.Mag < s.minMagnitude || len(f.Geometry.Coordinates) < 2 {
				continue
			}
			eventTime := time.UnixMilli(f.Properties.Time).UTC()
			if eventTime.Before(since) {
				continue
			}

			title := f.Properties.Title
			if title == "" {
				title = fmt.Sprintf("M %.1f - %s", f.Properties.Mag, f.Properties.Place)
			}

			records = append(records, domain.RawRecord{
				SourceID:     s.Name(),
				SourceType:   s.Type(),
				FetchedAt:    fetchedAt,
				Title:        title,
				Body:         f.Properties.Place,
				LocationText: f.Properties.Place,
				Timestamp:    eventTime,
				CategoryHint: domain.CategoryEarthquake,
				Reference:    firstNonEmpty(f.Properties.URL, f.ID),
				Lat:          f.Geometry.Coordinates[1],
				Lon:          f.Geometry.Coordinates[0],
				HasCoords:    true,
				Magnitude:    f.Properties.Mag,
			})
		}
	}
	return records, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
