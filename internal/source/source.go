// Package source holds the adapters that pull disaster mentions from
// external systems. Each adapter maps its upstream format into RawRecord and
// nothing else; cleaning, geocoding, and classification happen downstream.
//
// Adapters must tolerate upstream failure: a fetch error is returned as-is
// and the collector decides how the cycle degrades.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

const userAgent = "crisis-aggregator/1.0"

// Source is one upstream system the collector fans out to.
type Source interface {
	// Name identifies the source in logs, metrics, and provenance.
	Name() string

	// Type reports the source family, which drives reliability weighting.
	Type() domain.SourceType

	// Fetch returns all records the source currently reports that are newer
	// than since. A non-nil error means the source produced nothing usable
	// this cycle; partial results are never returned alongside an error.
	Fetch(ctx context.Context, since time.Time) ([]domain.RawRecord, error)
}

// getJSON issues a GET with the shared User-Agent and decodes the response
// body into dst.
func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
