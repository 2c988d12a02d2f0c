// Package geocode resolves free-form location text to coordinates.
//
// The resolution chain is client -> LRU cache -> fallback: an HTTP geocoding
// provider wrapped by an in-memory cache keyed on normalized location text,
// with a country-centroid gazetteer behind it so that a provider outage or an
// unresolvable place name degrades precision instead of dropping the record.
package geocode

import (
	"context"
	"strings"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// Result is a resolved position.
type Result struct {
	Lat        float64
	Lon        float64
	Name       string // resolved display name, may differ from the query
	Precision  domain.LocationPrecision
	IsFallback bool
}

// Geocoder resolves location text to coordinates. Implementations return
// domain.ErrGeocodeNotFound when the text cannot be resolved at their
// precision level.
type Geocoder interface {
	Resolve(ctx context.Context, locationText string) (Result, error)
}

// NormalizeKey canonicalizes location text for cache keys and comparisons.
func NormalizeKey(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
