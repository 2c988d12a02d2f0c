package domain

import (
	"errors"
	"fmt"
)

// SourceFetchError wraps a failure of one source adapter. It is isolated to
// that source: the collector logs it and continues with the remaining sources,
// and the failed source is retried on the next cycle.
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s: fetch failed: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

var (
	// ErrGeocodeNotFound signals that a location text could not be resolved.
	// Callers degrade to the country-centroid fallback; never fatal.
	ErrGeocodeNotFound = errors.New("geocode: location not found")

	// ErrAIUnavailable signals that the optional AI collaborator is not
	// configured or failed. The deterministic rule result stands.
	ErrAIUnavailable = errors.New("ai collaborator unavailable")

	// ErrCacheCorrupt signals an unreadable snapshot on load. The store starts
	// empty and the next refresh cycle rebuilds from a fresh fetch.
	ErrCacheCorrupt = errors.New("cache snapshot corrupt")

	// ErrCycleInProgress is returned when a refresh trigger fires while a
	// previous cycle still holds write authority. The trigger is skipped, not
	// queued.
	ErrCycleInProgress = errors.New("refresh cycle already in progress")
)
