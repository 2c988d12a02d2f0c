package store

import (
	"sort"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// ExportEvent is the flattened downstream payload. Field order is part of
// the contract: consumers diff exports byte for byte, so fields marshal in
// exactly this order and events sort by ID.
type ExportEvent struct {
	ID                string                   `json:"id"`
	Title             string                   `json:"title"`
	Location          ExportLocation           `json:"location"`
	Category          domain.Category          `json:"category"`
	Severity          domain.Severity          `json:"severity"`
	TimestampObserved time.Time                `json:"timestampObserved"`
	ConfidenceScore   int                      `json:"confidenceScore"`
	Provenance        []domain.ProvenanceEntry `json:"provenance"`
}

type ExportLocation struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Export returns every committed event in the fixed downstream shape,
// sorted by ID. Lifecycle is a query-side concern: ledger consumers diff
// the full canonical set, so stale and archived events stay in until
// retention drops them.
func (s *Store) Export() []ExportEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ExportEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ExportEvent{
			ID:                ev.ID,
			Title:             ev.Title,
			Location:          ExportLocation{Lat: ev.Location.Lat, Lon: ev.Location.Lon},
			Category:          ev.Category,
			Severity:          ev.Severity,
			TimestampObserved: ev.TimestampObserved,
			ConfidenceScore:   ev.ConfidenceScore,
			Provenance:        ev.Provenance,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
