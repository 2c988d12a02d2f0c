package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LifecycleState tracks how current an event is. Only the cache store moves
// events between states.
type LifecycleState string

const (
	LifecycleNew      LifecycleState = "NEW"
	LifecycleActive   LifecycleState = "ACTIVE"
	LifecycleStale    LifecycleState = "STALE"
	LifecycleArchived LifecycleState = "ARCHIVED"
)

// Live reports whether the state appears in default query results.
func (s LifecycleState) Live() bool {
	return s == LifecycleNew || s == LifecycleActive
}

// LocationPrecision describes how the coordinates were resolved.
type LocationPrecision string

const (
	PrecisionExact   LocationPrecision = "exact"   // source-reported coordinates
	PrecisionPlace   LocationPrecision = "place"   // geocoded city/locality
	PrecisionCountry LocationPrecision = "country" // gazetteer centroid fallback
	PrecisionNone    LocationPrecision = "none"    // unresolvable
)

// Location is a resolved position with its provenance quality.
type Location struct {
	Text       string            `json:"text"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Precision  LocationPrecision `json:"precision"`
	IsFallback bool              `json:"is_fallback"`
}

// ProvenanceEntry records one source's contribution to an event, including
// the classification that source implied. When merge resolution overrides a
// contributor's classification, the losing value stays here for audit.
type ProvenanceEntry struct {
	SourceID     string     `json:"source_id"`
	SourceType   SourceType `json:"source_type"`
	RawTimestamp time.Time  `json:"raw_timestamp"`
	Reference    string     `json:"reference,omitempty"`
	Category     Category   `json:"category"`
	Severity     Severity   `json:"severity"`
	Confidence   int        `json:"confidence"`
}

// DisasterEvent is the canonical merged record for one real-world disaster.
type DisasterEvent struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Category Category `json:"category"`
	Severity Severity `json:"severity"`

	Location Location `json:"location"`

	AffectedPopulationEstimate int     `json:"affected_population_estimate,omitempty"`
	Magnitude                  float64 `json:"magnitude,omitempty"`

	TimestampObserved time.Time `json:"timestamp_observed"`
	TimestampIngested time.Time `json:"timestamp_ingested"`
	LastUpdatedAt     time.Time `json:"last_updated_at"`

	ConfidenceScore int               `json:"confidence_score"`
	Provenance      []ProvenanceEntry `json:"provenance"`
	LifecycleState  LifecycleState    `json:"lifecycle_state"`
}

// SourceTypes returns the distinct source types present in provenance.
func (e DisasterEvent) SourceTypes() []SourceType {
	seen := make(map[SourceType]struct{}, 3)
	var types []SourceType
	for _, p := range e.Provenance {
		if _, ok := seen[p.SourceType]; ok {
			continue
		}
		seen[p.SourceType] = struct{}{}
		types = append(types, p.SourceType)
	}
	return types
}

// EventID produces the deterministic identity hash from the merge key:
// normalized title tokens, coordinates rounded to one decimal, and the time
// bucket. Reprocessing the same inputs yields the same ID; merges never
// recompute it.
func EventID(category Category, titleTokens []string, lat, lon float64, observed time.Time, bucket time.Duration) string {
	tokens := append([]string(nil), titleTokens...)
	sort.Strings(tokens)

	bucketStart := observed.UTC().Truncate(bucket)
	input := fmt.Sprintf("%s|%s|%.1f|%.1f|%d",
		category, strings.Join(tokens, " "), lat, lon, bucketStart.Unix())

	hash := sha256.Sum256([]byte(input))
	return category.Slug() + "-" + hex.EncodeToString(hash[:8])
}

// NormalizeTitleTokens lowercases, strips punctuation, removes stop words and
// bare numbers, and returns the sorted unique token set. Two headlines about
// the same event tend to share this token core even when phrasing differs.
func NormalizeTitleTokens(title string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(b.String()) {
		if len(tok) < 3 || isStopWord(tok) || isNumeric(tok) {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "near": {}, "after": {}, "amid": {},
	"from": {}, "with": {}, "into": {}, "over": {}, "under": {}, "hits": {},
	"strikes": {}, "kills": {}, "injures": {}, "dozens": {}, "hundreds": {},
	"thousands": {}, "people": {}, "reported": {}, "breaking": {}, "update": {},
	"magnitude": {}, "latest": {}, "news": {},
}

func isStopWord(tok string) bool {
	_, ok := stopWords[tok]
	return ok
}

func isNumeric(tok string) bool {
	for _, r := range tok {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
