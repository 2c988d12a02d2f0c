package domain

import "time"

// SourceType groups sources by family. Corroboration bonuses count distinct
// source types, not individual sources, so two news feeds covering the same
// story corroborate less than a news feed plus a seismic API.
type SourceType string

const (
	SourceTypeAPI  SourceType = "api"  // structured feeds: USGS, ReliefWeb, GDACS
	SourceTypeFeed SourceType = "feed" // syndicated RSS/Atom news
	SourceTypeAI   SourceType = "ai"   // free-text AI search results
)

// RawRecord is one source mention of a possible disaster, exactly as the
// adapter produced it. It lives only for the pipeline run that fetched it.
type RawRecord struct {
	SourceID     string
	SourceType   SourceType
	FetchedAt    time.Time
	Title        string
	Body         string
	LocationText string
	Timestamp    time.Time // zero when the source reported no time
	CategoryHint Category  // empty when the source carries no typed category
	Reference    string    // URL or source-native identifier

	// Coordinates and magnitude, when the source reports them directly
	// (USGS does; news feeds do not).
	Lat       float64
	Lon       float64
	HasCoords bool
	Magnitude float64
}

// Key returns a stable per-record identity used to canonicalize processing
// order. Two fetches of the same source item produce the same key.
func (r RawRecord) Key() string {
	if r.Reference != "" {
		return r.SourceID + "|" + r.Reference
	}
	return r.SourceID + "|" + r.Title
}

// Candidate is a raw record after normalization, geocoding, and
// classification, ready for cross-source deduplication.
type Candidate struct {
	Raw RawRecord

	Title         string   // cleaned title
	TitleTokens   []string // normalized, deduplicated, sorted
	Observed      time.Time
	TimeEstimated bool // true when Observed fell back to fetch time

	LocationCandidates []string // location texts to try, best first
	Location           Location

	Category   Category
	Severity   Severity
	Confidence int  // [0,100]
	Ambiguous  bool // rule confidence below the ambiguity threshold

	// When the AI enhancer overrode the rule stage, the rule result is kept
	// here and lands in provenance for audit.
	RuleOverridden bool
	RuleCategory   Category
	RuleSeverity   Severity
	RuleConfidence int

	AffectedPopulation int // 0 = unknown
}
