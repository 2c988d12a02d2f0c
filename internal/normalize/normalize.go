// Package normalize maps raw source records into the clean candidate shape
// the enrichment stages work on. Pure per-record transformations: no network
// calls, no shared state, safe to run unboundedly in parallel.
package normalize

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

var (
	urlRe        = regexp.MustCompile(`https?://\S+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)

	// usgsPlaceRe strips the distance prefix from USGS place strings,
	// e.g. "72 km ESE of Namie, Japan" -> "Namie, Japan".
	usgsPlaceRe = regexp.MustCompile(`^\d+(?:\.\d+)?\s*km\s+[NSEW]{1,3}\s+of\s+`)

	// cityCountryRe matches "City, Country" style mentions.
	cityCountryRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*),\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`)

	// inNearRe matches "<Place> in|near <Place>" style mentions.
	inNearRe = regexp.MustCompile(`\b(?:in|near)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`)

	// peopleCountRe extracts casualty/displacement counts, e.g.
	// "12,000 people evacuated" or "34 killed".
	peopleCountRe = regexp.MustCompile(`(\d+(?:,\d+)*)\s+(?:people|persons|residents|evacuated|affected|displaced|dead|killed|casualties|injured|missing|wounded)`)
)

// Record produces a candidate from a raw record: cleaned title, normalized
// token set, location-text candidates, resolved timestamp, and a population
// estimate when the text mentions one. Geocoding and classification fill in
// the rest downstream.
func Record(raw domain.RawRecord) domain.Candidate {
	title := CleanText(raw.Title)

	observed, estimated := resolveTimestamp(raw)

	return domain.Candidate{
		Raw:                raw,
		Title:              title,
		TitleTokens:        domain.NormalizeTitleTokens(title),
		Observed:           observed,
		TimeEstimated:      estimated,
		LocationCandidates: locationCandidates(raw),
		AffectedPopulation: extractAffectedPopulation(title + " " + raw.Body),
	}
}

// CleanText strips HTML tags and entities, URLs, and squeezes whitespace.
func CleanText(s string) string {
	s = html.UnescapeString(s)
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = urlRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// resolveTimestamp prefers the source-reported time; otherwise the fetch time
// stands in, flagged as an estimate so dedup weighs it more loosely.
func resolveTimestamp(raw domain.RawRecord) (time.Time, bool) {
	if !raw.Timestamp.IsZero() {
		return raw.Timestamp.UTC(), false
	}
	return raw.FetchedAt.UTC(), true
}

// locationCandidates returns location texts to try geocoding, best first:
// the source-provided location text, then "City, Country" mentions, then
// "in/near <Place>" mentions from the title and body.
func locationCandidates(raw domain.RawRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(text string) {
		text = strings.TrimSpace(text)
		if len(text) < 3 || len(text) > 100 {
			return
		}
		key := strings.ToLower(text)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, text)
	}

	if raw.LocationText != "" {
		add(usgsPlaceRe.ReplaceAllString(raw.LocationText, ""))
	}

	text := CleanText(raw.Title + " " + raw.Body)
	for _, m := range cityCountryRe.FindAllStringSubmatch(text, 3) {
		add(m[1] + ", " + m[2])
	}
	for _, m := range inNearRe.FindAllStringSubmatch(text, 3) {
		add(m[1])
	}
	return out
}

// extractAffectedPopulation pulls the largest explicit people count from the
// text. Returns 0 when no count is mentioned.
func extractAffectedPopulation(text string) int {
	best := 0
	for _, m := range peopleCountRe.FindAllStringSubmatch(strings.ToLower(text), -1) {
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	return best
}
