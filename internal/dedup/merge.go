package dedup

import (
	"sort"
	"time"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

// Merged is a cluster resolved into its canonical event. MemberIDs carries
// the deterministic per-member identity hashes so the store can match the
// event against one committed in an earlier cycle, even when the cluster
// has since grown and its representative changed.
type Merged struct {
	Event     domain.DisasterEvent
	MemberIDs []string
}

// Merge resolves one cluster into its canonical event. Field conflicts
// resolve by fixed rules: category and severity follow the highest-confidence
// member, location is the centroid of the directly resolved positions, and
// the observed time is the earliest trustworthy one. Nothing is discarded
// silently; every member contributes a provenance entry carrying its own
// classification.
func (d *Deduper) Merge(cluster Cluster, now time.Time) Merged {
	rep := representative(cluster.Members)

	event := domain.DisasterEvent{
		ID:                d.memberID(rep),
		Title:             rep.Title,
		Category:          rep.Category,
		Severity:          rep.Severity,
		TimestampIngested: now.UTC(),
		LastUpdatedAt:     now.UTC(),
		LifecycleState:    domain.LifecycleNew,
	}

	event.Location = mergedLocation(cluster.Members, rep)
	event.TimestampObserved = earliestObserved(cluster.Members)

	for _, m := range cluster.Members {
		if m.Raw.Magnitude > event.Magnitude {
			event.Magnitude = m.Raw.Magnitude
		}
		if m.AffectedPopulation > event.AffectedPopulationEstimate {
			event.AffectedPopulationEstimate = m.AffectedPopulation
		}
	}

	event.Provenance = provenance(cluster.Members)
	event.ConfidenceScore = d.confidence(rep.Confidence, event)

	memberIDs := make([]string, 0, len(cluster.Members))
	for _, m := range cluster.Members {
		memberIDs = append(memberIDs, d.memberID(m))
	}
	sort.Strings(memberIDs)

	return Merged{Event: event, MemberIDs: memberIDs}
}

// MergeAll resolves every cluster.
func (d *Deduper) MergeAll(clusters []Cluster, now time.Time) []Merged {
	merged := make([]Merged, 0, len(clusters))
	for _, c := range clusters {
		merged = append(merged, d.Merge(c, now))
	}
	return merged
}

// memberID is the deterministic identity hash a candidate would produce as
// an event on its own.
func (d *Deduper) memberID(cand domain.Candidate) string {
	return domain.EventID(cand.Category, cand.TitleTokens,
		cand.Location.Lat, cand.Location.Lon, cand.Observed, d.opts.TimeBucket)
}

// representative is the member whose classification and title the canonical
// event inherits: highest confidence, then earliest observed, then lowest
// canonical key.
func representative(members []domain.Candidate) domain.Candidate {
	rep := members[0]
	for _, m := range members[1:] {
		switch {
		case m.Confidence > rep.Confidence:
			rep = m
		case m.Confidence == rep.Confidence && m.Observed.Before(rep.Observed):
			rep = m
		case m.Confidence == rep.Confidence && m.Observed.Equal(rep.Observed) &&
			m.Raw.Key() < rep.Raw.Key():
			rep = m
		}
	}
	return rep
}

// mergedLocation averages the coordinates of the directly resolved members;
// several independent readings place an event better than any single one.
// Precision and place text come from the most precise contributor. When
// every member fell back to a gazetteer centroid, the most precise fallback
// stands, ties going to the representative.
func mergedLocation(members []domain.Candidate, rep domain.Candidate) domain.Location {
	var latSum, lonSum float64
	resolved := 0
	var best domain.Location
	for _, m := range members {
		loc := m.Location
		if loc.IsFallback || loc.Precision == domain.PrecisionNone {
			continue
		}
		latSum += loc.Lat
		lonSum += loc.Lon
		resolved++
		if precisionRank(loc.Precision) > precisionRank(best.Precision) {
			best = loc
		}
	}
	if resolved > 0 {
		best.Lat = latSum / float64(resolved)
		best.Lon = lonSum / float64(resolved)
		return best
	}

	best = rep.Location
	for _, m := range members {
		if precisionRank(m.Location.Precision) > precisionRank(best.Precision) {
			best = m.Location
		}
	}
	return best
}

func precisionRank(p domain.LocationPrecision) int {
	switch p {
	case domain.PrecisionExact:
		return 3
	case domain.PrecisionPlace:
		return 2
	case domain.PrecisionCountry:
		return 1
	default:
		return 0
	}
}

// earliestObserved prefers the earliest source-reported timestamp; estimated
// timestamps only stand when no member reported a real one.
func earliestObserved(members []domain.Candidate) time.Time {
	var reported, estimated time.Time
	for _, m := range members {
		if m.TimeEstimated {
			if estimated.IsZero() || m.Observed.Before(estimated) {
				estimated = m.Observed
			}
			continue
		}
		if reported.IsZero() || m.Observed.Before(reported) {
			reported = m.Observed
		}
	}
	if !reported.IsZero() {
		return reported
	}
	return estimated
}

// provenance emits one entry per member, deduplicated by source and
// reference so re-fetching the same item twice in a cycle does not inflate
// corroboration. A member whose rule classification was overridden by the
// AI stage contributes a second entry preserving the rule result.
func provenance(members []domain.Candidate) []domain.ProvenanceEntry {
	seen := make(map[string]struct{}, len(members))
	entries := make([]domain.ProvenanceEntry, 0, len(members))

	for _, m := range members {
		if _, ok := seen[m.Raw.Key()]; ok {
			continue
		}
		seen[m.Raw.Key()] = struct{}{}

		entries = append(entries, domain.ProvenanceEntry{
			SourceID:     m.Raw.SourceID,
			SourceType:   m.Raw.SourceType,
			RawTimestamp: m.Observed,
			Reference:    m.Raw.Reference,
			Category:     m.Category,
			Severity:     m.Severity,
			Confidence:   m.Confidence,
		})

		if m.RuleOverridden {
			entries = append(entries, domain.ProvenanceEntry{
				SourceID:     m.Raw.SourceID + "#rule-stage",
				SourceType:   m.Raw.SourceType,
				RawTimestamp: m.Observed,
				Reference:    m.Raw.Reference,
				Category:     m.RuleCategory,
				Severity:     m.RuleSeverity,
				Confidence:   m.RuleConfidence,
			})
		}
	}
	return entries
}

// confidence starts from the representative's score and adds the
// corroboration bonus for each distinct source type beyond the first,
// capped at 100.
func (d *Deduper) confidence(base int, event domain.DisasterEvent) int {
	score := base + d.opts.CorroborationBonus*(len(event.SourceTypes())-1)
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
