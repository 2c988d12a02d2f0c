package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "html tags", in: "<p>Flooding in <b>Jakarta</b></p>", want: "Flooding in Jakarta"},
		{name: "html entities", in: "Earthquake &amp; tsunami warning", want: "Earthquake & tsunami warning"},
		{name: "urls stripped", in: "Details at https://example.com/report now", want: "Details at now"},
		{name: "whitespace squeezed", in: "  Severe \n\t storm   warning ", want: "Severe storm warning"},
		{name: "plain text untouched", in: "M6.2 earthquake hits Honshu", want: "M6.2 earthquake hits Honshu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestRecord_ReportedTimestamp(t *testing.T) {
	reported := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	cand := Record(domain.RawRecord{
		SourceID:  "usgs",
		Title:     "M6.2 earthquake hits Honshu",
		Timestamp: reported,
		FetchedAt: reported.Add(time.Hour),
	})

	assert.Equal(t, reported, cand.Observed)
	assert.False(t, cand.TimeEstimated)
	assert.Equal(t, []string{"earthquake", "honshu"}, cand.TitleTokens)
}

func TestRecord_MissingTimestampFallsBackToFetchTime(t *testing.T) {
	fetched := time.Date(2026, 8, 27, 14, 0, 0, 0, time.UTC)
	cand := Record(domain.RawRecord{
		SourceID:  "news",
		Title:     "Flooding reported",
		FetchedAt: fetched,
	})

	assert.Equal(t, fetched, cand.Observed)
	assert.True(t, cand.TimeEstimated)
}

func TestLocationCandidates(t *testing.T) {
	cands := locationCandidates(domain.RawRecord{
		LocationText: "72 km ESE of Namie, Japan",
		Title:        "Strong earthquake shakes buildings in Sendai",
		Body:         "tremors were felt across Fukushima, Japan on Thursday.",
	})

	require.NotEmpty(t, cands)
	assert.Equal(t, "Namie, Japan", cands[0], "source location text comes first, distance prefix stripped")
	assert.Contains(t, cands, "Fukushima, Japan")
	assert.Contains(t, cands, "Sendai")
}

func TestLocationCandidates_Dedupes(t *testing.T) {
	cands := locationCandidates(domain.RawRecord{
		LocationText: "Jakarta, Indonesia",
		Title:        "Floods in Jakarta, Indonesia",
	})

	count := 0
	for _, c := range cands {
		if c == "Jakarta, Indonesia" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtractAffectedPopulation(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "evacuations", text: "12,000 people evacuated from coastal areas", want: 12000},
		{name: "casualties", text: "at least 34 killed and 120 injured", want: 120},
		{name: "no count", text: "severe flooding continues", want: 0},
		{name: "largest wins", text: "3 dead, 45,000 residents displaced", want: 45000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractAffectedPopulation(tt.text))
		})
	}
}
