package classify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		AmbiguityThreshold: 50,
		FallbackGeoPenalty: 15,
		SourceWeightAPI:    0.95,
		SourceWeightFeed:   0.75,
		SourceWeightAI:     0.60,
	}
}

func testClassifier(t *testing.T, enhancer Enhancer) *Classifier {
	t.Helper()
	rules, err := Load("")
	require.NoError(t, err)
	return New(rules, testOptions(), enhancer, observability.NewMetricsForTesting(), testLogger())
}

// stubEnhancer returns a fixed estimate or error and records invocations.
type stubEnhancer struct {
	estimate Estimate
	err      error
	calls    int
}

func (s *stubEnhancer) Classify(_ context.Context, _ string) (Estimate, error) {
	s.calls++
	return s.estimate, s.err
}

func TestClassify_CategoryHintWinsOutright(t *testing.T) {
	c := testClassifier(t, nil)

	cand := c.Classify(context.Background(), domain.Candidate{
		Title: "Unusual readings reported offshore",
		Raw: domain.RawRecord{
			CategoryHint: domain.CategoryTsunami,
			SourceType:   domain.SourceTypeAPI,
		},
	})

	assert.Equal(t, domain.CategoryTsunami, cand.Category)
	assert.False(t, cand.Ambiguous)
	assert.Equal(t, 95, cand.Confidence, "full-strength hint weighted by API reliability")
}

func TestClassify_KeywordCategories(t *testing.T) {
	c := testClassifier(t, nil)

	tests := []struct {
		title string
		want  domain.Category
	}{
		{title: "Earthquake aftershock rattles region", want: domain.CategoryEarthquake},
		{title: "Wildfire burns through forest, blaze uncontained", want: domain.CategoryWildfire},
		{title: "Typhoon approaches coast", want: domain.CategoryTyphoon},
		{title: "Cholera outbreak spreads in camps", want: domain.CategoryEpidemic},
		{title: "Quarterly earnings beat expectations", want: domain.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			cand := c.Classify(context.Background(), domain.Candidate{
				Title: tt.title,
				Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
			})
			assert.Equal(t, tt.want, cand.Category)
		})
	}
}

func TestClassify_SeveritySignals(t *testing.T) {
	c := testClassifier(t, nil)

	tests := []struct {
		name string
		cand domain.Candidate
		want domain.Severity
	}{
		{
			name: "reported magnitude above critical threshold",
			cand: domain.Candidate{
				Title: "Earthquake offshore",
				Raw:   domain.RawRecord{Magnitude: 7.4, SourceType: domain.SourceTypeAPI},
			},
			want: domain.SeverityCritical,
		},
		{
			name: "magnitude parsed from text",
			cand: domain.Candidate{
				Title: "M6.2 earthquake shakes coastal towns",
				Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
			},
			want: domain.SeverityHigh,
		},
		{
			name: "casualty count",
			cand: domain.Candidate{
				Title:              "Flooding continues",
				AffectedPopulation: 12000,
				Raw:                domain.RawRecord{SourceType: domain.SourceTypeFeed},
			},
			want: domain.SeverityCritical,
		},
		{
			name: "small affected count",
			cand: domain.Candidate{
				Title:              "Flooding continues",
				AffectedPopulation: 40,
				Raw:                domain.RawRecord{SourceType: domain.SourceTypeFeed},
			},
			want: domain.SeverityMedium,
		},
		{
			name: "severity keyword tier",
			cand: domain.Candidate{
				Title: "Devastating landslide buries village",
				Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
			},
			want: domain.SeverityCritical,
		},
		{
			name: "pandemic floor",
			cand: domain.Candidate{
				Title: "Pandemic response enters new phase",
				Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
			},
			want: domain.SeverityHigh,
		},
		{
			name: "no signals",
			cand: domain.Candidate{
				Title: "Flood waters recede",
				Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
			},
			want: domain.SeverityLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(context.Background(), tt.cand)
			assert.Equal(t, tt.want, got.Severity)
		})
	}
}

func TestClassify_FallbackLocationPenalty(t *testing.T) {
	c := testClassifier(t, nil)

	exact := c.Classify(context.Background(), domain.Candidate{
		Title: "Earthquake aftershock rattles region",
		Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
	})
	fallback := c.Classify(context.Background(), domain.Candidate{
		Title:    "Earthquake aftershock rattles region",
		Location: domain.Location{Precision: domain.PrecisionCountry, IsFallback: true},
		Raw:      domain.RawRecord{SourceType: domain.SourceTypeFeed},
	})

	assert.Equal(t, exact.Confidence-15, fallback.Confidence)
}

func TestClassify_SourceWeighting(t *testing.T) {
	c := testClassifier(t, nil)

	confFor := func(st domain.SourceType) int {
		return c.Classify(context.Background(), domain.Candidate{
			Title: "Earthquake aftershock rattles region",
			Raw:   domain.RawRecord{SourceType: st},
		}).Confidence
	}

	api := confFor(domain.SourceTypeAPI)
	feed := confFor(domain.SourceTypeFeed)
	ai := confFor(domain.SourceTypeAI)

	assert.Greater(t, api, feed)
	assert.Greater(t, feed, ai)
}

func TestClassify_AmbiguousTriggersEnhancer(t *testing.T) {
	enhancer := &stubEnhancer{estimate: Estimate{
		Category:   domain.CategoryCivilUnrest,
		Severity:   domain.SeverityHigh,
		Confidence: 80,
	}}
	c := testClassifier(t, enhancer)

	cand := c.Classify(context.Background(), domain.Candidate{
		Title: "Situation deteriorates in the capital",
		Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
	})

	assert.Equal(t, 1, enhancer.calls)
	assert.Equal(t, domain.CategoryCivilUnrest, cand.Category)
	assert.Equal(t, domain.SeverityHigh, cand.Severity)
	assert.False(t, cand.Ambiguous)

	// The overridden rule result stays on the candidate for provenance.
	assert.True(t, cand.RuleOverridden)
	assert.Equal(t, domain.CategoryOther, cand.RuleCategory)
	assert.Equal(t, domain.SeverityLow, cand.RuleSeverity)
}

func TestClassify_ConfidentRecordSkipsEnhancer(t *testing.T) {
	enhancer := &stubEnhancer{}
	c := testClassifier(t, enhancer)

	c.Classify(context.Background(), domain.Candidate{
		Title: "Earthquake aftershock rattles region",
		Raw:   domain.RawRecord{SourceType: domain.SourceTypeAPI, CategoryHint: domain.CategoryEarthquake},
	})

	assert.Equal(t, 0, enhancer.calls)
}

func TestClassify_EnhancerFailureKeepsRuleResult(t *testing.T) {
	enhancer := &stubEnhancer{err: errors.New("upstream timeout")}
	c := testClassifier(t, enhancer)

	cand := c.Classify(context.Background(), domain.Candidate{
		Title: "Situation deteriorates in the capital",
		Raw:   domain.RawRecord{SourceType: domain.SourceTypeFeed},
	})

	assert.Equal(t, 1, enhancer.calls)
	assert.Equal(t, domain.CategoryOther, cand.Category)
	assert.True(t, cand.Ambiguous)
	assert.False(t, cand.RuleOverridden)
}

func TestExtractMagnitude(t *testing.T) {
	tests := []struct {
		name     string
		reported float64
		text     string
		want     float64
	}{
		{name: "reported wins", reported: 6.8, text: "magnitude 5.0 quake", want: 6.8},
		{name: "magnitude word", text: "a magnitude 7.1 earthquake struck", want: 7.1},
		{name: "m prefix", text: "m6.2 earthquake shakes coastal towns", want: 6.2},
		{name: "implausible value ignored", text: "magnitude 66 winds", want: 0},
		{name: "no magnitude", text: "flooding in the delta", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, extractMagnitude(tt.reported, tt.text), 1e-9)
		})
	}
}
