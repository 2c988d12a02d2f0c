package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crisis-aggregator/internal/classify"
	"github.com/couchcryptid/crisis-aggregator/internal/collector"
	"github.com/couchcryptid/crisis-aggregator/internal/dedup"
	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/geocode"
	"github.com/couchcryptid/crisis-aggregator/internal/observability"
	"github.com/couchcryptid/crisis-aggregator/internal/source"
	"github.com/couchcryptid/crisis-aggregator/internal/store"
)

var cycleStart = time.Date(2026, 8, 27, 15, 0, 0, 0, time.UTC)

type stubSource struct {
	name    string
	stype   domain.SourceType
	records []domain.RawRecord
	delay   time.Duration
}

func (s *stubSource) Name() string            { return s.name }
func (s *stubSource) Type() domain.SourceType { return s.stype }

func (s *stubSource) Fetch(ctx context.Context, _ time.Time) ([]domain.RawRecord, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.records, nil
}

// honshuSources returns a structured reading and a news mention of the same
// earthquake, one with exact coordinates and one that only the gazetteer
// can place.
func honshuSources() []source.Source {
	usgs := &stubSource{
		name:  "usgs",
		stype: domain.SourceTypeAPI,
		records: []domain.RawRecord{{
			SourceID:     "usgs",
			SourceType:   domain.SourceTypeAPI,
			FetchedAt:    cycleStart,
			Title:        "M6.2 earthquake hits Honshu",
			Body:         "72 km ESE of Namie, Japan",
			LocationText: "72 km ESE of Namie, Japan",
			Timestamp:    cycleStart.Add(-2 * time.Hour),
			CategoryHint: domain.CategoryEarthquake,
			Reference:    "https://earthquake.usgs.gov/us7000abcd",
			Lat:          37.5,
			Lon:          141.9,
			HasCoords:    true,
			Magnitude:    6.2,
		}},
	}
	news := &stubSource{
		name:  "news",
		stype: domain.SourceTypeFeed,
		records: []domain.RawRecord{{
			SourceID:   "news",
			SourceType: domain.SourceTypeFeed,
			FetchedAt:  cycleStart,
			Title:      "Japan quake injures dozens near Honshu",
			Body:       "Rescue teams respond after the tremor near Honshu.",
			Timestamp:  cycleStart.Add(-time.Hour),
			Reference:  "https://news.example.com/jp-quake",
		}},
	}
	return []source.Source{usgs, news}
}

func testEngine(t *testing.T, sources []source.Source) (*Engine, *store.Store) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	clock := clockwork.NewFakeClockAt(cycleStart)

	rules, err := classify.Load("")
	require.NoError(t, err)

	st := store.New(store.Options{
		SnapshotPath:    filepath.Join(t.TempDir(), "events_snapshot.json"),
		StalenessWindow: 24 * time.Hour,
		ArchiveWindow:   72 * time.Hour,
		RetentionWindow: 720 * time.Hour,
	}, clock, metrics, logger)

	eng := New(
		collector.New(sources, 2*time.Second, metrics, logger),
		geocode.NewFallbackGeocoder(nil, logger),
		classify.New(rules, classify.Options{
			AmbiguityThreshold: 50,
			FallbackGeoPenalty: 15,
			SourceWeightAPI:    0.95,
			SourceWeightFeed:   0.75,
			SourceWeightAI:     0.60,
		}, nil, metrics, logger),
		dedup.New(dedup.Options{
			Threshold:          0.55,
			TitleWeight:        0.40,
			GeoWeight:          0.35,
			TimeWeight:         0.25,
			MergeRadiusKM:      150,
			MergeTimeWindow:    6 * time.Hour,
			GeohashPrecision:   3,
			TimeBucket:         6 * time.Hour,
			CorroborationBonus: 10,
		}),
		st,
		nil,
		Options{
			RefreshInterval: 10 * time.Minute,
			CycleTimeout:    10 * time.Second,
			SweepInterval:   10 * time.Minute,
			EnrichWorkers:   4,
		},
		clock, metrics, logger,
	)
	return eng, st
}

func TestEngine_Refresh_MergesCrossSourceMentions(t *testing.T) {
	eng, st := testEngine(t, honshuSources())

	assert.False(t, eng.Ready())
	require.NoError(t, eng.Refresh(context.Background()))
	assert.True(t, eng.Ready())

	events := st.Search(store.Filter{})
	require.Len(t, events, 1, "both mentions describe one earthquake")

	ev := events[0]
	assert.Equal(t, domain.CategoryEarthquake, ev.Category)
	assert.Equal(t, domain.SeverityHigh, ev.Severity)
	assert.Equal(t, domain.PrecisionExact, ev.Location.Precision)
	assert.Equal(t, 6.2, ev.Magnitude)
	assert.Len(t, ev.Provenance, 2)
	assert.ElementsMatch(t,
		[]domain.SourceType{domain.SourceTypeAPI, domain.SourceTypeFeed},
		ev.SourceTypes())

	// Exact reading at 95 plus one corroborating source type.
	assert.Equal(t, 100, ev.ConfidenceScore)
	assert.Equal(t, cycleStart.Add(-2*time.Hour), ev.TimestampObserved)
}

func TestEngine_Refresh_Idempotent(t *testing.T) {
	eng, st := testEngine(t, honshuSources())

	require.NoError(t, eng.Refresh(context.Background()))
	first := st.Search(store.Filter{})
	require.Len(t, first, 1)

	require.NoError(t, eng.Refresh(context.Background()))
	second := st.Search(store.Filter{})
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "reprocessing must not mint a new identity")
	assert.Equal(t, first[0].TimestampIngested, second[0].TimestampIngested)
	assert.Equal(t, domain.LifecycleActive, second[0].LifecycleState)
}

func TestEngine_Refresh_SingleWriteAuthority(t *testing.T) {
	slow := &stubSource{
		name:  "slow",
		stype: domain.SourceTypeAPI,
		delay: 300 * time.Millisecond,
		records: []domain.RawRecord{{
			SourceID: "slow", SourceType: domain.SourceTypeAPI,
			FetchedAt: cycleStart, Title: "Earthquake strikes Chile",
			Timestamp: cycleStart, Reference: "ref-1",
		}},
	}
	eng, _ := testEngine(t, []source.Source{slow})

	done := make(chan error, 1)
	go func() { done <- eng.Refresh(context.Background()) }()

	// Give the first cycle time to claim write authority.
	time.Sleep(50 * time.Millisecond)
	err := eng.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)

	require.NoError(t, <-done)
}

func TestEngine_Refresh_UnresolvableLocationStays(t *testing.T) {
	vague := &stubSource{
		name:  "news",
		stype: domain.SourceTypeFeed,
		records: []domain.RawRecord{{
			SourceID: "news", SourceType: domain.SourceTypeFeed,
			FetchedAt: cycleStart,
			Title:     "Severe storm damages buildings",
			Body:      "High winds tore through the area overnight.",
			Timestamp: cycleStart, Reference: "ref-storm",
		}},
	}
	eng, st := testEngine(t, []source.Source{vague})

	require.NoError(t, eng.Refresh(context.Background()))
	events := st.Search(store.Filter{})
	require.Len(t, events, 1)
	assert.Equal(t, domain.PrecisionNone, events[0].Location.Precision)
}
