package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// aggregation engine.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec // labels: outcome={committed,skipped,failed}
	CycleDuration prometheus.Histogram
	CycleRunning  prometheus.Gauge

	// Source fan-out metrics.
	SourceFetches   *prometheus.CounterVec // labels: source, outcome={ok,error,timeout}
	SourceRecords   *prometheus.CounterVec // labels: source
	SourceDurations *prometheus.HistogramVec

	// Enrichment metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={resolved,fallback,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	AIEnhancements  *prometheus.CounterVec // labels: outcome={applied,skipped,error}

	// Deduplication metrics.
	ClusterSize    prometheus.Histogram
	MergedRecords  prometheus.Counter
	EventsUpserted *prometheus.CounterVec // labels: kind={created,updated}

	// Store metrics.
	StoreEvents    *prometheus.GaugeVec // labels: state
	SnapshotWrites *prometheus.CounterVec
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal, m.CycleDuration, m.CycleRunning,
		m.SourceFetches, m.SourceRecords, m.SourceDurations,
		m.GeocodeRequests, m.GeocodeCache, m.AIEnhancements,
		m.ClusterSize, m.MergedRecords, m.EventsUpserted,
		m.StoreEvents, m.SnapshotWrites,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	const ns = "crisis_agg"
	return &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cycles_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of a complete refresh cycle.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		CycleRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "cycle_running",
			Help:      "1 while a refresh cycle holds write authority.",
		}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "source_fetches_total",
			Help:      "Source adapter fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "source_records_total",
			Help:      "Raw records produced per source.",
		}, []string{"source"}),
		SourceDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "source_fetch_duration_seconds",
			Help:      "Source adapter fetch duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"source"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "geocode_requests_total",
			Help:      "Geocode resolutions by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		AIEnhancements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ai_enhancements_total",
			Help:      "AI classification enhancement attempts by outcome.",
		}, []string{"outcome"}),
		ClusterSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "dedup_cluster_size",
			Help:      "Number of raw records folded into each canonical event.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		}),
		MergedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "dedup_merged_records_total",
			Help:      "Raw records absorbed into an existing cluster.",
		}),
		EventsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "events_upserted_total",
			Help:      "Canonical events written by kind.",
		}, []string{"kind"}),
		StoreEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "store_events",
			Help:      "Events held by the cache store, by lifecycle state.",
		}, []string{"state"}),
		SnapshotWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "snapshot_writes_total",
			Help:      "Snapshot persistence attempts by outcome.",
		}, []string{"outcome"}),
	}
}
