// Package engine drives the refresh loop: collect, enrich, deduplicate,
// commit. Exactly one cycle holds write authority at a time; the periodic
// ticker and the on-demand trigger contend for the same slot and the loser
// gets ErrCycleInProgress.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/crisis-aggregator/internal/classify"
	"github.com/couchcryptid/crisis-aggregator/internal/collector"
	"github.com/couchcryptid/crisis-aggregator/internal/dedup"
	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/geocode"
	"github.com/couchcryptid/crisis-aggregator/internal/normalize"
	"github.com/couchcryptid/crisis-aggregator/internal/observability"
	"github.com/couchcryptid/crisis-aggregator/internal/store"
)

// Publisher forwards committed events to a downstream ledger. Optional;
// a nil publisher disables publishing.
type Publisher interface {
	Publish(ctx context.Context, events []domain.DisasterEvent) error
}

// Options holds the engine scheduling knobs sourced from config.
type Options struct {
	RefreshInterval time.Duration
	CycleTimeout    time.Duration
	SweepInterval   time.Duration
	EnrichWorkers   int
}

// Engine owns the refresh and sweep loops.
type Engine struct {
	collector  *collector.Collector
	geocoder   geocode.Geocoder
	classifier *classify.Classifier
	deduper    *dedup.Deduper
	store      *store.Store
	publisher  Publisher

	opts    Options
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	cycleRunning atomic.Bool
	refreshed    atomic.Bool
}

func New(
	col *collector.Collector,
	geocoder geocode.Geocoder,
	classifier *classify.Classifier,
	deduper *dedup.Deduper,
	st *store.Store,
	publisher Publisher,
	opts Options,
	clock clockwork.Clock,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		collector:  col,
		geocoder:   geocoder,
		classifier: classifier,
		deduper:    deduper,
		store:      st,
		publisher:  publisher,
		opts:       opts,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Run drives the periodic refresh and sweep loops until ctx is canceled.
// One refresh runs immediately so the cache is warm before the first tick.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Refresh(ctx); err != nil {
		e.logger.Error("initial refresh failed", "error", err)
	}

	refreshTicker := e.clock.NewTicker(e.opts.RefreshInterval)
	defer refreshTicker.Stop()
	sweepTicker := e.clock.NewTicker(e.opts.SweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refreshTicker.Chan():
			if err := e.Refresh(ctx); err != nil && err != domain.ErrCycleInProgress {
				e.logger.Error("scheduled refresh failed", "error", err)
			}
		case <-sweepTicker.Chan():
			if err := e.store.Sweep(); err != nil {
				e.logger.Error("lifecycle sweep failed", "error", err)
			}
		}
	}
}

// Refresh runs one full cycle. Returns ErrCycleInProgress when another
// cycle already holds write authority.
func (e *Engine) Refresh(ctx context.Context) error {
	if !e.cycleRunning.CompareAndSwap(false, true) {
		return domain.ErrCycleInProgress
	}
	defer e.cycleRunning.Store(false)

	e.metrics.CycleRunning.Set(1)
	defer e.metrics.CycleRunning.Set(0)

	cycleID := uuid.NewString()
	logger := e.logger.With("cycle_id", cycleID)
	start := time.Now()

	cycleCtx, cancel := context.WithTimeout(ctx, e.opts.CycleTimeout)
	defer cancel()

	err := e.runCycle(cycleCtx, logger)
	elapsed := time.Since(start)
	e.metrics.CycleDuration.Observe(elapsed.Seconds())

	if err != nil {
		e.metrics.CyclesTotal.WithLabelValues("failed").Inc()
		logger.Error("refresh cycle failed", "duration", elapsed, "error", err)
		return err
	}
	e.metrics.CyclesTotal.WithLabelValues("committed").Inc()
	e.refreshed.Store(true)
	logger.Info("refresh cycle committed", "duration", elapsed)
	return nil
}

func (e *Engine) runCycle(ctx context.Context, logger *slog.Logger) error {
	collected, err := e.collector.Collect(ctx)
	if err != nil {
		return err
	}
	if collected.Degraded() {
		logger.Warn("cycle degraded, sources missing", "failed_sources", collected.FailedSources)
	}

	candidates, err := e.enrich(ctx, collected.Records)
	if err != nil {
		return err
	}

	clusters := e.deduper.Clusters(candidates)
	for _, c := range clusters {
		e.metrics.ClusterSize.Observe(float64(len(c.Members)))
		if len(c.Members) > 1 {
			e.metrics.MergedRecords.Add(float64(len(c.Members) - 1))
		}
	}
	merged := e.deduper.MergeAll(clusters, e.clock.Now())

	result, err := e.store.Commit(merged, collected.Degraded())
	if err != nil {
		return err
	}
	logger.Info("cycle state committed",
		"records", len(collected.Records),
		"clusters", len(clusters),
		"created", result.Created,
		"updated", result.Updated)

	if e.publisher != nil {
		events := make([]domain.DisasterEvent, 0, len(result.CommittedIDs))
		for _, id := range result.CommittedIDs {
			if ev, ok := e.store.Get(id); ok {
				events = append(events, ev)
			}
		}
		if err := e.publisher.Publish(ctx, events); err != nil {
			// Publishing is best-effort; the committed state is already
			// authoritative.
			logger.Warn("downstream publish failed", "error", err)
		}
	}
	return nil
}

// enrich runs normalize, geocode, and classify for each record under
// bounded parallelism. Record order is restored afterwards so downstream
// stages see canonical ordering.
func (e *Engine) enrich(ctx context.Context, records []domain.RawRecord) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.EnrichWorkers)
	for i, raw := range records {
		g.Go(func() error {
			cand := normalize.Record(raw)
			cand = e.locate(gctx, cand)
			candidates[i] = e.classifier.Classify(gctx, cand)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// locate resolves the candidate's coordinates. Source-reported coordinates
// win outright; otherwise the location candidates are tried in order until
// one resolves. An unresolvable record keeps PrecisionNone and stays in the
// pipeline.
func (e *Engine) locate(ctx context.Context, cand domain.Candidate) domain.Candidate {
	if cand.Raw.HasCoords {
		cand.Location = domain.Location{
			Text:      cand.Raw.LocationText,
			Lat:       cand.Raw.Lat,
			Lon:       cand.Raw.Lon,
			Precision: domain.PrecisionExact,
		}
		return cand
	}

	for _, text := range cand.LocationCandidates {
		result, err := e.geocoder.Resolve(ctx, text)
		if err != nil {
			continue
		}
		outcome := "resolved"
		if result.IsFallback {
			outcome = "fallback"
		}
		e.metrics.GeocodeRequests.WithLabelValues(outcome).Inc()
		cand.Location = domain.Location{
			Text:       result.Name,
			Lat:        result.Lat,
			Lon:        result.Lon,
			Precision:  result.Precision,
			IsFallback: result.IsFallback,
		}
		return cand
	}

	e.metrics.GeocodeRequests.WithLabelValues("error").Inc()
	cand.Location = domain.Location{Precision: domain.PrecisionNone}
	return cand
}

// Ready reports whether at least one cycle has committed since start, or a
// usable snapshot was restored. The readiness endpoint keys off this.
func (e *Engine) Ready() bool {
	return e.refreshed.Load() || !e.store.LastRefreshAt().IsZero()
}
