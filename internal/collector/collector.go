// Package collector fans a refresh cycle out across all registered sources
// and gathers what survives. A failed or slow source degrades the cycle, it
// never blocks it: each fetch runs under its own deadline and contributes
// either its full record set or nothing.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/observability"
	"github.com/couchcryptid/crisis-aggregator/internal/source"
)

// Collector runs the parallel fetch stage of a refresh cycle.
type Collector struct {
	sources       []source.Source
	sourceTimeout time.Duration
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// Result is the outcome of one fan-out: all records from the sources that
// answered in time, plus the names of those that did not.
type Result struct {
	Records       []domain.RawRecord
	FailedSources []string
}

// Degraded reports whether any source failed to contribute this cycle.
func (r Result) Degraded() bool {
	return len(r.FailedSources) > 0
}

func New(sources []source.Source, sourceTimeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Collector {
	return &Collector{
		sources:       sources,
		sourceTimeout: sourceTimeout,
		metrics:       metrics,
		logger:        logger,
	}
}

// Collect fetches from every source concurrently. Partial failure is normal
// operation; Collect only errors when every source failed, since a cycle
// with zero inputs has nothing to do.
func (c *Collector) Collect(ctx context.Context) (Result, error) {
	var (
		mu     sync.Mutex
		result Result
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range c.sources {
		g.Go(func() error {
			records, err := c.fetchOne(gctx, src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.FailedSources = append(result.FailedSources, src.Name())
				return nil
			}
			result.Records = append(result.Records, records...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	sort.Strings(result.FailedSources)
	if len(result.FailedSources) == len(c.sources) {
		return Result{}, errors.New("all sources failed")
	}

	// Canonical processing order, independent of goroutine completion order.
	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Key() < result.Records[j].Key()
	})
	return result, nil
}

// fetchOne runs a single source under the per-source deadline and records
// its metrics.
func (c *Collector) fetchOne(ctx context.Context, src source.Source) ([]domain.RawRecord, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.sourceTimeout)
	defer cancel()

	start := time.Now()
	records, err := src.Fetch(fetchCtx, fetchSince(start))
	elapsed := time.Since(start)
	c.metrics.SourceDurations.WithLabelValues(src.Name()).Observe(elapsed.Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		c.metrics.SourceFetches.WithLabelValues(src.Name(), outcome).Inc()
		c.logger.Warn("source fetch failed",
			"source", src.Name(),
			"duration", elapsed,
			"error", &domain.SourceFetchError{Source: src.Name(), Err: err})
		return nil, err
	}

	c.metrics.SourceFetches.WithLabelValues(src.Name(), "ok").Inc()
	c.metrics.SourceRecords.WithLabelValues(src.Name()).Add(float64(len(records)))
	c.logger.Debug("source fetch complete",
		"source", src.Name(),
		"records", len(records),
		"duration", elapsed)
	return records, nil
}

// lookback is how far back sources are asked to report. Seven days matches
// the coverage window of the upstream weekly feeds.
const lookback = 7 * 24 * time.Hour

func fetchSince(now time.Time) time.Time {
	return now.UTC().Add(-lookback)
}
