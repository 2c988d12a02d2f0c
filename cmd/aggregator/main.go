package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/crisis-aggregator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/crisis-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/crisis-aggregator/internal/classify"
	"github.com/couchcryptid/crisis-aggregator/internal/collector"
	"github.com/couchcryptid/crisis-aggregator/internal/config"
	"github.com/couchcryptid/crisis-aggregator/internal/dedup"
	"github.com/couchcryptid/crisis-aggregator/internal/domain"
	"github.com/couchcryptid/crisis-aggregator/internal/engine"
	"github.com/couchcryptid/crisis-aggregator/internal/geocode"
	"github.com/couchcryptid/crisis-aggregator/internal/observability"
	"github.com/couchcryptid/crisis-aggregator/internal/source"
	"github.com/couchcryptid/crisis-aggregator/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	// Geocoding chain: provider -> LRU cache -> gazetteer fallback. With the
	// provider disabled the gazetteer still resolves country-level centroids.
	var inner geocode.Geocoder
	if cfg.GeocodeEnabled {
		client := geocode.NewClient(cfg.GeocodeURL, cfg.GeocodeTimeout, logger)
		inner = geocode.NewCachedGeocoder(client, cfg.GeocodeCacheSize, metrics)
		logger.Info("geocoding enabled", "url", cfg.GeocodeURL, "cache_size", cfg.GeocodeCacheSize)
	} else {
		logger.Info("geocoding disabled, gazetteer fallback only")
	}
	geocoder := geocode.NewFallbackGeocoder(inner, logger)

	httpClient := &http.Client{Timeout: cfg.SourceTimeout}
	sources := []source.Source{
		source.NewUSGS(cfg.USGSFeedURLs, cfg.USGSMinMagnitude, httpClient),
		source.NewGDACS(cfg.GDACSFeedURL, httpClient),
		source.NewReliefWeb(cfg.ReliefWebURL, httpClient),
		source.NewNews(cfg.NewsFeedURLs, httpClient, logger),
	}
	if cfg.AIEnabled {
		sources = append(sources, source.NewAISearch(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout))
		logger.Info("ai search source enabled", "model", cfg.AIModel)
	}
	col := collector.New(sources, cfg.SourceTimeout, metrics, logger)

	rules, err := classify.Load(cfg.RulesFile)
	if err != nil {
		logger.Error("failed to load classification rules", "error", err)
		os.Exit(1)
	}
	var enhancer classify.Enhancer
	if cfg.AIEnabled {
		enhancer = classify.NewOpenAIEnhancer(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel, cfg.AITimeout, logger)
	}
	classifier := classify.New(rules, classify.Options{
		AmbiguityThreshold: cfg.AmbiguityThreshold,
		FallbackGeoPenalty: cfg.FallbackGeoPenalty,
		SourceWeightAPI:    cfg.SourceWeightAPI,
		SourceWeightFeed:   cfg.SourceWeightFeed,
		SourceWeightAI:     cfg.SourceWeightAI,
	}, enhancer, metrics, logger)

	deduper := dedup.New(dedup.Options{
		Threshold:          cfg.SimilarityThreshold,
		TitleWeight:        cfg.TitleWeight,
		GeoWeight:          cfg.GeoWeight,
		TimeWeight:         cfg.TimeWeight,
		MergeRadiusKM:      cfg.MergeRadiusKM,
		MergeTimeWindow:    cfg.MergeTimeWindow,
		GeohashPrecision:   cfg.GeohashPrecision,
		TimeBucket:         cfg.TimeBucket,
		CorroborationBonus: cfg.CorroborationBonus,
	})

	st := store.New(store.Options{
		SnapshotPath:    cfg.SnapshotPath,
		StalenessWindow: cfg.StalenessWindow,
		ArchiveWindow:   cfg.ArchiveWindow,
		RetentionWindow: cfg.RetentionWindow,
	}, clock, metrics, logger)
	if err := st.LoadSnapshot(); err != nil {
		if errors.Is(err, domain.ErrCacheCorrupt) {
			logger.Warn("snapshot unusable, starting with an empty cache", "error", err)
		} else {
			logger.Error("failed to load snapshot", "error", err)
			os.Exit(1)
		}
	}

	var publisher engine.Publisher
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = kafkaWriter
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}

	eng := engine.New(col, geocoder, classifier, deduper, st, publisher, engine.Options{
		RefreshInterval: cfg.RefreshInterval,
		CycleTimeout:    cfg.CycleTimeout,
		SweepInterval:   cfg.SweepInterval,
		EnrichWorkers:   cfg.EnrichWorkers,
	}, clock, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, st, eng, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("engine error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
