package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
// Tuning parameters (similarity thresholds, blocking granularity, windows)
// are configuration, not constants, so they can be validated empirically
// without a rebuild.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Refresh cycle scheduling.
	RefreshInterval time.Duration // fixed interval between cycles
	CycleTimeout    time.Duration // overall wall-clock deadline per cycle
	SourceTimeout   time.Duration // per-adapter fetch deadline within a cycle
	EnrichWorkers   int           // bounded parallelism for per-record enrichment

	// Source adapters.
	USGSFeedURLs     []string
	USGSMinMagnitude float64
	GDACSFeedURL     string
	ReliefWebURL     string
	NewsFeedURLs     []string

	// Optional AI collaborator (search source + classification enhancer).
	AIEnabled bool
	AIAPIKey  string
	AIBaseURL string
	AIModel   string
	AITimeout time.Duration

	// Geocoding.
	GeocodeEnabled   bool
	GeocodeURL       string
	GeocodeTimeout   time.Duration
	GeocodeCacheSize int

	// Classification.
	RulesFile          string  // optional YAML overriding keyword/severity tables
	AmbiguityThreshold int     // rule confidence below this flags the record
	SourceWeightAPI    float64 // reliability weights by source type
	SourceWeightFeed   float64
	SourceWeightAI     float64
	CorroborationBonus int // confidence bonus per extra distinct source type
	FallbackGeoPenalty int // confidence penalty for fallback-resolved locations

	// Deduplication.
	SimilarityThreshold float64
	TitleWeight         float64
	GeoWeight           float64
	TimeWeight          float64
	MergeRadiusKM       float64
	MergeTimeWindow     time.Duration
	GeohashPrecision    uint
	TimeBucket          time.Duration

	// Cache store.
	SnapshotPath    string
	StalenessWindow time.Duration
	ArchiveWindow   time.Duration
	RetentionWindow time.Duration // archived events older than this are dropped
	SweepInterval   time.Duration

	// Optional ledger publisher.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// defaultUSGSFeeds covers significant events plus everything M4.5+ over the
// weekly window, matching the coverage of the upstream feeds.
var defaultUSGSFeeds = []string{
	"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/significant_week.geojson",
	"https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/4.5_week.geojson",
}

const defaultNewsFeeds = "http://feeds.bbci.co.uk/news/world/rss.xml," +
	"https://www.aljazeera.com/xml/rss/all.xml," +
	"https://reliefweb.int/rss.xml"

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:  envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		USGSFeedURLs: parseList(envOrDefault("USGS_FEED_URLS", strings.Join(defaultUSGSFeeds, ","))),
		GDACSFeedURL: envOrDefault("GDACS_FEED_URL", "https://www.gdacs.org/xml/rss.xml"),
		ReliefWebURL: envOrDefault("RELIEFWEB_URL", "https://api.reliefweb.int/v1/disasters"),
		NewsFeedURLs: parseList(envOrDefault("NEWS_FEED_URLS", defaultNewsFeeds)),

		AIAPIKey:  os.Getenv("AI_API_KEY"),
		AIBaseURL: envOrDefault("AI_BASE_URL", "https://api.openai.com/v1"),
		AIModel:   envOrDefault("AI_MODEL", "gpt-4o-mini"),

		GeocodeURL: envOrDefault("GEOCODE_URL", "https://nominatim.openstreetmap.org/search"),

		RulesFile: os.Getenv("RULES_FILE"),

		SnapshotPath: envOrDefault("SNAPSHOT_PATH", "data/events_snapshot.json"),

		KafkaBrokers: parseList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "canonical-disaster-events"),
	}

	var err error
	loadDur := func(dst *time.Duration, key, def string) {
		if err != nil {
			return
		}
		*dst, err = parseDurationEnv(key, def)
	}

	loadDur(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT", "10s")
	loadDur(&cfg.RefreshInterval, "REFRESH_INTERVAL", "10m")
	loadDur(&cfg.CycleTimeout, "CYCLE_TIMEOUT", "2m")
	loadDur(&cfg.SourceTimeout, "SOURCE_TIMEOUT", "15s")
	loadDur(&cfg.AITimeout, "AI_TIMEOUT", "20s")
	loadDur(&cfg.GeocodeTimeout, "GEOCODE_TIMEOUT", "5s")
	loadDur(&cfg.MergeTimeWindow, "MERGE_TIME_WINDOW", "6h")
	loadDur(&cfg.TimeBucket, "TIME_BUCKET", "6h")
	loadDur(&cfg.StalenessWindow, "STALENESS_WINDOW", "24h")
	loadDur(&cfg.ArchiveWindow, "ARCHIVE_WINDOW", "72h")
	loadDur(&cfg.RetentionWindow, "RETENTION_WINDOW", "720h")
	loadDur(&cfg.SweepInterval, "SWEEP_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}

	ints := []struct {
		dst *int
		key string
		def int
	}{
		{&cfg.EnrichWorkers, "ENRICH_WORKERS", 16},
		{&cfg.GeocodeCacheSize, "GEOCODE_CACHE_SIZE", 1000},
		{&cfg.AmbiguityThreshold, "AMBIGUITY_THRESHOLD", 50},
		{&cfg.CorroborationBonus, "CORROBORATION_BONUS", 10},
		{&cfg.FallbackGeoPenalty, "FALLBACK_GEO_PENALTY", 15},
	}
	for _, f := range ints {
		if *f.dst, err = parseIntEnv(f.key, f.def); err != nil {
			return nil, err
		}
	}

	floats := []struct {
		dst *float64
		key string
		def float64
	}{
		{&cfg.USGSMinMagnitude, "USGS_MIN_MAGNITUDE", 4.0},
		{&cfg.SourceWeightAPI, "SOURCE_WEIGHT_API", 0.95},
		{&cfg.SourceWeightFeed, "SOURCE_WEIGHT_FEED", 0.75},
		{&cfg.SourceWeightAI, "SOURCE_WEIGHT_AI", 0.60},
		{&cfg.SimilarityThreshold, "SIMILARITY_THRESHOLD", 0.55},
		{&cfg.TitleWeight, "TITLE_WEIGHT", 0.40},
		{&cfg.GeoWeight, "GEO_WEIGHT", 0.35},
		{&cfg.TimeWeight, "TIME_WEIGHT", 0.25},
		{&cfg.MergeRadiusKM, "MERGE_RADIUS_KM", 150},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloatEnv(f.key, f.def); err != nil {
			return nil, err
		}
	}

	precision, err := parseIntEnv("GEOHASH_PRECISION", 3)
	if err != nil {
		return nil, err
	}
	cfg.GeohashPrecision = uint(precision)

	cfg.AIEnabled = cfg.AIAPIKey != ""
	if v := os.Getenv("AI_ENABLED"); v != "" {
		cfg.AIEnabled = v == "true"
	}
	cfg.GeocodeEnabled = true
	if v := os.Getenv("GEOCODE_ENABLED"); v != "" {
		cfg.GeocodeEnabled = v == "true"
	}
	cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		cfg.KafkaEnabled = v == "true"
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.AIEnabled && c.AIAPIKey == "" {
		return errors.New("AI_ENABLED is true but AI_API_KEY is not set")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return errors.New("SIMILARITY_THRESHOLD must be in (0,1]")
	}
	if sum := c.TitleWeight + c.GeoWeight + c.TimeWeight; sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("similarity weights must sum to 1.0, got %.2f", sum)
	}
	if c.GeohashPrecision < 1 || c.GeohashPrecision > 6 {
		return errors.New("GEOHASH_PRECISION must be between 1 and 6")
	}
	if c.StalenessWindow >= c.ArchiveWindow {
		return errors.New("STALENESS_WINDOW must be shorter than ARCHIVE_WINDOW")
	}
	if c.CycleTimeout <= c.SourceTimeout {
		return errors.New("CYCLE_TIMEOUT must exceed SOURCE_TIMEOUT")
	}
	if c.EnrichWorkers < 1 {
		return errors.New("ENRICH_WORKERS must be at least 1")
	}
	if c.SnapshotPath == "" {
		return errors.New("SNAPSHOT_PATH is required")
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDurationEnv(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloatEnv(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}
