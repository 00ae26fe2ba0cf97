package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mortar data service configuration.
	MortarBaseURL string
	MortarToken   string
	MortarTimeout time.Duration

	ResolverCacheSize int
	PortfolioPath     string
	DBPath            string

	// Evaluation loop configuration.
	EvalInterval time.Duration
	EvalWorkers  int
	EvalSource   string
	WindowDays   int

	// Kafka ingest and publish configuration.
	KafkaBrokers        []string
	KafkaTelemetryTopic string
	KafkaReportTopic    string
	KafkaGroupID        string
	IngestEnabled       bool
	PublishEnabled      bool
	BatchSize           int
	BatchFlushInterval  time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	mortarTimeout, err := parsePositiveDuration("MORTAR_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	evalInterval, err := parsePositiveDuration("EVAL_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}

	flushInterval, err := parsePositiveDuration("BATCH_FLUSH_INTERVAL", "1s")
	if err != nil {
		return nil, err
	}

	evalWorkers, err := parseBoundedInt("EVAL_WORKERS", 4, 1, 64)
	if err != nil {
		return nil, err
	}

	windowDays, err := parseBoundedInt("WINDOW_DAYS", 30, 1, 365)
	if err != nil {
		return nil, err
	}

	batchSize, err := parseBoundedInt("BATCH_SIZE", 500, 1, 5000)
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseBoundedInt("RESOLVER_CACHE_SIZE", 256, 1, 100000)
	if err != nil {
		return nil, err
	}

	ingestEnabled := false
	if v := os.Getenv("INGEST_ENABLED"); v != "" {
		ingestEnabled = v == "true"
	}
	publishEnabled := false
	if v := os.Getenv("PUBLISH_ENABLED"); v != "" {
		publishEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MortarBaseURL: envOrDefault("MORTAR_BASE_URL", "https://beta-api.mortardata.org"),
		MortarToken:   os.Getenv("MORTAR_TOKEN"),
		MortarTimeout: mortarTimeout,

		ResolverCacheSize: cacheSize,
		PortfolioPath:     envOrDefault("PORTFOLIO_PATH", "portfolio.yaml"),
		DBPath:            envOrDefault("DB_PATH", "comfort.db"),

		EvalInterval: evalInterval,
		EvalWorkers:  evalWorkers,
		EvalSource:   envOrDefault("EVAL_SOURCE", "mortar"),
		WindowDays:   windowDays,

		KafkaBrokers:        parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTelemetryTopic: envOrDefault("KAFKA_TELEMETRY_TOPIC", "building-telemetry"),
		KafkaReportTopic:    envOrDefault("KAFKA_REPORT_TOPIC", "comfort-indices"),
		KafkaGroupID:        envOrDefault("KAFKA_GROUP_ID", "comfort-analytics"),
		IngestEnabled:       ingestEnabled,
		PublishEnabled:      publishEnabled,
		BatchSize:           batchSize,
		BatchFlushInterval:  flushInterval,
	}

	if cfg.MortarBaseURL == "" {
		return nil, errors.New("MORTAR_BASE_URL is required")
	}
	if cfg.PortfolioPath == "" {
		return nil, errors.New("PORTFOLIO_PATH is required")
	}
	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if cfg.EvalSource != "mortar" && cfg.EvalSource != "store" {
		return nil, errors.New("EVAL_SOURCE must be mortar or store")
	}
	if cfg.IngestEnabled || cfg.PublishEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
	}
	if cfg.IngestEnabled && cfg.KafkaTelemetryTopic == "" {
		return nil, errors.New("KAFKA_TELEMETRY_TOPIC is required")
	}
	if cfg.PublishEnabled && cfg.KafkaReportTopic == "" {
		return nil, errors.New("KAFKA_REPORT_TOPIC is required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parsePositiveDuration(name, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(name, fallback))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return d, nil
}

func parseBoundedInt(name string, fallback, min, max int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, errors.New("invalid " + name)
	}
	return n, nil
}
