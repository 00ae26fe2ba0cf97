package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker   = "localhost:9092"
	testMortarToken = "mortar-test-token"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://beta-api.mortardata.org", cfg.MortarBaseURL)
	assert.Empty(t, cfg.MortarToken)
	assert.Equal(t, 30*time.Second, cfg.MortarTimeout)
	assert.Equal(t, 256, cfg.ResolverCacheSize)
	assert.Equal(t, "portfolio.yaml", cfg.PortfolioPath)
	assert.Equal(t, "comfort.db", cfg.DBPath)
	assert.Equal(t, time.Hour, cfg.EvalInterval)
	assert.Equal(t, 4, cfg.EvalWorkers)
	assert.Equal(t, "mortar", cfg.EvalSource)
	assert.Equal(t, 30, cfg.WindowDays)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "building-telemetry", cfg.KafkaTelemetryTopic)
	assert.Equal(t, "comfort-indices", cfg.KafkaReportTopic)
	assert.Equal(t, "comfort-analytics", cfg.KafkaGroupID)
	assert.False(t, cfg.IngestEnabled)
	assert.False(t, cfg.PublishEnabled)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.BatchFlushInterval)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("MORTAR_BASE_URL", "http://localhost:5000")
	t.Setenv("MORTAR_TOKEN", testMortarToken)
	t.Setenv("MORTAR_TIMEOUT", "5s")
	t.Setenv("RESOLVER_CACHE_SIZE", "64")
	t.Setenv("PORTFOLIO_PATH", "testdata/portfolio.yaml")
	t.Setenv("DB_PATH", "/tmp/comfort.db")
	t.Setenv("EVAL_INTERVAL", "15m")
	t.Setenv("EVAL_WORKERS", "8")
	t.Setenv("EVAL_SOURCE", "store")
	t.Setenv("WINDOW_DAYS", "7")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TELEMETRY_TOPIC", "custom-telemetry")
	t.Setenv("KAFKA_REPORT_TOPIC", "custom-reports")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("INGEST_ENABLED", "true")
	t.Setenv("PUBLISH_ENABLED", "true")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:5000", cfg.MortarBaseURL)
	assert.Equal(t, testMortarToken, cfg.MortarToken)
	assert.Equal(t, 5*time.Second, cfg.MortarTimeout)
	assert.Equal(t, 64, cfg.ResolverCacheSize)
	assert.Equal(t, "testdata/portfolio.yaml", cfg.PortfolioPath)
	assert.Equal(t, "/tmp/comfort.db", cfg.DBPath)
	assert.Equal(t, 15*time.Minute, cfg.EvalInterval)
	assert.Equal(t, 8, cfg.EvalWorkers)
	assert.Equal(t, "store", cfg.EvalSource)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-telemetry", cfg.KafkaTelemetryTopic)
	assert.Equal(t, "custom-reports", cfg.KafkaReportTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.True(t, cfg.IngestEnabled)
	assert.True(t, cfg.PublishEnabled)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.BatchFlushInterval)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidEvalInterval(t *testing.T) {
	t.Setenv("EVAL_INTERVAL", "0s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVAL_INTERVAL")
}

func TestLoad_InvalidEvalWorkers(t *testing.T) {
	t.Setenv("EVAL_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVAL_WORKERS")
}

func TestLoad_InvalidEvalSource(t *testing.T) {
	t.Setenv("EVAL_SOURCE", "csv")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVAL_SOURCE")
}

func TestLoad_InvalidWindowDays(t *testing.T) {
	t.Setenv("WINDOW_DAYS", "400")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WINDOW_DAYS")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "99999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidMortarTimeout(t *testing.T) {
	t.Setenv("MORTAR_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MORTAR_TIMEOUT")
}

func TestLoad_IngestRequiresBrokers(t *testing.T) {
	t.Setenv("INGEST_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_EmptyBrokersAllowedWhenKafkaDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " , ")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.KafkaBrokers)
}
