package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comfortsense/comfort-analytics/internal/adapter/brick"
	httpadapter "github.com/comfortsense/comfort-analytics/internal/adapter/http"
	kafkaadapter "github.com/comfortsense/comfort-analytics/internal/adapter/kafka"
	"github.com/comfortsense/comfort-analytics/internal/adapter/mortar"
	"github.com/comfortsense/comfort-analytics/internal/config"
	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
	"github.com/comfortsense/comfort-analytics/internal/pipeline"
	"github.com/comfortsense/comfort-analytics/internal/portfolio"
	"github.com/comfortsense/comfort-analytics/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	manifest, err := portfolio.Load(cfg.PortfolioPath)
	if err != nil {
		logger.Error("failed to load portfolio", "path", cfg.PortfolioPath, "error", err)
		os.Exit(1)
	}
	buildings, err := manifest.Resolve()
	if err != nil {
		logger.Error("failed to resolve portfolio", "error", err)
		os.Exit(1)
	}
	logger.Info("portfolio loaded", "path", cfg.PortfolioPath, "buildings", len(buildings))

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}

	// EVAL_SOURCE picks where points and series come from: the testbed
	// (archiving a local copy) or the local archive alone for offline reruns.
	var (
		resolver domain.PointResolver
		fetcher  domain.SeriesFetcher
	)
	switch cfg.EvalSource {
	case "store":
		resolver = db
		fetcher = db
		logger.Info("evaluating from local store", "path", db.Path())
	default:
		mortarClient := mortar.NewClient(cfg.MortarBaseURL, cfg.MortarToken, cfg.MortarTimeout, logger, metrics)
		resolver = brick.NewCachedResolver(
			brick.NewResolver(mortarClient, logger, metrics),
			cfg.ResolverCacheSize,
			metrics,
		)
		fetcher = store.NewRecordingFetcher(mortarClient, db, logger)
		logger.Info("evaluating from mortar", "base_url", cfg.MortarBaseURL)
	}

	var publisher pipeline.ReportPublisher
	var writer *kafkaadapter.Writer
	if cfg.PublishEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("report publishing enabled", "topic", cfg.KafkaReportTopic)
	} else {
		logger.Info("report publishing disabled")
	}

	evaluator := pipeline.NewEvaluator(pipeline.EvaluatorConfig{
		Buildings: buildings,
		Interval:  cfg.EvalInterval,
		Window:    time.Duration(cfg.WindowDays) * 24 * time.Hour,
		Workers:   cfg.EvalWorkers,
	}, resolver, fetcher, db, publisher, logger, metrics)

	checkers := allReady{evaluator}

	var ingest *pipeline.Ingest
	var reader *kafkaadapter.Reader
	if cfg.IngestEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		ingest = pipeline.NewIngest(reader, pipeline.NewTransformer(), db, logger, metrics, cfg.BatchSize)
		checkers = append(checkers, ingest)
		logger.Info("telemetry ingest enabled", "topic", cfg.KafkaTelemetryTopic, "group", cfg.KafkaGroupID)
	} else {
		logger.Info("telemetry ingest disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, checkers, db, buildings, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start evaluation loop.
	go func() {
		if err := evaluator.Run(ctx); err != nil {
			logger.Error("evaluator error", "error", err)
		}
	}()

	// Start telemetry ingest when enabled.
	if ingest != nil {
		go func() {
			if err := ingest.Run(ctx); err != nil {
				logger.Error("ingest error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// allReady reports ready only when every wrapped checker is ready.
type allReady []httpadapter.ReadinessChecker

func (a allReady) CheckReadiness(ctx context.Context) error {
	for _, c := range a {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
