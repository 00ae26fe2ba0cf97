package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/comfortsense/comfort-analytics/internal/comfort"
	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
)

// ReportStore persists completed evaluation runs.
type ReportStore interface {
	SaveRun(ctx context.Context, report domain.PortfolioReport) error
}

// ReportPublisher emits a completed run to downstream consumers.
type ReportPublisher interface {
	PublishReports(ctx context.Context, report domain.PortfolioReport) error
}

// EvaluatorConfig carries the portfolio and scheduling knobs for the
// evaluation loop.
type EvaluatorConfig struct {
	Buildings []domain.Building
	Interval  time.Duration
	Window    time.Duration
	Workers   int
}

// Evaluator computes comfort indices for the whole portfolio on a fixed
// interval: resolve each building's sensor points, fetch their series over
// the trailing window, evaluate, then persist and optionally publish the
// portfolio report.
type Evaluator struct {
	cfg       EvaluatorConfig
	resolver  domain.PointResolver
	fetcher   domain.SeriesFetcher
	store     ReportStore
	publisher ReportPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewEvaluator creates an Evaluator. Pass a nil publisher to keep reports
// local to the store.
func NewEvaluator(cfg EvaluatorConfig, resolver domain.PointResolver, fetcher domain.SeriesFetcher, store ReportStore, publisher ReportPublisher, logger *slog.Logger, metrics *observability.Metrics) *Evaluator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Evaluator{
		cfg:       cfg,
		resolver:  resolver,
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil if at least one evaluation run has completed,
// or an error describing why the service is not yet ready.
func (e *Evaluator) CheckReadiness(_ context.Context) error {
	if !e.ready.Load() {
		return errors.New("no evaluation run has completed yet")
	}
	return nil
}

// Run evaluates the portfolio immediately, then again on every interval tick
// until the context is cancelled.
func (e *Evaluator) Run(ctx context.Context) error {
	e.logger.Info("evaluator started",
		"buildings", len(e.cfg.Buildings),
		"interval", e.cfg.Interval,
		"window", e.cfg.Window,
		"workers", e.cfg.Workers,
	)
	e.metrics.PipelineRunning.Inc()
	defer e.metrics.PipelineRunning.Dec()

	e.runAndLog(ctx)

	ticker := domain.Clock().NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("evaluator stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			e.runAndLog(ctx)
		}
	}
}

func (e *Evaluator) runAndLog(ctx context.Context) {
	if err := e.RunOnce(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("evaluation run failed", "error", err)
	}
}

// RunOnce evaluates every building over the trailing window and persists the
// resulting portfolio report.
func (e *Evaluator) RunOnce(ctx context.Context) error {
	start := time.Now()
	now := domain.Now()

	report := e.EvaluateWindow(ctx, domain.Window{Start: now.Add(-e.cfg.Window), End: now})
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if err := e.store.SaveRun(ctx, report); err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}

	if e.publisher != nil {
		if err := e.publisher.PublishReports(ctx, report); err != nil {
			return fmt.Errorf("publish run %s: %w", report.RunID, err)
		}
		e.metrics.ReportsPublished.Add(float64(len(report.Buildings)))
	}

	e.metrics.EvaluationRuns.Inc()
	e.metrics.RunDuration.Observe(time.Since(start).Seconds())
	e.ready.Store(true)

	e.logger.Info("evaluation run completed",
		"run_id", report.RunID,
		"buildings", len(report.Buildings),
		"failures", len(report.Failures),
		"duration", time.Since(start),
	)
	return nil
}

// EvaluateWindow computes a portfolio report over w without persisting or
// publishing it.
func (e *Evaluator) EvaluateWindow(ctx context.Context, w domain.Window) domain.PortfolioReport {
	report := domain.PortfolioReport{
		RunID:       uuid.NewString(),
		GeneratedAt: domain.Now(),
		Window:      w,
	}

	e.logger.Info("evaluation run started",
		"run_id", report.RunID,
		"window_start", w.Start,
		"window_end", w.End,
	)

	report.Buildings, report.Failures = e.evaluatePortfolio(ctx, report.RunID, w, report.GeneratedAt)
	report.Summary = domain.Summarize(report.Buildings)
	return report
}

// outcome is the result of evaluating one building: exactly one field is set.
type outcome struct {
	report  *domain.BuildingReport
	failure *domain.BuildingFailure
}

// evaluatePortfolio fans the portfolio out over a worker pool and collects
// reports and failures, each sorted by building ID.
func (e *Evaluator) evaluatePortfolio(ctx context.Context, runID string, w domain.Window, computedAt time.Time) ([]domain.BuildingReport, []domain.BuildingFailure) {
	jobs := make(chan domain.Building)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				results <- e.evaluateOne(ctx, b, runID, w, computedAt)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, b := range e.cfg.Buildings {
			select {
			case jobs <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var reports []domain.BuildingReport
	var failures []domain.BuildingFailure
	for out := range results {
		if out.report != nil {
			reports = append(reports, *out.report)
		}
		if out.failure != nil {
			failures = append(failures, *out.failure)
		}
	}

	sort.Slice(reports, func(i, j int) bool { return reports[i].BuildingID < reports[j].BuildingID })
	sort.Slice(failures, func(i, j int) bool { return failures[i].BuildingID < failures[j].BuildingID })
	return reports, failures
}

// evaluateOne resolves, fetches and evaluates a single building. A point
// whose fetch or evaluation fails is skipped; the building only fails when
// no point yields usable data.
func (e *Evaluator) evaluateOne(ctx context.Context, b domain.Building, runID string, w domain.Window, computedAt time.Time) outcome {
	points, err := e.resolver.Points(ctx, b.SiteURI)
	if err != nil {
		e.logger.Warn("point resolution failed", "building", b.ID, "error", err)
		e.metrics.Evaluations.WithLabelValues("error").Inc()
		return outcome{failure: &domain.BuildingFailure{
			BuildingID: b.ID,
			Reason:     fmt.Sprintf("resolve points: %v", err),
		}}
	}

	byPoint := make(map[string]domain.Series, len(points))
	for _, pt := range points {
		if ctx.Err() != nil {
			return outcome{failure: &domain.BuildingFailure{BuildingID: b.ID, Reason: ctx.Err().Error()}}
		}
		series, err := e.fetcher.Series(ctx, pt.URI, w)
		if err != nil {
			e.logger.Warn("series fetch failed, skipping point",
				"building", b.ID, "point", pt.URI, "error", err)
			continue
		}
		byPoint[pt.URI] = series
	}

	indices, pointFailures, err := comfort.EvaluateBuilding(b, byPoint)
	for _, pf := range pointFailures {
		e.logger.Debug("point dropped from evaluation",
			"building", b.ID, "point", pf.PointURI, "error", pf.Err)
	}
	if err != nil {
		e.logger.Warn("building evaluation failed", "building", b.ID, "error", err)
		e.metrics.Evaluations.WithLabelValues("error").Inc()
		return outcome{failure: &domain.BuildingFailure{BuildingID: b.ID, Reason: err.Error()}}
	}

	e.metrics.Evaluations.WithLabelValues("success").Inc()
	return outcome{report: &domain.BuildingReport{
		RunID:        runID,
		BuildingID:   b.ID,
		BuildingName: b.Name,
		Window:       w,
		Indices:      indices,
		PointCount:   len(points),
		PointsUsed:   len(byPoint) - len(pointFailures),
		ComputedAt:   computedAt,
	}}
}
