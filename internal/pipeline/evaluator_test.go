package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalRef is a Wednesday evening; the trailing 24h window covers the
// occupied hours of Wednesday January 10.
var evalRef = time.Date(2024, time.January, 10, 18, 0, 0, 0, time.UTC)

// --- mocks ---

type mockResolver struct {
	points map[string][]domain.Point
}

func (m *mockResolver) Points(_ context.Context, siteURI string) ([]domain.Point, error) {
	pts, ok := m.points[siteURI]
	if !ok {
		return nil, fmt.Errorf("no points for site %s", siteURI)
	}
	return pts, nil
}

type mockFetcher struct {
	series map[string]domain.Series
}

func (m *mockFetcher) Series(_ context.Context, pointURI string, w domain.Window) (domain.Series, error) {
	s, ok := m.series[pointURI]
	if !ok {
		return nil, fmt.Errorf("no data for point %s", pointURI)
	}
	return s.Clip(w), nil
}

// mockReportStore is mutex-guarded because Run saves from its own goroutine
// while tests poll.
type mockReportStore struct {
	mu    sync.Mutex
	saved []domain.PortfolioReport
	err   error
}

func (m *mockReportStore) SaveRun(_ context.Context, report domain.PortfolioReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, report)
	return nil
}

func (m *mockReportStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func (m *mockReportStore) report(i int) domain.PortfolioReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[i]
}

type mockPublisher struct {
	published []domain.PortfolioReport
	err       error
}

func (m *mockPublisher) PublishReports(_ context.Context, report domain.PortfolioReport) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, report)
	return nil
}

// --- helpers ---

func freezeClock(t *testing.T) *clockwork.FakeClock {
	t.Helper()
	fake := clockwork.NewFakeClockAt(evalRef)
	domain.SetClock(fake)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})
	return fake
}

func evalBuilding(id, site string) domain.Building {
	return domain.Building{
		ID:                  id,
		Name:                "Building " + id,
		SiteURI:             site,
		Schedule:            domain.Schedule{StartHour: 9, EndHour: 17},
		Seasons:             domain.Seasons{SummerStart: time.May, WinterStart: time.November},
		Bands:               domain.Bands{SummerLow: 73, SummerHigh: 79, WinterLow: 69, WinterHigh: 75},
		DailyRangeThreshold: 10,
		SampleInterval:      15 * time.Minute,
	}
}

// occupiedSeries builds hourly readings starting Wednesday 09:00, one per value.
func occupiedSeries(values ...float64) domain.Series {
	rs := make([]domain.Reading, len(values))
	for i, v := range values {
		rs[i] = domain.Reading{
			PointURI: "p",
			Time:     time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
			Value:    v,
		}
	}
	return domain.NewSeries(rs)
}

func evalConfig(buildings ...domain.Building) pipeline.EvaluatorConfig {
	return pipeline.EvaluatorConfig{
		Buildings: buildings,
		Interval:  time.Hour,
		Window:    24 * time.Hour,
		Workers:   2,
	}
}

// --- tests ---

func TestEvaluator_RunOnce_SavesPortfolioReport(t *testing.T) {
	freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}, {URI: "p2"}},
		"http://buildsys.org/ontologies/bldg2": {{URI: "p3"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{
		"p1": occupiedSeries(70, 71, 72, 74),
		"p2": occupiedSeries(71, 72, 73, 75),
		"p3": occupiedSeries(68, 70, 72, 74),
	}}
	store := &mockReportStore{}

	cfg := evalConfig(
		evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"),
		evalBuilding("bldg2", "http://buildsys.org/ontologies/bldg2"),
	)
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, nil, slog.Default(), newTestMetrics())

	require.NoError(t, ev.RunOnce(context.Background()))
	require.Equal(t, 1, store.count())

	report := store.report(0)
	assert.NotEmpty(t, report.RunID)
	assert.True(t, report.GeneratedAt.Equal(evalRef))
	assert.True(t, report.Window.End.Equal(evalRef))
	assert.True(t, report.Window.Start.Equal(evalRef.Add(-24*time.Hour)))

	require.Len(t, report.Buildings, 2)
	assert.Empty(t, report.Failures)
	assert.Equal(t, "bldg1", report.Buildings[0].BuildingID)
	assert.Equal(t, "bldg2", report.Buildings[1].BuildingID)
	assert.Equal(t, 2, report.Buildings[0].PointCount)
	assert.Equal(t, 2, report.Buildings[0].PointsUsed)
	// bldg1 averages its two point means: (71.75 + 72.75) / 2.
	assert.InDelta(t, 72.25, report.Buildings[0].Indices.OccupiedMean, 1e-9)
	assert.NotEmpty(t, report.Summary)

	assert.NoError(t, ev.CheckReadiness(context.Background()))
}

func TestEvaluator_RunOnce_ResolverFailureIsolated(t *testing.T) {
	freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{
		"p1": occupiedSeries(70, 71, 72, 74),
	}}
	store := &mockReportStore{}

	cfg := evalConfig(
		evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"),
		evalBuilding("bldg2", "http://buildsys.org/ontologies/bldg2"),
	)
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, nil, slog.Default(), newTestMetrics())

	require.NoError(t, ev.RunOnce(context.Background()))

	report := store.report(0)
	require.Len(t, report.Buildings, 1)
	assert.Equal(t, "bldg1", report.Buildings[0].BuildingID)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bldg2", report.Failures[0].BuildingID)
	assert.Contains(t, report.Failures[0].Reason, "resolve points")
}

func TestEvaluator_RunOnce_FetchFailureSkipsPoint(t *testing.T) {
	freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}, {URI: "p2"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{
		"p1": occupiedSeries(70, 71, 72, 74),
		// p2 has no data and fails to fetch
	}}
	store := &mockReportStore{}

	cfg := evalConfig(evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"))
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, nil, slog.Default(), newTestMetrics())

	require.NoError(t, ev.RunOnce(context.Background()))

	report := store.report(0)
	require.Len(t, report.Buildings, 1)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 2, report.Buildings[0].PointCount)
	assert.Equal(t, 1, report.Buildings[0].PointsUsed)
}

func TestEvaluator_RunOnce_UnoccupiedDataFailsBuilding(t *testing.T) {
	freezeClock(t)

	// All readings fall before the occupied day starts.
	early := domain.NewSeries([]domain.Reading{
		{PointURI: "p1", Time: time.Date(2024, time.January, 10, 7, 0, 0, 0, time.UTC), Value: 70},
		{PointURI: "p1", Time: time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC), Value: 70},
	})

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{"p1": early}}
	store := &mockReportStore{}

	cfg := evalConfig(evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"))
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, nil, slog.Default(), newTestMetrics())

	require.NoError(t, ev.RunOnce(context.Background()))

	report := store.report(0)
	assert.Empty(t, report.Buildings)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Reason, "no occupied samples")
}

func TestEvaluator_RunOnce_SaveFailure(t *testing.T) {
	freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{
		"p1": occupiedSeries(70, 71, 72, 74),
	}}
	store := &mockReportStore{err: errors.New("database is locked")}

	cfg := evalConfig(evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"))
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, nil, slog.Default(), newTestMetrics())

	err := ev.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save run")
	assert.Error(t, ev.CheckReadiness(context.Background()))
}

func TestEvaluator_RunOnce_PublishesReports(t *testing.T) {
	freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{
		"p1": occupiedSeries(70, 71, 72, 74),
	}}
	store := &mockReportStore{}
	pub := &mockPublisher{}

	cfg := evalConfig(evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"))
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, pub, slog.Default(), newTestMetrics())

	require.NoError(t, ev.RunOnce(context.Background()))
	require.Len(t, pub.published, 1)
	assert.Equal(t, store.report(0).RunID, pub.published[0].RunID)
}

func TestEvaluator_RunOnce_PublishFailure(t *testing.T) {
	freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{
		"p1": occupiedSeries(70, 71, 72, 74),
	}}
	store := &mockReportStore{}
	pub := &mockPublisher{err: errors.New("broker unreachable")}

	cfg := evalConfig(evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"))
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, pub, slog.Default(), newTestMetrics())

	err := ev.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish run")
	// The run is already saved by the time publishing fails.
	assert.Equal(t, 1, store.count())
}

func TestEvaluator_RunOnce_FullPortfolio(t *testing.T) {
	freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{}}
	fetcher := &mockFetcher{series: map[string]domain.Series{}}

	var buildings []domain.Building
	for i := 1; i <= 25; i++ {
		site := fmt.Sprintf("http://buildsys.org/ontologies/bldg%d", i)
		point := fmt.Sprintf("%s#zat_1", site)
		resolver.points[site] = []domain.Point{{URI: point}}
		fetcher.series[point] = occupiedSeries(70, 71, 72, 73)
		buildings = append(buildings, evalBuilding(fmt.Sprintf("bldg%02d", i), site))
	}

	store := &mockReportStore{}
	cfg := pipeline.EvaluatorConfig{
		Buildings: buildings,
		Interval:  time.Hour,
		Window:    24 * time.Hour,
		Workers:   8,
	}
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, nil, slog.Default(), newTestMetrics())

	require.NoError(t, ev.RunOnce(context.Background()))

	report := store.report(0)
	require.Len(t, report.Buildings, 25)
	assert.Empty(t, report.Failures)
	assert.True(t, sort.SliceIsSorted(report.Buildings, func(i, j int) bool {
		return report.Buildings[i].BuildingID < report.Buildings[j].BuildingID
	}))
}

func TestEvaluator_Run_EvaluatesOnEachTick(t *testing.T) {
	fake := freezeClock(t)

	resolver := &mockResolver{points: map[string][]domain.Point{
		"http://buildsys.org/ontologies/bldg1": {{URI: "p1"}},
	}}
	fetcher := &mockFetcher{series: map[string]domain.Series{
		"p1": occupiedSeries(70, 71, 72, 74),
	}}
	store := &mockReportStore{}

	cfg := evalConfig(evalBuilding("bldg1", "http://buildsys.org/ontologies/bldg1"))
	ev := pipeline.NewEvaluator(cfg, resolver, fetcher, store, nil, slog.Default(), newTestMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- ev.Run(ctx)
	}()

	// First run happens immediately on startup.
	require.Eventually(t, func() bool { return store.count() == 1 }, time.Second, 10*time.Millisecond)

	// Advancing the clock by one interval triggers the next run.
	require.NoError(t, fake.BlockUntilContext(ctx, 1))
	fake.Advance(time.Hour)
	require.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.NotEqual(t, store.report(0).RunID, store.report(1).RunID)
}
