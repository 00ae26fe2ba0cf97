// Command validate performs end-to-end integrity checks across the committed
// fixtures: telemetry payloads, the portfolio manifest, the evaluation they
// produce, and the rendered reports. It verifies parse correctness, point to
// building coverage, index invariants, and output schema alignment.
//
// Usage:
//
//	go run ./cmd/validate -fixtures data/fixtures
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/comfortsense/comfort-analytics/internal/comfort"
	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/portfolio"
	"github.com/comfortsense/comfort-analytics/internal/report"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	fixtures := flag.String("fixtures", "data/fixtures", "directory containing fixture files")
	flag.Parse()

	if code := run(*fixtures); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Fixture Integrity Validation ===")
	fmt.Println()

	payloads, err := loadJSON[json.RawMessage](filepath.Join(dir, "telemetry.json"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load telemetry fixture: %v\n", err)
		return 1
	}

	manifest, err := portfolio.Load(filepath.Join(dir, "portfolio.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load portfolio fixture: %v\n", err)
		return 1
	}
	buildings, err := manifest.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: resolve portfolio fixture: %v\n", err)
		return 1
	}

	// ── Run validation phases ──
	readings, parsePhase := validateTelemetry(payloads)
	grouped, coveragePhase := validateCoverage(readings, buildings)
	reports, evalPhase := validateEvaluation(buildings, grouped)
	renderPhase := validateRendering(readings, reports)

	phases := []*phase{parsePhase, coveragePhase, evalPhase, renderPhase}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-44s %s\n", p.name, status)
	}

	fmt.Println()
	points := map[string]bool{}
	for _, r := range readings {
		points[r.PointURI] = true
	}
	fmt.Printf("Data: %d telemetry payloads, %d points, %d buildings\n",
		len(payloads), len(points), len(buildings))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Telemetry Shape ──
// Every payload must parse through the production transformer, carry a
// plausible indoor temperature, and appear at most once per (point, time).

func validateTelemetry(payloads []json.RawMessage) ([]domain.Reading, *phase) {
	p := &phase{name: "Phase 1: Telemetry Shape (parse)"}

	readings := make([]domain.Reading, 0, len(payloads))
	seen := map[string]int{}
	lastPerPoint := map[string]time.Time{}

	for i, raw := range payloads {
		r, err := domain.ParseTelemetry(domain.TelemetryMessage{Value: raw})
		if err != nil {
			p.errorf("payload %d: %v", i, err)
			continue
		}

		if r.Value < 32 || r.Value > 120 {
			p.errorf("payload %d: %s reads %.1f °F, outside plausible indoor range", i, r.PointURI, r.Value)
		}

		key := r.PointURI + "|" + r.Time.Format(time.RFC3339)
		if prev, dup := seen[key]; dup {
			p.errorf("payload %d: duplicate sample for %s (first at payload %d)", i, key, prev)
		}
		seen[key] = i

		// Committed fixtures keep each point's samples in time order, so
		// tests can index into positions.
		if last, ok := lastPerPoint[r.PointURI]; ok && !r.Time.After(last) {
			p.errorf("payload %d: %s goes back in time (%s after %s)",
				i, r.PointURI, r.Time.Format(time.RFC3339), last.Format(time.RFC3339))
		}
		lastPerPoint[r.PointURI] = r.Time

		readings = append(readings, r)
	}
	return readings, p
}

// ── Phase 2: Portfolio Coverage ──
// Every telemetry point must belong to exactly one portfolio building, and
// every building must have telemetry.

func validateCoverage(readings []domain.Reading, buildings []domain.Building) (map[string]map[string]domain.Series, *phase) {
	p := &phase{name: "Phase 2: Portfolio Coverage (points vs buildings)"}

	grouped := make(map[string]map[string][]domain.Reading, len(buildings))
	for _, b := range buildings {
		grouped[b.ID] = map[string][]domain.Reading{}
	}

	orphans := map[string]bool{}
	for _, r := range readings {
		var owner string
		for _, b := range buildings {
			if strings.HasPrefix(r.PointURI, b.SiteURI+"#") {
				owner = b.ID
				break
			}
		}
		if owner == "" {
			orphans[r.PointURI] = true
			continue
		}
		grouped[owner][r.PointURI] = append(grouped[owner][r.PointURI], r)
	}
	for _, uri := range sortedKeys(orphans) {
		p.errorf("point %s does not belong to any portfolio building", uri)
	}

	series := make(map[string]map[string]domain.Series, len(buildings))
	for _, b := range buildings {
		if len(grouped[b.ID]) == 0 {
			p.errorf("building %s has no telemetry", b.ID)
			continue
		}
		byPoint := make(map[string]domain.Series, len(grouped[b.ID]))
		for uri, rs := range grouped[b.ID] {
			byPoint[uri] = domain.NewSeries(rs)
		}
		series[b.ID] = byPoint
	}
	return series, p
}

// ── Phase 3: Evaluation Soundness ──
// Every building must evaluate without point failures, and the resulting
// indices must satisfy the invariants the evaluator promises.

func validateEvaluation(buildings []domain.Building, grouped map[string]map[string]domain.Series) ([]domain.BuildingReport, *phase) {
	p := &phase{name: "Phase 3: Evaluation Soundness (indices)"}

	reports := make([]domain.BuildingReport, 0, len(buildings))
	for _, b := range buildings {
		byPoint, ok := grouped[b.ID]
		if !ok {
			continue
		}

		idx, failures, err := comfort.EvaluateBuilding(b, byPoint)
		if err != nil {
			p.errorf("building %s: %v", b.ID, err)
			continue
		}
		for _, f := range failures {
			p.errorf("building %s: point %s dropped: %v", b.ID, f.PointURI, f.Err)
		}

		checkIndices(p, b.ID, idx)
		reports = append(reports, domain.BuildingReport{
			RunID:        "fixture-validation",
			BuildingID:   b.ID,
			BuildingName: b.Name,
			Indices:      idx,
			PointCount:   len(byPoint),
			PointsUsed:   len(byPoint) - len(failures),
			ComputedAt:   domain.Now(),
		})
	}
	return reports, p
}

func checkIndices(p *phase, id string, idx domain.Indices) {
	fractions := map[string]float64{
		"range_outlier":       idx.RangeOutlier,
		"daily_range_outlier": idx.DailyRangeOutlier,
		"combined_outlier":    idx.CombinedOutlier,
		"overcooling_outlier": idx.OvercoolingOutlier,
		"overheating_outlier": idx.OverheatingOutlier,
	}
	for _, name := range sortedKeys(fractions) {
		if v := fractions[name]; v < 0 || v > 1 {
			p.errorf("building %s: %s=%.2f outside [0, 1]", id, name, v)
		}
	}

	// Combined is the mean of range and daily range, up to per-point rounding.
	expected := (idx.RangeOutlier + idx.DailyRangeOutlier) / 2
	if diff := idx.CombinedOutlier - expected; diff > 0.02 || diff < -0.02 {
		p.errorf("building %s: combined_outlier=%.2f, expected about %.2f", id, idx.CombinedOutlier, expected)
	}

	if idx.DegreeHours < 0 {
		p.errorf("building %s: degree_hours=%.2f is negative", id, idx.DegreeHours)
	}
	if idx.HourlyVariance < 0 {
		p.errorf("building %s: hourly_variance=%.2f is negative", id, idx.HourlyVariance)
	}
	if idx.OccupiedSamples <= 0 {
		p.errorf("building %s: occupied_samples=%d", id, idx.OccupiedSamples)
	}
	if idx.OccupiedDays <= 0 {
		p.errorf("building %s: occupied_days=%d", id, idx.OccupiedDays)
	}
	if idx.HourlyBuckets < 2 {
		p.errorf("building %s: hourly_buckets=%d, variance needs at least 2", id, idx.HourlyBuckets)
	}
}

// ── Phase 4: Report Rendering ──
// The evaluated fixtures must render through every output format, and the
// CSV rows must stay aligned with the canonical header.

func validateRendering(readings []domain.Reading, buildingReports []domain.BuildingReport) *phase {
	p := &phase{name: "Phase 4: Report Rendering (text, json, csv)"}
	if len(buildingReports) == 0 {
		p.errorf("no building reports to render")
		return p
	}

	r := domain.PortfolioReport{
		RunID:       "fixture-validation",
		GeneratedAt: domain.Now(),
		Window:      readingsWindow(readings),
		Buildings:   buildingReports,
		Summary:     domain.Summarize(buildingReports),
	}

	var text bytes.Buffer
	if err := report.WriteText(&text, r); err != nil {
		p.errorf("text: %v", err)
	}
	for _, b := range buildingReports {
		if !strings.Contains(text.String(), b.BuildingID) {
			p.errorf("text: building %s missing from output", b.BuildingID)
		}
	}

	var jsonBuf bytes.Buffer
	if err := report.WriteJSON(&jsonBuf, r); err != nil {
		p.errorf("json: %v", err)
	} else {
		var back domain.PortfolioReport
		if err := json.Unmarshal(jsonBuf.Bytes(), &back); err != nil {
			p.errorf("json: output does not parse back: %v", err)
		} else if len(back.Buildings) != len(r.Buildings) {
			p.errorf("json: %d buildings in, %d out", len(r.Buildings), len(back.Buildings))
		}
	}

	var csvBuf bytes.Buffer
	if err := report.WriteCSV(&csvBuf, r, true); err != nil {
		p.errorf("csv: %v", err)
		return p
	}
	rows, err := csv.NewReader(&csvBuf).ReadAll()
	if err != nil {
		p.errorf("csv: output does not parse back: %v", err)
		return p
	}
	if len(rows) != len(buildingReports)+1 {
		p.errorf("csv: expected %d rows, got %d", len(buildingReports)+1, len(rows))
		return p
	}
	for i, row := range rows {
		if len(row) != len(report.CSVHeader) {
			p.errorf("csv row %d: %d columns, header has %d", i, len(row), len(report.CSVHeader))
		}
	}
	return p
}

// ── Helpers ──

func readingsWindow(readings []domain.Reading) domain.Window {
	var w domain.Window
	for i, r := range readings {
		if i == 0 || r.Time.Before(w.Start) {
			w.Start = r.Time
		}
		if i == 0 || r.Time.After(w.End) {
			w.End = r.Time
		}
	}
	return w
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
