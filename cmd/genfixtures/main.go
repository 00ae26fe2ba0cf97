// Command genfixtures generates deterministic zone-temperature telemetry
// fixtures and a matching portfolio manifest for the test suites. It runs
// every payload through the actual telemetry parser and the comfort
// evaluator, so fixtures match real ingest behavior and the printed indices
// can seed test assertions.
//
// Usage:
//
//	go run ./cmd/genfixtures \
//	  -out data/fixtures \
//	  -buildings 2 -points 2 -days 1 -interval 1h
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comfortsense/comfort-analytics/internal/comfort"
	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/portfolio"
)

// baseDate is a Monday, so default fixtures start on an occupied weekday.
var baseDate = time.Date(2016, time.January, 4, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/fixtures", "output directory for fixture files")
	buildings := flag.Int("buildings", 2, "number of buildings")
	points := flag.Int("points", 2, "zone temperature points per building")
	days := flag.Int("days", 1, "days of readings starting at the base date")
	interval := flag.Duration("interval", time.Hour, "spacing between samples")
	jitter := flag.Float64("jitter", 0, "uniform noise amplitude in degrees F")
	seed := flag.Int64("seed", 1, "rng seed for jitter")
	flag.Parse()

	if *buildings < 1 || *points < 1 || *days < 1 || *interval <= 0 {
		flag.Usage()
		return fmt.Errorf("invalid flags: -buildings, -points and -days must be positive, -interval must be a positive duration")
	}

	rng := rand.New(rand.NewSource(*seed))
	wires, readings, err := generate(*buildings, *points, *days, *interval, *jitter, rng)
	if err != nil {
		return err
	}
	log.Printf("total: %d readings across %d buildings", len(wires), *buildings)

	telemetryPath := filepath.Join(*out, "telemetry.json")
	if err := writeJSON(telemetryPath, wires); err != nil {
		return fmt.Errorf("writing telemetry fixture: %w", err)
	}
	log.Printf("wrote telemetry fixture: %s", telemetryPath)

	manifest := buildManifest(*buildings, *interval)
	portfolioPath := filepath.Join(*out, "portfolio.yaml")
	if err := writeYAML(portfolioPath, manifest); err != nil {
		return fmt.Errorf("writing portfolio fixture: %w", err)
	}
	log.Printf("wrote portfolio fixture: %s", portfolioPath)

	resolved, err := manifest.Resolve()
	if err != nil {
		return fmt.Errorf("resolving generated manifest: %w", err)
	}
	printStats(resolved, readings)
	return nil
}

// generate produces one synthetic series per point: a daily sinusoid peaking
// mid-afternoon, offset per building and per point so indices differ across
// the portfolio. Every seventh sample reports in Celsius to exercise unit
// normalization on the ingest path.
func generate(buildings, points, days int, interval time.Duration, jitter float64, rng *rand.Rand) ([]domain.WireReading, []domain.Reading, error) {
	samples := int(time.Duration(days) * 24 * time.Hour / interval)
	var wires []domain.WireReading
	var readings []domain.Reading
	for b := 1; b <= buildings; b++ {
		site := fmt.Sprintf("http://buildsys.org/ontologies/bldg%d", b)
		for p := 1; p <= points; p++ {
			uri := fmt.Sprintf("%s#zat_%d", site, p)
			for i := 0; i < samples; i++ {
				at := baseDate.Add(time.Duration(i) * interval)
				hour := float64(at.Hour()) + float64(at.Minute())/60
				v := 71 + 0.5*float64(b) + 0.3*float64(p) + 3*math.Sin(2*math.Pi*(hour-8)/24)
				if jitter > 0 {
					v += (rng.Float64() - 0.5) * jitter
				}

				wire := domain.WireReading{
					Point: uri,
					TS:    at.Format(time.RFC3339),
					Value: round1(v),
				}
				if i%7 == 3 {
					wire.Value = round1((v - 32) * 5 / 9)
					wire.Unit = "C"
				}
				wires = append(wires, wire)

				// Run the actual ingest parse, so a payload that production
				// would reject never lands in the tree.
				payload, err := json.Marshal(wire)
				if err != nil {
					return nil, nil, fmt.Errorf("marshal wire reading: %w", err)
				}
				reading, err := domain.ParseTelemetry(domain.TelemetryMessage{Value: payload})
				if err != nil {
					return nil, nil, fmt.Errorf("generated payload does not parse: %w", err)
				}
				readings = append(readings, reading)
			}
		}
	}
	return wires, readings, nil
}

// buildManifest mirrors the built-in portfolio defaults, with the sample
// interval matched to the generated data so degree-hour weighting lines up
// when the fixture is evaluated.
func buildManifest(buildings int, interval time.Duration) *portfolio.Manifest {
	m := &portfolio.Manifest{
		Defaults: portfolio.Defaults{
			Timezone:            "UTC",
			Schedule:            portfolio.Schedule{StartHour: 9, EndHour: 17},
			Seasons:             portfolio.Seasons{SummerStartMonth: 5, WinterStartMonth: 11},
			Bands:               portfolio.Bands{SummerLow: 73, SummerHigh: 79, WinterLow: 69, WinterHigh: 75},
			DailyRangeThreshold: 10,
			SampleInterval:      portfolio.Duration(interval),
		},
	}
	for b := 1; b <= buildings; b++ {
		m.Buildings = append(m.Buildings, portfolio.Entry{
			ID:   fmt.Sprintf("bldg%d", b),
			Name: fmt.Sprintf("Building %d", b),
			Site: fmt.Sprintf("http://buildsys.org/ontologies/bldg%d", b),
		})
	}
	return m
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func writeYAML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func printStats(buildings []domain.Building, readings []domain.Reading) {
	grouped := make(map[string]map[string][]domain.Reading, len(buildings))
	for _, b := range buildings {
		grouped[b.ID] = map[string][]domain.Reading{}
	}
	for _, r := range readings {
		for _, b := range buildings {
			if strings.HasPrefix(r.PointURI, b.SiteURI+"#") {
				grouped[b.ID][r.PointURI] = append(grouped[b.ID][r.PointURI], r)
				break
			}
		}
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total readings: %d\n", len(readings))
	for _, b := range buildings {
		byPoint := make(map[string]domain.Series, len(grouped[b.ID]))
		for uri, rs := range grouped[b.ID] {
			byPoint[uri] = domain.NewSeries(rs)
		}
		idx, failures, err := comfort.EvaluateBuilding(b, byPoint)
		if err != nil {
			fmt.Printf("%s: evaluation failed: %v\n", b.ID, err)
			continue
		}
		for _, f := range failures {
			fmt.Printf("%s: point %s dropped: %v\n", b.ID, f.PointURI, f.Err)
		}
		fmt.Printf("%s: range=%.2f daily_range=%.2f combined=%.2f degree_hours=%.2f mean=%.2f variance=%.2f overcooling=%.2f overheating=%.2f samples=%d days=%d buckets=%d\n",
			b.ID, idx.RangeOutlier, idx.DailyRangeOutlier, idx.CombinedOutlier,
			idx.DegreeHours, idx.OccupiedMean, idx.HourlyVariance,
			idx.OvercoolingOutlier, idx.OverheatingOutlier,
			idx.OccupiedSamples, idx.OccupiedDays, idx.HourlyBuckets)
	}
}
