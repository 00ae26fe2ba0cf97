package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/comfortsense/comfort-analytics/internal/comfort"
	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/portfolio"
)

// Fixtures are generated by cmd/genfixtures; the assertions below come from
// the stats it prints.
const fixtureDir = "../../data/fixtures"

// loadFixtureReadings runs every committed telemetry payload through the
// production transformer.
func loadFixtureReadings(t *testing.T) []domain.Reading {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(fixtureDir, "telemetry.json"))
	require.NoError(t, err)

	var payloads []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &payloads))

	tr := NewTransformer()
	readings := make([]domain.Reading, 0, len(payloads))
	for _, p := range payloads {
		r, err := tr.Transform(context.Background(), domain.TelemetryMessage{Value: p})
		require.NoError(t, err)
		readings = append(readings, r)
	}
	return readings
}

func TestFixtureTelemetryParses(t *testing.T) {
	readings := loadFixtureReadings(t)
	require.Len(t, readings, 96)

	first := readings[0]
	require.Equal(t, "http://buildsys.org/ontologies/bldg1#zat_1", first.PointURI)
	require.Equal(t, 69.2, first.Value)

	// The 03:00 sample reports 20.5 °C and must normalize to °F.
	celsius := readings[3]
	require.Equal(t, 68.9, celsius.Value)
}

func TestFixtureIndices(t *testing.T) {
	readings := loadFixtureReadings(t)

	manifest, err := portfolio.Load(filepath.Join(fixtureDir, "portfolio.yaml"))
	require.NoError(t, err)
	buildings, err := manifest.Resolve()
	require.NoError(t, err)
	require.Len(t, buildings, 2)

	want := map[string]domain.Indices{
		"bldg1": {
			RangeOutlier:       0.07,
			CombinedOutlier:    0.04,
			DegreeHours:        0.05,
			OccupiedMean:       74.25,
			HourlyVariance:     0.63,
			OverheatingOutlier: 0.07,
			OccupiedSamples:    16,
			OccupiedDays:       2,
			HourlyBuckets:      16,
		},
		"bldg2": {
			RangeOutlier:       0.51,
			CombinedOutlier:    0.26,
			DegreeHours:        1.35,
			OccupiedMean:       74.75,
			HourlyVariance:     0.62,
			OverheatingOutlier: 0.51,
			OccupiedSamples:    16,
			OccupiedDays:       2,
			HourlyBuckets:      16,
		},
	}

	for _, b := range buildings {
		grouped := map[string][]domain.Reading{}
		for _, r := range readings {
			if strings.HasPrefix(r.PointURI, b.SiteURI+"#") {
				grouped[r.PointURI] = append(grouped[r.PointURI], r)
			}
		}
		require.Len(t, grouped, 2, "building %s", b.ID)

		byPoint := make(map[string]domain.Series, len(grouped))
		for uri, rs := range grouped {
			byPoint[uri] = domain.NewSeries(rs)
		}

		got, failures, err := comfort.EvaluateBuilding(b, byPoint)
		require.NoError(t, err)
		require.Empty(t, failures)
		if diff := cmp.Diff(want[b.ID], got); diff != "" {
			t.Errorf("indices mismatch for %s (-want +got):\n%s", b.ID, diff)
		}
	}
}
