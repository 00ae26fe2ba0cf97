package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// CSVHeader is the canonical column list for CSV output. Keep this as the
// single source of truth; the row writer must stay in step.
var CSVHeader = []string{
	"building_id", "building_name",
	"range_outlier", "daily_range_outlier", "combined_outlier",
	"degree_hours", "occupied_mean", "hourly_variance",
	"overcooling_outlier", "overheating_outlier",
	"occupied_samples", "occupied_days", "hourly_buckets",
	"points_used", "point_count",
}

// WriteCSV writes one row per building in CSVHeader order.
func WriteCSV(w io.Writer, r domain.PortfolioReport, header bool) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(CSVHeader); err != nil {
			return err
		}
	}
	for _, b := range r.Buildings {
		row := make([]string, 0, len(CSVHeader))
		row = append(row, b.BuildingID, b.BuildingName)
		for _, name := range domain.IndexNames {
			row = append(row, strconv.FormatFloat(domain.IndexValue(b.Indices, name), 'f', 2, 64))
		}
		row = append(row,
			strconv.Itoa(b.Indices.OccupiedSamples),
			strconv.Itoa(b.Indices.OccupiedDays),
			strconv.Itoa(b.Indices.HourlyBuckets),
			strconv.Itoa(b.PointsUsed),
			strconv.Itoa(b.PointCount),
		)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
