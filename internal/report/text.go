package report

import (
	"fmt"
	"io"
	"time"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// TextHeader is the canonical header row for text output.
const TextHeader = "building\tname\trange\tdaily_range\tcombined\tdegree_hours\tmean\tvariance\tovercooling\toverheating\tsamples\tpoints"

// SummaryHeader is the header row for the portfolio summary section.
const SummaryHeader = "index\tmean\tmin\tmax\tmin_building\tmax_building"

// WriteText prints a run banner, one row per building, the portfolio
// summary, and any failures.
func WriteText(w io.Writer, r domain.PortfolioReport) error {
	_, err := fmt.Fprintf(w, "run %s  window %s .. %s  buildings %d  failures %d\n\n",
		r.RunID,
		r.Window.Start.Format(time.RFC3339),
		r.Window.End.Format(time.RFC3339),
		len(r.Buildings), len(r.Failures),
	)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, TextHeader); err != nil {
		return err
	}
	for _, b := range r.Buildings {
		_, err := fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%d/%d\n",
			b.BuildingID, b.BuildingName,
			b.Indices.RangeOutlier, b.Indices.DailyRangeOutlier, b.Indices.CombinedOutlier,
			b.Indices.DegreeHours, b.Indices.OccupiedMean, b.Indices.HourlyVariance,
			b.Indices.OvercoolingOutlier, b.Indices.OverheatingOutlier,
			b.Indices.OccupiedSamples, b.PointsUsed, b.PointCount,
		)
		if err != nil {
			return err
		}
	}

	if len(r.Summary) > 0 {
		if _, err := fmt.Fprintf(w, "\nportfolio summary\n"); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, SummaryHeader); err != nil {
			return err
		}
		for _, s := range r.Summary {
			_, err := fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
				s.Index, s.Mean, s.Min, s.Max, s.MinBuilding, s.MaxBuilding)
			if err != nil {
				return err
			}
		}
	}

	if len(r.Failures) > 0 {
		if _, err := fmt.Fprintf(w, "\nfailures\n"); err != nil {
			return err
		}
		for _, f := range r.Failures {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", f.BuildingID, f.Reason); err != nil {
				return err
			}
		}
	}
	return nil
}
