package comfort

import (
	"errors"
	"fmt"
	"sort"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// Evaluate computes the full set of indices for one point's series.
// It fails with ErrNoOccupiedSamples when the window holds no occupied
// readings, and with ErrInsufficientHourlyData when too few occupied
// hours exist for the variance.
func Evaluate(s domain.Series, p Params) (domain.Indices, error) {
	occ := p.occupiedSamples(s)
	if len(occ) == 0 {
		return domain.Indices{}, ErrNoOccupiedSamples
	}

	mean, err := occupiedMean(occ)
	if err != nil {
		return domain.Indices{}, err
	}
	variance, buckets, err := hourlyVariance(occ)
	if err != nil {
		return domain.Indices{}, err
	}

	ro := rangeOutlier(occ, p)
	dr, days := dailyRangeOutlier(occ, p)

	return domain.Indices{
		RangeOutlier:       ro,
		DailyRangeOutlier:  dr,
		CombinedOutlier:    Round2((ro + dr) / 2),
		DegreeHours:        degreeHours(occ, p),
		OccupiedMean:       mean,
		HourlyVariance:     variance,
		OvercoolingOutlier: coolingOutlier(occ, p),
		OverheatingOutlier: heatingOutlier(occ, p),
		OccupiedSamples:    len(occ),
		OccupiedDays:       days,
		HourlyBuckets:      buckets,
	}, nil
}

// PointFailure records a point whose series could not be evaluated.
type PointFailure struct {
	PointURI string
	Err      error
}

// EvaluateBuilding evaluates every point series for a building and
// folds the per-point results into one set of building indices. Index
// values are the mean across evaluable points and the sample counters
// sum. Points that cannot be evaluated are reported as failures; the
// call errs only when no point at all could be evaluated.
func EvaluateBuilding(b domain.Building, byPoint map[string]domain.Series) (domain.Indices, []PointFailure, error) {
	if len(byPoint) == 0 {
		return domain.Indices{}, nil, fmt.Errorf("building %s: no point series", b.ID)
	}

	uris := make([]string, 0, len(byPoint))
	for uri := range byPoint {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	p := ParamsFor(b)
	var (
		acc      domain.Indices
		used     int
		failures []PointFailure
	)
	for _, uri := range uris {
		idx, err := Evaluate(byPoint[uri], p)
		if err != nil {
			failures = append(failures, PointFailure{PointURI: uri, Err: err})
			continue
		}
		acc.RangeOutlier += idx.RangeOutlier
		acc.DailyRangeOutlier += idx.DailyRangeOutlier
		acc.CombinedOutlier += idx.CombinedOutlier
		acc.DegreeHours += idx.DegreeHours
		acc.OccupiedMean += idx.OccupiedMean
		acc.HourlyVariance += idx.HourlyVariance
		acc.OvercoolingOutlier += idx.OvercoolingOutlier
		acc.OverheatingOutlier += idx.OverheatingOutlier
		acc.OccupiedSamples += idx.OccupiedSamples
		acc.OccupiedDays += idx.OccupiedDays
		acc.HourlyBuckets += idx.HourlyBuckets
		used++
	}

	if used == 0 {
		errs := make([]error, 0, len(failures)+1)
		errs = append(errs, fmt.Errorf("building %s: no evaluable points", b.ID))
		for _, f := range failures {
			errs = append(errs, fmt.Errorf("%s: %w", f.PointURI, f.Err))
		}
		return domain.Indices{}, failures, errors.Join(errs...)
	}

	n := float64(used)
	acc.RangeOutlier = Round2(acc.RangeOutlier / n)
	acc.DailyRangeOutlier = Round2(acc.DailyRangeOutlier / n)
	acc.CombinedOutlier = Round2(acc.CombinedOutlier / n)
	acc.DegreeHours = Round2(acc.DegreeHours / n)
	acc.OccupiedMean = Round2(acc.OccupiedMean / n)
	acc.HourlyVariance = Round2(acc.HourlyVariance / n)
	acc.OvercoolingOutlier = Round2(acc.OvercoolingOutlier / n)
	acc.OverheatingOutlier = Round2(acc.OverheatingOutlier / n)
	return acc, failures, nil
}
