package domain

import (
	"math"
	"sort"
)

// IndexNames lists the indices in report order.
var IndexNames = []string{
	"range_outlier",
	"daily_range_outlier",
	"combined_outlier",
	"degree_hours",
	"occupied_mean",
	"hourly_variance",
	"overcooling_outlier",
	"overheating_outlier",
}

// IndexValue extracts one named index from a result. Unknown names read
// as zero.
func IndexValue(idx Indices, name string) float64 {
	switch name {
	case "range_outlier":
		return idx.RangeOutlier
	case "daily_range_outlier":
		return idx.DailyRangeOutlier
	case "combined_outlier":
		return idx.CombinedOutlier
	case "degree_hours":
		return idx.DegreeHours
	case "occupied_mean":
		return idx.OccupiedMean
	case "hourly_variance":
		return idx.HourlyVariance
	case "overcooling_outlier":
		return idx.OvercoolingOutlier
	case "overheating_outlier":
		return idx.OverheatingOutlier
	default:
		return 0
	}
}

// Summarize computes the cross-portfolio distribution of every index:
// the mean over evaluated buildings plus the extremes with the
// buildings that set them. Returns nil when no building was evaluated.
func Summarize(reports []BuildingReport) []IndexSummary {
	if len(reports) == 0 {
		return nil
	}

	summaries := make([]IndexSummary, 0, len(IndexNames))
	for _, name := range IndexNames {
		s := IndexSummary{Index: name, Min: math.Inf(1), Max: math.Inf(-1)}
		var sum float64
		for _, r := range reports {
			v := IndexValue(r.Indices, name)
			sum += v
			if v < s.Min {
				s.Min = v
				s.MinBuilding = r.BuildingID
			}
			if v > s.Max {
				s.Max = v
				s.MaxBuilding = r.BuildingID
			}
		}
		s.Mean = math.Round(sum/float64(len(reports))*100) / 100
		summaries = append(summaries, s)
	}
	return summaries
}

// RankBuildings orders building IDs by one index, highest value first,
// with ties broken by ID for stable output.
func RankBuildings(reports []BuildingReport, index string) []string {
	ranked := make([]BuildingReport, len(reports))
	copy(ranked, reports)
	sort.Slice(ranked, func(i, j int) bool {
		vi := IndexValue(ranked[i].Indices, index)
		vj := IndexValue(ranked[j].Indices, index)
		if vi != vj {
			return vi > vj
		}
		return ranked[i].BuildingID < ranked[j].BuildingID
	})

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.BuildingID
	}
	return ids
}
