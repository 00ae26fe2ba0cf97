package domain

import "time"

// Indices holds the computed comfort metrics for one building over a study
// window. Outlier metrics are fractions of occupied samples in [0, 1];
// DegreeHours is °F·h; OccupiedMean is °F; HourlyVariance is °F². All values
// are rounded to two decimals.
type Indices struct {
	RangeOutlier       float64 `json:"range_outlier"`
	DailyRangeOutlier  float64 `json:"daily_range_outlier"`
	CombinedOutlier    float64 `json:"combined_outlier"`
	DegreeHours        float64 `json:"degree_hours"`
	OccupiedMean       float64 `json:"occupied_mean"`
	HourlyVariance     float64 `json:"hourly_variance"`
	OvercoolingOutlier float64 `json:"overcooling_outlier"`
	OverheatingOutlier float64 `json:"overheating_outlier"`

	// Coverage counters, useful for judging how much data backs the numbers.
	OccupiedSamples int `json:"occupied_samples"`
	OccupiedDays    int `json:"occupied_days"`
	HourlyBuckets   int `json:"hourly_buckets"`
}

// BuildingReport is the evaluated result for one building in a run.
type BuildingReport struct {
	RunID        string    `json:"run_id"`
	BuildingID   string    `json:"building_id"`
	BuildingName string    `json:"building_name,omitempty"`
	Window       Window    `json:"window"`
	Indices      Indices   `json:"indices"`
	PointCount   int       `json:"point_count"`
	PointsUsed   int       `json:"points_used"`
	ComputedAt   time.Time `json:"computed_at"`
}

// BuildingFailure records a building that could not be evaluated in a run.
type BuildingFailure struct {
	BuildingID string `json:"building_id"`
	Reason     string `json:"reason"`
}

// IndexSummary is one row of the cross-portfolio aggregation: distribution
// of a single index over all successfully evaluated buildings.
type IndexSummary struct {
	Index       string  `json:"index"`
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	MinBuilding string  `json:"min_building"`
	MaxBuilding string  `json:"max_building"`
}

// PortfolioReport is the outcome of one evaluation run over the whole
// portfolio.
type PortfolioReport struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Window      Window            `json:"window"`
	Buildings   []BuildingReport  `json:"buildings"`
	Failures    []BuildingFailure `json:"failures,omitempty"`
	Summary     []IndexSummary    `json:"summary,omitempty"`
}
