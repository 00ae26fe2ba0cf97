// Package comfort computes air-temperature comfort indices over a
// window of zone temperature readings. All indices operate on occupied
// samples only, evaluated in the building's local timezone, and are
// reported rounded to two decimal places in degrees Fahrenheit.
package comfort

import (
	"errors"
	"math"
	"time"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

var (
	// ErrNoOccupiedSamples is returned when a window contains no
	// readings that fall inside the occupancy schedule.
	ErrNoOccupiedSamples = errors.New("no occupied samples in window")

	// ErrInsufficientHourlyData is returned when fewer than two
	// occupied hourly buckets exist, leaving the variance undefined.
	ErrInsufficientHourlyData = errors.New("fewer than two hourly buckets")
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02T15"
)

// Params carries the per-building settings an evaluation needs.
type Params struct {
	Schedule domain.Schedule
	Seasons  domain.Seasons
	Bands    domain.Bands

	// DailyRangeThreshold is the intraday swing, in degrees
	// Fahrenheit, above which an occupied day counts as an outlier.
	DailyRangeThreshold float64

	// SampleInterval is the nominal spacing between readings, used to
	// convert per-sample exceedances into degree-hours.
	SampleInterval time.Duration

	// Location is the building's timezone. Occupancy and season
	// membership are decided in local time. Nil means UTC.
	Location *time.Location
}

// ParamsFor extracts evaluation settings from a building definition.
func ParamsFor(b domain.Building) Params {
	return Params{
		Schedule:            b.Schedule,
		Seasons:             b.Seasons,
		Bands:               b.Bands,
		DailyRangeThreshold: b.DailyRangeThreshold,
		SampleInterval:      b.SampleInterval,
		Location:            b.Location(),
	}
}

func (p Params) interval() time.Duration {
	if p.SampleInterval <= 0 {
		return 15 * time.Minute
	}
	return p.SampleInterval
}

// sample is a reading restated in building-local time with its season
// resolved.
type sample struct {
	at     time.Time
	value  float64
	summer bool
}

func (p Params) occupiedSamples(s domain.Series) []sample {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	occ := make([]sample, 0, len(s))
	for _, r := range s {
		lt := r.Time.In(loc)
		if !p.Schedule.Occupied(lt) {
			continue
		}
		occ = append(occ, sample{at: lt, value: r.Value, summer: p.Seasons.IsSummer(lt.Month())})
	}
	return occ
}

// Round2 rounds to the two decimal places all indices are reported at.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}
