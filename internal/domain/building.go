package domain

import (
	"time"
)

// Point is a resolved sensor point from the building metadata model.
type Point struct {
	URI   string `json:"uri"`
	Class string `json:"class,omitempty"`
	Site  string `json:"site,omitempty"`
}

// Schedule defines the occupied weekday hours, half-open [StartHour, EndHour)
// on a 24-hour clock. Weekends are always unoccupied.
type Schedule struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Occupied reports whether t (already in building-local time) falls inside
// normal occupied hours: Monday through Friday, StartHour <= hour < EndHour.
func (s Schedule) Occupied(t time.Time) bool {
	wd := t.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	h := t.Hour()
	return h >= s.StartHour && h < s.EndHour
}

// Seasons splits the year into a summer and a winter period by calendar
// month. Summer runs from SummerStart through the month before WinterStart;
// winter wraps the year boundary and covers everything else. SummerStart
// must precede WinterStart within the calendar year; the portfolio loader
// enforces this.
type Seasons struct {
	SummerStart time.Month `json:"summer_start"`
	WinterStart time.Month `json:"winter_start"`
}

// IsSummer reports whether m belongs to the summer period.
func (s Seasons) IsSummer(m time.Month) bool {
	return m >= s.SummerStart && m < s.WinterStart
}

// Bands holds the per-season comfort band bounds in °F.
type Bands struct {
	SummerLow  float64 `json:"summer_low"`
	SummerHigh float64 `json:"summer_high"`
	WinterLow  float64 `json:"winter_low"`
	WinterHigh float64 `json:"winter_high"`
}

// Range returns the [low, high] band for the given season.
func (b Bands) Range(summer bool) (low, high float64) {
	if summer {
		return b.SummerLow, b.SummerHigh
	}
	return b.WinterLow, b.WinterHigh
}

// Window is a study period. Both bounds are inclusive.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window, bounds inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Building describes one portfolio member and its comfort parameters.
type Building struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	SiteURI  string `json:"site_uri"`
	Timezone string `json:"timezone,omitempty"`

	Schedule Schedule `json:"schedule"`
	Seasons  Seasons  `json:"seasons"`
	Bands    Bands    `json:"bands"`

	// DailyRangeThreshold is the occupied daily temperature swing (°F) above
	// which a day counts against the daily-range outlier index.
	DailyRangeThreshold float64 `json:"daily_range_threshold"`

	// SampleInterval is the nominal sensor sampling period, the weight of
	// one sample when accumulating degree-hours.
	SampleInterval time.Duration `json:"sample_interval"`

	// Loc is the parsed Timezone, set by the portfolio loader. Nil means UTC.
	Loc *time.Location `json:"-"`
}

// Location returns the building's timezone, defaulting to UTC.
func (b Building) Location() *time.Location {
	if b.Loc != nil {
		return b.Loc
	}
	return time.UTC
}
