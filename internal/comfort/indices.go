package comfort

import "github.com/comfortsense/comfort-analytics/internal/domain"

// RangeOutlier reports the fraction of occupied samples that fall
// strictly outside the seasonal comfort band. A sample exactly on a
// band edge is in range. Returns 0 when the window has no occupied
// samples.
func RangeOutlier(s domain.Series, p Params) float64 {
	return rangeOutlier(p.occupiedSamples(s), p)
}

// DailyRangeOutlier reports the count of occupied days whose
// temperature swing exceeds the daily range threshold, normalized by
// the count of occupied samples in the window. Denser sampling dilutes
// the ratio. Returns 0 when the window has no occupied samples.
func DailyRangeOutlier(s domain.Series, p Params) float64 {
	v, _ := dailyRangeOutlier(p.occupiedSamples(s), p)
	return v
}

// CombinedOutlier averages RangeOutlier and DailyRangeOutlier.
func CombinedOutlier(s domain.Series, p Params) float64 {
	occ := p.occupiedSamples(s)
	ro := rangeOutlier(occ, p)
	dr, _ := dailyRangeOutlier(occ, p)
	return Round2((ro + dr) / 2)
}

// DegreeHours accumulates how far occupied samples stray beyond the
// seasonal band, in degree-hours. Each sample's exceedance above the
// high or below the low is weighted by the sample interval.
func DegreeHours(s domain.Series, p Params) float64 {
	return degreeHours(p.occupiedSamples(s), p)
}

// OccupiedMean is the mean temperature across occupied samples.
func OccupiedMean(s domain.Series, p Params) (float64, error) {
	return occupiedMean(p.occupiedSamples(s))
}

// HourlyVariance is the sample variance of hourly mean temperatures
// across occupied hours. Readings are bucketed by local date and hour
// before averaging, so sampling density does not skew the spread.
func HourlyVariance(s domain.Series, p Params) (float64, error) {
	v, _, err := hourlyVariance(p.occupiedSamples(s))
	return v, err
}

// OvercoolingOutlier reports the fraction of occupied samples strictly
// below the seasonal low.
func OvercoolingOutlier(s domain.Series, p Params) float64 {
	return coolingOutlier(p.occupiedSamples(s), p)
}

// OverheatingOutlier reports the fraction of occupied samples strictly
// above the seasonal high.
func OverheatingOutlier(s domain.Series, p Params) float64 {
	return heatingOutlier(p.occupiedSamples(s), p)
}

func rangeOutlier(occ []sample, p Params) float64 {
	if len(occ) == 0 {
		return 0
	}
	var out int
	for _, s := range occ {
		low, high := p.Bands.Range(s.summer)
		if s.value < low || s.value > high {
			out++
		}
	}
	return Round2(float64(out) / float64(len(occ)))
}

func dailyRangeOutlier(occ []sample, p Params) (float64, int) {
	if len(occ) == 0 {
		return 0, 0
	}
	type span struct {
		min, max float64
	}
	days := make(map[string]span)
	for _, s := range occ {
		k := s.at.Format(dateLayout)
		d, ok := days[k]
		if !ok {
			days[k] = span{min: s.value, max: s.value}
			continue
		}
		if s.value < d.min {
			d.min = s.value
		}
		if s.value > d.max {
			d.max = s.value
		}
		days[k] = d
	}
	var out int
	for _, d := range days {
		if d.max-d.min > p.DailyRangeThreshold {
			out++
		}
	}
	return Round2(float64(out) / float64(len(occ))), len(days)
}

func degreeHours(occ []sample, p Params) float64 {
	hours := p.interval().Hours()
	var sum float64
	for _, s := range occ {
		low, high := p.Bands.Range(s.summer)
		if s.value > high {
			sum += s.value - high
		}
		if s.value < low {
			sum += low - s.value
		}
	}
	return Round2(sum * hours)
}

func occupiedMean(occ []sample) (float64, error) {
	if len(occ) == 0 {
		return 0, ErrNoOccupiedSamples
	}
	var sum float64
	for _, s := range occ {
		sum += s.value
	}
	return Round2(sum / float64(len(occ))), nil
}

func hourlyVariance(occ []sample) (float64, int, error) {
	type bucket struct {
		sum float64
		n   int
	}
	buckets := make(map[string]bucket)
	for _, s := range occ {
		k := s.at.Format(hourLayout)
		b := buckets[k]
		b.sum += s.value
		b.n++
		buckets[k] = b
	}
	if len(buckets) < 2 {
		return 0, len(buckets), ErrInsufficientHourlyData
	}

	means := make([]float64, 0, len(buckets))
	var total float64
	for _, b := range buckets {
		m := b.sum / float64(b.n)
		means = append(means, m)
		total += m
	}
	grand := total / float64(len(means))
	var ss float64
	for _, m := range means {
		d := m - grand
		ss += d * d
	}
	return Round2(ss / float64(len(means)-1)), len(buckets), nil
}

func coolingOutlier(occ []sample, p Params) float64 {
	if len(occ) == 0 {
		return 0
	}
	var out int
	for _, s := range occ {
		low, _ := p.Bands.Range(s.summer)
		if s.value < low {
			out++
		}
	}
	return Round2(float64(out) / float64(len(occ)))
}

func heatingOutlier(occ []sample, p Params) float64 {
	if len(occ) == 0 {
		return 0
	}
	var out int
	for _, s := range occ {
		_, high := p.Bands.Range(s.summer)
		if s.value > high {
			out++
		}
	}
	return Round2(float64(out) / float64(len(occ)))
}
