// Package portfolio loads the building manifest that drives an
// evaluation run. The manifest is YAML with a defaults section and one
// entry per building; entries override defaults field by field.
package portfolio

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

var validate = validator.New()

// Duration accepts Go duration strings such as "15m" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Schedule is the daily occupied window on a 24-hour clock. The end
// hour is exclusive.
type Schedule struct {
	StartHour int `yaml:"start_hour" validate:"min=0,max=23"`
	EndHour   int `yaml:"end_hour" validate:"min=1,max=24,gtfield=StartHour"`
}

// Seasons names the months the summer and winter comfort bands take
// effect. Summer runs from its start month up to the month before
// winter starts, wrapping over the new year when needed.
type Seasons struct {
	SummerStartMonth int `yaml:"summer_start_month" validate:"min=1,max=12"`
	WinterStartMonth int `yaml:"winter_start_month" validate:"min=1,max=12"`
}

// Bands holds the seasonal comfort setpoints in degrees Fahrenheit.
type Bands struct {
	SummerLow  float64 `yaml:"summer_low" validate:"gt=0"`
	SummerHigh float64 `yaml:"summer_high" validate:"gtfield=SummerLow"`
	WinterLow  float64 `yaml:"winter_low" validate:"gt=0"`
	WinterHigh float64 `yaml:"winter_high" validate:"gtfield=WinterLow"`
}

// Defaults applies to every building an entry does not override.
type Defaults struct {
	Timezone            string   `yaml:"timezone" validate:"omitempty,timezone"`
	Schedule            Schedule `yaml:"schedule"`
	Seasons             Seasons  `yaml:"seasons"`
	Bands               Bands    `yaml:"bands"`
	DailyRangeThreshold float64  `yaml:"daily_range_threshold" validate:"gt=0"`
	SampleInterval      Duration `yaml:"sample_interval"`
}

// Entry describes one building. Site is the URI the metadata resolver
// scopes its point queries to.
type Entry struct {
	ID                  string    `yaml:"id" validate:"required"`
	Name                string    `yaml:"name,omitempty"`
	Site                string    `yaml:"site" validate:"required,uri"`
	Timezone            string    `yaml:"timezone,omitempty" validate:"omitempty,timezone"`
	Schedule            *Schedule `yaml:"schedule,omitempty"`
	Seasons             *Seasons  `yaml:"seasons,omitempty"`
	Bands               *Bands    `yaml:"bands,omitempty"`
	DailyRangeThreshold *float64  `yaml:"daily_range_threshold,omitempty"`
	SampleInterval      *Duration `yaml:"sample_interval,omitempty"`
}

// Manifest is the parsed portfolio file.
type Manifest struct {
	Defaults  Defaults `yaml:"defaults"`
	Buildings []Entry  `yaml:"buildings" validate:"min=1,unique=ID"`
}

func builtinDefaults() Defaults {
	return Defaults{
		Timezone:            "UTC",
		Schedule:            Schedule{StartHour: 9, EndHour: 17},
		Seasons:             Seasons{SummerStartMonth: 5, WinterStartMonth: 11},
		Bands:               Bands{SummerLow: 73, SummerHigh: 79, WinterLow: 69, WinterHigh: 75},
		DailyRangeThreshold: 10,
		SampleInterval:      Duration(15 * time.Minute),
	}
}

// Load reads and validates a portfolio manifest. Fields absent from
// the file fall back to built-in defaults.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read portfolio: %w", err)
	}
	m := &Manifest{Defaults: builtinDefaults()}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse portfolio: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks structural rules and the cross-field constraints the
// struct tags cannot express.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid portfolio: %w", err)
	}
	if err := m.Defaults.Seasons.check(); err != nil {
		return fmt.Errorf("invalid portfolio defaults: %w", err)
	}
	for _, e := range m.Buildings {
		if e.Seasons != nil {
			if err := e.Seasons.check(); err != nil {
				return fmt.Errorf("invalid building %s: %w", e.ID, err)
			}
		}
	}
	return nil
}

func (s Seasons) check() error {
	if s.SummerStartMonth >= s.WinterStartMonth {
		return fmt.Errorf("summer must start before winter within the year (summer_start_month %d, winter_start_month %d)",
			s.SummerStartMonth, s.WinterStartMonth)
	}
	return nil
}

// Resolve materializes every entry into a building definition, with
// entry overrides layered on the defaults and timezones parsed.
func (m *Manifest) Resolve() ([]domain.Building, error) {
	out := make([]domain.Building, 0, len(m.Buildings))
	for _, e := range m.Buildings {
		b, err := m.resolve(e)
		if err != nil {
			return nil, fmt.Errorf("building %s: %w", e.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func (m *Manifest) resolve(e Entry) (domain.Building, error) {
	d := m.Defaults

	tz := d.Timezone
	if e.Timezone != "" {
		tz = e.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return domain.Building{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	sched := d.Schedule
	if e.Schedule != nil {
		sched = *e.Schedule
	}
	seasons := d.Seasons
	if e.Seasons != nil {
		seasons = *e.Seasons
	}
	bands := d.Bands
	if e.Bands != nil {
		bands = *e.Bands
	}
	threshold := d.DailyRangeThreshold
	if e.DailyRangeThreshold != nil {
		threshold = *e.DailyRangeThreshold
	}
	interval := d.SampleInterval
	if e.SampleInterval != nil {
		interval = *e.SampleInterval
	}

	name := e.Name
	if name == "" {
		name = e.ID
	}

	return domain.Building{
		ID:       e.ID,
		Name:     name,
		SiteURI:  e.Site,
		Timezone: tz,
		Schedule: domain.Schedule{StartHour: sched.StartHour, EndHour: sched.EndHour},
		Seasons: domain.Seasons{
			SummerStart: time.Month(seasons.SummerStartMonth),
			WinterStart: time.Month(seasons.WinterStartMonth),
		},
		Bands: domain.Bands{
			SummerLow:  bands.SummerLow,
			SummerHigh: bands.SummerHigh,
			WinterLow:  bands.WinterLow,
			WinterHigh: bands.WinterHigh,
		},
		DailyRangeThreshold: threshold,
		SampleInterval:      time.Duration(interval),
		Loc:                 loc,
	}, nil
}
