package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Reading is a single zone air-temperature sample in degrees Fahrenheit.
type Reading struct {
	PointURI string    `json:"point"`
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
}

// Series is a time-ordered sequence of readings from one sensor point.
type Series []Reading

// NewSeries copies rs into a Series sorted ascending by timestamp. Readings
// sharing a timestamp collapse to the last one given, so replays and
// overlapping fetches do not double-count samples.
func NewSeries(rs []Reading) Series {
	if len(rs) == 0 {
		return nil
	}
	s := make(Series, len(rs))
	copy(s, rs)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time.Before(s[j].Time) })

	out := s[:1]
	for _, r := range s[1:] {
		if r.Time.Equal(out[len(out)-1].Time) {
			out[len(out)-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

// Clip returns the readings falling inside w, bounds inclusive.
func (s Series) Clip(w Window) Series {
	var out Series
	for _, r := range s {
		if w.Contains(r.Time) {
			out = append(out, r)
		}
	}
	return out
}

// TelemetryMessage is an unprocessed message from the telemetry topic.
type TelemetryMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// WireReading is the flat JSON payload building gateways publish per sample.
type WireReading struct {
	Point string  `json:"point"`
	TS    string  `json:"ts"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

// ParseTelemetry deserializes a telemetry message into a Reading, normalizing
// the unit to °F. Celsius payloads are converted; unknown units are rejected
// so bad gateway configs surface instead of skewing indices.
func ParseTelemetry(msg TelemetryMessage) (Reading, error) {
	var wire WireReading
	if err := json.Unmarshal(msg.Value, &wire); err != nil {
		return Reading{}, fmt.Errorf("parse telemetry: %w", err)
	}
	if wire.Point == "" {
		return Reading{}, fmt.Errorf("parse telemetry: missing point URI")
	}

	ts, err := time.Parse(time.RFC3339, wire.TS)
	if err != nil {
		return Reading{}, fmt.Errorf("parse telemetry timestamp %q: %w", wire.TS, err)
	}

	value, err := normalizeTemperature(wire.Value, wire.Unit)
	if err != nil {
		return Reading{}, fmt.Errorf("parse telemetry: %w", err)
	}

	return Reading{
		PointURI: wire.Point,
		Time:     ts.UTC(),
		Value:    value,
	}, nil
}

// normalizeTemperature converts a sample to °F based on its declared unit.
// An empty unit means the gateway uses the testbed default (°F).
func normalizeTemperature(value float64, unit string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "f", "degf", "fahrenheit":
		return value, nil
	case "c", "degc", "celsius":
		return value*9.0/5.0 + 32.0, nil
	default:
		return 0, fmt.Errorf("unsupported temperature unit %q", unit)
	}
}
