package pipeline

import (
	"context"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// TelemetryTransformer implements Transformer using the domain telemetry
// parser. Unit normalization happens here, so everything downstream works
// in °F.
type TelemetryTransformer struct{}

// NewTransformer creates a TelemetryTransformer.
func NewTransformer() *TelemetryTransformer {
	return &TelemetryTransformer{}
}

func (t *TelemetryTransformer) Transform(_ context.Context, msg domain.TelemetryMessage) (domain.Reading, error) {
	return domain.ParseTelemetry(msg)
}
