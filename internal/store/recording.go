package store

import (
	"context"
	"log/slog"

	"github.com/comfortsense/comfort-analytics/internal/domain"
)

// RecordingFetcher wraps a SeriesFetcher and persists every series it
// returns, building a local archive that later runs can evaluate
// without touching the upstream API.
type RecordingFetcher struct {
	inner  domain.SeriesFetcher
	store  *Store
	logger *slog.Logger
}

// NewRecordingFetcher creates a write-through decorator around a fetcher.
func NewRecordingFetcher(inner domain.SeriesFetcher, store *Store, logger *slog.Logger) *RecordingFetcher {
	return &RecordingFetcher{inner: inner, store: store, logger: logger}
}

func (r *RecordingFetcher) Series(ctx context.Context, pointURI string, w domain.Window) (domain.Series, error) {
	series, err := r.inner.Series(ctx, pointURI, w)
	if err != nil {
		return nil, err
	}
	// A failed insert only costs the archive copy, not the evaluation.
	if _, err := r.store.InsertReadings(ctx, series); err != nil {
		r.logger.Warn("failed to record fetched series", "point", pointURI, "error", err)
	}
	return series, nil
}
