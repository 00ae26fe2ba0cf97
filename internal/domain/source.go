package domain

import "context"

// PointResolver finds the air temperature sensor points attached to a
// site in the building metadata graph.
type PointResolver interface {
	Points(ctx context.Context, siteURI string) ([]Point, error)
}

// SeriesFetcher retrieves the readings for one point inside a window.
// Implementations return readings sorted by time with the window
// bounds included.
type SeriesFetcher interface {
	Series(ctx context.Context, pointURI string, w Window) (Series, error)
}
