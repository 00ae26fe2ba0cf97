// Package brick resolves air temperature sensor points from a Brick
// metadata graph served over a SPARQL endpoint.
package brick

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/comfortsense/comfort-analytics/internal/adapter/mortar"
	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
)

// SensorClass is the Brick class whose instances the resolver selects.
const SensorClass = "https://brickschema.org/schema/Brick#Zone_Air_Temperature_Sensor"

// ErrNoPoints is returned when the metadata graph holds no matching
// sensors for a site.
var ErrNoPoints = errors.New("no air temperature points for site")

// SPARQLClient runs queries against the metadata endpoint.
type SPARQLClient interface {
	Query(ctx context.Context, query string) ([]mortar.Binding, error)
}

// PointsQuery builds the SPARQL that finds every zone air temperature
// sensor attached to a site, following subclass chains so specialized
// sensor classes match too.
func PointsQuery(siteURI string) string {
	return fmt.Sprintf(`PREFIX brick: <https://brickschema.org/schema/Brick#>
PREFIX rdf: <http://www.w3.org/1999/02/22-rdf-syntax-ns#>
PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT ?point ?class WHERE {
  ?point rdf:type/rdfs:subClassOf* brick:Zone_Air_Temperature_Sensor .
  ?point rdf:type ?class .
  ?point brick:isPointOf/brick:isPartOf* <%s> .
}`, siteURI)
}

// Resolver implements domain.PointResolver over a SPARQL endpoint.
type Resolver struct {
	client  SPARQLClient
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewResolver creates a metadata resolver backed by the given endpoint.
func NewResolver(client SPARQLClient, logger *slog.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{client: client, logger: logger, metrics: metrics}
}

// Points returns the site's sensor points, de-duplicated and sorted by
// URI. Errs with ErrNoPoints when the graph has no matching sensors.
func (r *Resolver) Points(ctx context.Context, siteURI string) ([]domain.Point, error) {
	bindings, err := r.client.Query(ctx, PointsQuery(siteURI))
	if err != nil {
		return nil, fmt.Errorf("resolve points for %s: %w", siteURI, err)
	}

	seen := make(map[string]struct{}, len(bindings))
	points := make([]domain.Point, 0, len(bindings))
	for _, b := range bindings {
		if b.Point == "" {
			continue
		}
		if _, dup := seen[b.Point]; dup {
			continue
		}
		seen[b.Point] = struct{}{}
		points = append(points, domain.Point{URI: b.Point, Class: b.Class, Site: siteURI})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w", siteURI, ErrNoPoints)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].URI < points[j].URI })

	if r.metrics != nil {
		r.metrics.PointsResolved.Add(float64(len(points)))
	}
	r.logger.Debug("resolved points", "site", siteURI, "count", len(points))
	return points, nil
}
