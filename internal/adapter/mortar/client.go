// Package mortar talks to a Mortar-style building data service. The
// service exposes the timeseries rows behind a point URI and a SPARQL
// endpoint over the building metadata graph.
package mortar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
)

// ErrPointNotFound is returned when the service has no data stream for
// the requested point URI.
var ErrPointNotFound = errors.New("point not found")

// Client implements domain.SeriesFetcher against the Mortar HTTP API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Mortar API client. An empty token sends
// unauthenticated requests, which the public testbed accepts.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
		metrics: metrics,
	}
}

// Series fetches the readings for one point inside the window, sorted
// and de-duplicated. Both window bounds are inclusive.
func (c *Client) Series(ctx context.Context, pointURI string, w domain.Window) (domain.Series, error) {
	params := url.Values{
		"uri":   {pointURI},
		"start": {w.Start.UTC().Format(time.RFC3339)},
		"end":   {w.End.UTC().Format(time.RFC3339)},
	}
	fullURL := c.baseURL + "/data/uris?" + params.Encode()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("data", "error", start)
		return nil, fmt.Errorf("data request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.observe("data", "not_found", start)
		return nil, fmt.Errorf("%s: %w", pointURI, ErrPointNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.observe("data", "error", start)
		return nil, fmt.Errorf("mortar API error: status %d: %s", resp.StatusCode, body)
	}

	var dataResp dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dataResp); err != nil {
		c.observe("data", "error", start)
		return nil, fmt.Errorf("decode response: %w", err)
	}
	c.observe("data", "success", start)

	readings := make([]domain.Reading, 0, len(dataResp.Rows))
	for _, row := range dataResp.Rows {
		ts, err := time.Parse(time.RFC3339, row.Time)
		if err != nil {
			return nil, fmt.Errorf("parse row time %q: %w", row.Time, err)
		}
		readings = append(readings, domain.Reading{
			PointURI: pointURI,
			Time:     ts.UTC(),
			Value:    row.Value,
		})
	}
	if c.metrics != nil {
		c.metrics.ReadingsFetched.Add(float64(len(readings)))
	}
	c.logger.Debug("fetched series", "point", pointURI, "rows", len(readings))
	return domain.NewSeries(readings), nil
}

// Query posts a SPARQL query against the metadata graph and returns
// its bindings.
func (c *Client) Query(ctx context.Context, query string) ([]Binding, error) {
	payload, err := json.Marshal(sparqlRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sparql", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe("sparql", "error", start)
		return nil, fmt.Errorf("sparql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.observe("sparql", "error", start)
		return nil, fmt.Errorf("mortar API error: status %d: %s", resp.StatusCode, body)
	}

	var queryResp sparqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		c.observe("sparql", "error", start)
		return nil, fmt.Errorf("decode response: %w", err)
	}
	c.observe("sparql", "success", start)

	return queryResp.Results, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) observe(endpoint, outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.MortarRequests.WithLabelValues(endpoint, outcome).Inc()
	c.metrics.MortarDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// Mortar API request and response types.

type dataResponse struct {
	Rows []dataRow `json:"rows"`
}

type dataRow struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

type sparqlRequest struct {
	Query string `json:"query"`
}

type sparqlResponse struct {
	Results []Binding `json:"results"`
}

// Binding is one row of a SPARQL result set.
type Binding struct {
	Point string `json:"point"`
	Class string `json:"class"`
	Site  string `json:"site,omitempty"`
}
