package brick

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfortsense/comfort-analytics/internal/domain"
	"github.com/comfortsense/comfort-analytics/internal/observability"
)

// --- mock for cache tests ---

type countingResolver struct {
	calls  int
	points []domain.Point
	err    error
}

func (m *countingResolver) Points(_ context.Context, _ string) ([]domain.Point, error) {
	m.calls++
	return m.points, m.err
}

// --- CachedResolver tests ---

func TestCachedResolver_CacheHit(t *testing.T) {
	inner := &countingResolver{points: []domain.Point{{URI: testSite + "#zat_1", Site: testSite}}}
	cached := NewCachedResolver(inner, 10, observability.NewMetricsForTesting())

	p1, err := cached.Points(context.Background(), testSite)
	require.NoError(t, err)
	require.Len(t, p1, 1)

	p2, err := cached.Points(context.Background(), testSite)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedResolver_DifferentSitesMiss(t *testing.T) {
	inner := &countingResolver{points: []domain.Point{{URI: "urn:p"}}}
	cached := NewCachedResolver(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.Points(context.Background(), "http://buildsys.org/ontologies/bldg1")
	_, _ = cached.Points(context.Background(), "http://buildsys.org/ontologies/bldg2")

	assert.Equal(t, 2, inner.calls)
}

func TestCachedResolver_ErrorsNotCached(t *testing.T) {
	inner := &countingResolver{err: errors.New("endpoint down")}
	cached := NewCachedResolver(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Points(context.Background(), testSite)
	require.Error(t, err)

	_, err = cached.Points(context.Background(), testSite)
	require.Error(t, err)

	assert.Equal(t, 2, inner.calls, "failed lookups retry the inner resolver")
}

// --- LRU cache unit tests ---

func pts(uri string) []domain.Point {
	return []domain.Point{{URI: uri}}
}

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", pts("urn:a"))
	c.put("b", pts("urn:b"))

	points, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "urn:a", points[0].URI)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", pts("urn:a"))
	c.put("b", pts("urn:b"))
	c.put("c", pts("urn:c")) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	points, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "urn:b", points[0].URI)

	points, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "urn:c", points[0].URI)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", pts("urn:a"))
	c.put("b", pts("urn:b"))

	// Access "a" to promote it
	c.get("a")

	// Insert "c", which should evict "b" (LRU), not "a"
	c.put("c", pts("urn:c"))

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", pts("urn:a1"))
	c.put("a", pts("urn:a2"))

	points, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "urn:a2", points[0].URI)
}
