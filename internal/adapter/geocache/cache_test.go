package geocache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

// --- mock for cache tests ---

type countingGeocoder struct {
	searchCalls  int
	reverseCalls int
	results      []domain.GeocodingResult
	reverse      domain.GeocodingResult
	err          error
}

func (m *countingGeocoder) Search(_ context.Context, _ string) ([]domain.GeocodingResult, error) {
	m.searchCalls++
	return m.results, m.err
}

func (m *countingGeocoder) Reverse(_ context.Context, _ domain.Coordinate) (domain.GeocodingResult, error) {
	m.reverseCalls++
	return m.reverse, m.err
}

var paris = domain.GeocodingResult{
	Coordinate:  domain.Coordinate{Lat: 48.8566, Lon: 2.3522},
	DisplayName: "Paris, France",
}

// --- CachedGeocoder tests ---

func TestCachedGeocoder_SearchCacheHit(t *testing.T) {
	inner := &countingGeocoder{results: []domain.GeocodingResult{paris}}
	cached := New(inner, 10, observability.NewMetricsForTesting())

	r1, err := cached.Search(context.Background(), "Paris")
	require.NoError(t, err)
	require.Len(t, r1, 1)

	r2, err := cached.Search(context.Background(), "  paris ")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)

	assert.Equal(t, 1, inner.searchCalls, "should only call inner once")
}

func TestCachedGeocoder_SearchEmptyNotCached(t *testing.T) {
	inner := &countingGeocoder{results: []domain.GeocodingResult{}}
	cached := New(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.Search(context.Background(), "Xyzzyville")
	_, _ = cached.Search(context.Background(), "Xyzzyville")

	assert.Equal(t, 2, inner.searchCalls)
}

func TestCachedGeocoder_SearchErrorNotCached(t *testing.T) {
	inner := &countingGeocoder{err: domain.ErrGeocodingUnavailable}
	cached := New(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Search(context.Background(), "Paris")
	assert.True(t, errors.Is(err, domain.ErrGeocodingUnavailable))

	inner.err = nil
	inner.results = []domain.GeocodingResult{paris}
	results, err := cached.Search(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 2, inner.searchCalls)
}

func TestCachedGeocoder_CallerMutationDoesNotLeak(t *testing.T) {
	inner := &countingGeocoder{results: []domain.GeocodingResult{paris}}
	cached := New(inner, 10, observability.NewMetricsForTesting())

	r1, _ := cached.Search(context.Background(), "Paris")
	r1[0].DisplayName = "mutated"

	r2, _ := cached.Search(context.Background(), "Paris")
	assert.Equal(t, "Paris, France", r2[0].DisplayName)
}

func TestCachedGeocoder_ReverseCacheHit(t *testing.T) {
	inner := &countingGeocoder{reverse: paris}
	cached := New(inner, 10, observability.NewMetricsForTesting())

	_, err := cached.Reverse(context.Background(), paris.Coordinate)
	require.NoError(t, err)
	_, err = cached.Reverse(context.Background(), paris.Coordinate)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.reverseCalls, "should only call inner once")
}

func TestCachedGeocoder_DifferentKeysMiss(t *testing.T) {
	inner := &countingGeocoder{results: []domain.GeocodingResult{paris}}
	cached := New(inner, 10, observability.NewMetricsForTesting())

	_, _ = cached.Search(context.Background(), "Paris")
	_, _ = cached.Search(context.Background(), "Tokyo")

	assert.Equal(t, 2, inner.searchCalls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache[string](3)

	c.put("a", "A")
	c.put("b", "B")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.put("c", "C") // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")
	assert.Equal(t, 2, c.len())

	v, ok := c.get("c")
	assert.True(t, ok)
	assert.Equal(t, "C", v)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A")
	c.put("b", "B")
	c.get("a")
	c.put("c", "C")

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache[string](2)

	c.put("a", "A1")
	c.put("a", "A2")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "A2", v)
	assert.Equal(t, 1, c.len())
}
