// Package geocache decorates any domain.Geocoder with an in-memory LRU cache.
package geocache

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner    domain.Geocoder
	searches *lruCache[[]domain.GeocodingResult]
	reverses *lruCache[domain.GeocodingResult]
	metrics  *observability.Metrics
}

// New creates a cache decorator around a geocoder. Search and reverse
// results are cached separately, each holding up to maxEntries.
func New(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:    inner,
		searches: newLRUCache[[]domain.GeocodingResult](maxEntries),
		reverses: newLRUCache[domain.GeocodingResult](maxEntries),
		metrics:  metrics,
	}
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	key := strings.ToLower(strings.TrimSpace(query))
	if results, ok := c.searches.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("search", "hit").Inc()
		return cloneResults(results), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("search", "miss").Inc()

	results, err := c.inner.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	// Only cache non-empty results so transient "not found" responses can be retried.
	if len(results) > 0 {
		c.searches.put(key, cloneResults(results))
	}
	return results, nil
}

func (c *CachedGeocoder) Reverse(ctx context.Context, coord domain.Coordinate) (domain.GeocodingResult, error) {
	key := fmt.Sprintf("%.6f,%.6f", coord.Lat, coord.Lon)
	if result, ok := c.reverses.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("reverse", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("reverse", "miss").Inc()

	result, err := c.inner.Reverse(ctx, coord)
	if err != nil {
		return result, err
	}
	if result.DisplayName != "" {
		c.reverses.put(key, result)
	}
	return result, nil
}

func cloneResults(in []domain.GeocodingResult) []domain.GeocodingResult {
	return append([]domain.GeocodingResult(nil), in...)
}
