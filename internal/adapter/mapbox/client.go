// Package mapbox implements domain.Geocoder against the Mapbox Geocoding API.
// It is an alternative to Nominatim, selected when MAPBOX_TOKEN is set.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Search converts a place name to ranked coordinates.
func (c *Client) Search(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"5"},
		"types":        {"place,locality"},
	}

	features, err := c.doRequest(ctx, u+"?"+params.Encode(), "search")
	if err != nil {
		return nil, err
	}

	results := make([]domain.GeocodingResult, 0, len(features))
	for _, f := range features {
		if r, ok := f.result(); ok {
			results = append(results, r)
		}
	}
	c.recordOutcome("search", len(results))
	return results, nil
}

// Reverse converts coordinates to place details.
func (c *Client) Reverse(ctx context.Context, coord domain.Coordinate) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	u := fmt.Sprintf("%s/%.6f,%.6f.json", c.baseURL, coord.Lon, coord.Lat)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	features, err := c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
	if err != nil {
		return domain.GeocodingResult{}, err
	}
	c.recordOutcome("reverse", len(features))
	if len(features) == 0 {
		return domain.GeocodingResult{}, nil
	}
	return domain.GeocodingResult{
		Coordinate:  coord,
		DisplayName: features[0].PlaceName,
		Importance:  features[0].Relevance,
	}, nil
}

func (c *Client) recordOutcome(method string, n int) {
	outcome := "success"
	if n == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) ([]feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: %s geocode request: %w", domain.ErrGeocodingUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		c.logger.Warn("mapbox API error", "method", method, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: mapbox API error: status %d: %s", domain.ErrGeocodingUnavailable, resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrGeocodingUnavailable, err)
	}
	return mapboxResp.Features, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) result() (domain.GeocodingResult, bool) {
	if len(f.Center) != 2 {
		return domain.GeocodingResult{}, false
	}
	coord, err := domain.NewCoordinate(f.Center[1], f.Center[0])
	if err != nil {
		return domain.GeocodingResult{}, false
	}
	return domain.GeocodingResult{
		Coordinate:  coord,
		DisplayName: f.PlaceName,
		Importance:  f.Relevance,
	}, true
}
