// Package nominatim implements domain.Geocoder against the OpenStreetMap
// Nominatim API. Requests are rate limited to honor the public instance's
// usage policy (at most one request per second by default).
package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

// searchLimit is how many ranked matches a search asks for.
const searchLimit = 5

// Client implements domain.Geocoder using Nominatim.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client allowing rps requests per second.
func NewClient(baseURL, userAgent string, rps float64, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		metrics:    metrics,
		logger:     logger,
	}
}

// Search returns matches for query ranked by relevance.
func (c *Client) Search(ctx context.Context, query string) ([]domain.GeocodingResult, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {strconv.Itoa(searchLimit)},
	}

	var places []place
	if err := c.doRequest(ctx, "/search?"+params.Encode(), "search", &places); err != nil {
		return nil, err
	}

	results := make([]domain.GeocodingResult, 0, len(places))
	for _, p := range places {
		coord, err := domain.ParseCoordinate(p.Lat, p.Lon)
		if err != nil {
			c.metrics.GeocodeRequests.WithLabelValues("search", "error").Inc()
			return nil, fmt.Errorf("%w: %w", domain.ErrGeocodingUnavailable, err)
		}
		results = append(results, domain.GeocodingResult{
			Coordinate:  coord,
			DisplayName: p.DisplayName,
			Importance:  p.Importance,
		})
	}

	outcome := "success"
	if len(results) == 0 {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues("search", outcome).Inc()
	return results, nil
}

// Reverse converts coordinates to a place description. Nominatim answers an
// unknown location with an "error" field, which maps to an empty result.
func (c *Client) Reverse(ctx context.Context, coord domain.Coordinate) (domain.GeocodingResult, error) {
	params := url.Values{
		"lat":    {coord.LatString()},
		"lon":    {coord.LonString()},
		"format": {"json"},
	}

	var p place
	if err := c.doRequest(ctx, "/reverse?"+params.Encode(), "reverse", &p); err != nil {
		return domain.GeocodingResult{}, err
	}
	if p.Error != "" {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "empty").Inc()
		return domain.GeocodingResult{}, nil
	}

	c.metrics.GeocodeRequests.WithLabelValues("reverse", "success").Inc()
	return domain.GeocodingResult{
		Coordinate:  coord,
		DisplayName: p.DisplayName,
		Importance:  p.Importance,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, pathAndQuery, method string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %w", domain.ErrGeocodingUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%w: %s request: %w", domain.ErrGeocodingUnavailable, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		c.logger.Warn("nominatim API error", "method", method, "status", resp.StatusCode)
		return fmt.Errorf("%w: nominatim API error: status %d: %s", domain.ErrGeocodingUnavailable, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%w: decode response: %w", domain.ErrGeocodingUnavailable, err)
	}
	return nil
}

// Nominatim API response types. Coordinates are strings.

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
	Error       string  `json:"error"`
}
