package backend

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

	"github.com/sony/gobreaker"

	"github.com/couchcryptid/webcam-weather/internal/domain"
)

// maxBodyBytes bounds how much of a backend response is read.
const maxBodyBytes = 4 << 20

// Client talks to the weather backend. It implements aggregator.Backend.
// Weather and webcam endpoints sit behind separate circuit breakers so a
// failing webcam provider never rejects weather lookups.
type Client struct {
	backendURL     string // normalized POST endpoints
	apiBaseURL     string // raw GET endpoints
	httpClient     *http.Client
	weatherBreaker *gobreaker.CircuitBreaker
	webcamBreaker  *gobreaker.CircuitBreaker
	logger         *slog.Logger
}

// NewClient creates a backend client. Both base URLs must be absolute and
// carry no trailing slash.
func NewClient(backendURL, apiBaseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		backendURL:     backendURL,
		apiBaseURL:     apiBaseURL,
		httpClient:     &http.Client{Timeout: timeout},
		weatherBreaker: newBreaker("backend-weather", logger),
		webcamBreaker:  newBreaker("backend-webcams", logger),
		logger:         logger,
	}
}

func newBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

type coordinateRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type cityRequest struct {
	Name string `json:"name"`
}

// WeatherByCoordinate calls POST /get_weather. A backend-reported error comes
// back as a snapshot with Error set and a nil error.
func (c *Client) WeatherByCoordinate(ctx context.Context, coord domain.Coordinate) (domain.WeatherSnapshot, error) {
	body, err := c.post(ctx, c.backendURL+"/get_weather", coordinateRequest{Lat: coord.Lat, Lon: coord.Lon})
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: by coordinate: %w", domain.ErrWeatherFetch, err)
	}
	return domain.DecodeWeatherResponse(body)
}

// WeatherByCity calls POST /get_weather_by_city.
func (c *Client) WeatherByCity(ctx context.Context, name string) (domain.WeatherSnapshot, error) {
	body, err := c.post(ctx, c.backendURL+"/get_weather_by_city", cityRequest{Name: name})
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: by city: %w", domain.ErrWeatherFetch, err)
	}
	return domain.DecodeWeatherResponse(body)
}

// RawWeather calls GET /api/weather and normalizes the pass-through
// OpenWeatherMap payload locally.
func (c *Client) RawWeather(ctx context.Context, coord domain.Coordinate) (domain.WeatherSnapshot, error) {
	body, err := c.get(ctx, c.weatherBreaker, c.apiBaseURL+"/weather", coord)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: raw: %w", domain.ErrWeatherFetch, err)
	}
	var raw domain.RawWeather
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: decode raw weather: %w", domain.ErrWeatherFetch, err)
	}
	return domain.NormalizeRawWeather(raw), nil
}

// Webcams calls GET /api/webcams. Every failure wraps domain.ErrWebcamFetch.
func (c *Client) Webcams(ctx context.Context, coord domain.Coordinate) (domain.WebcamList, error) {
	body, err := c.get(ctx, c.webcamBreaker, c.apiBaseURL+"/webcams", coord)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrWebcamFetch, err)
	}
	return domain.DecodeWebcams(body)
}

// post is only used by the weather endpoints.
func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, c.weatherBreaker, http.MethodPost, endpoint, data)
}

func (c *Client) get(ctx context.Context, breaker *gobreaker.CircuitBreaker, endpoint string, coord domain.Coordinate) ([]byte, error) {
	params := url.Values{
		"lat": {coord.LatString()},
		"lon": {coord.LonString()},
	}
	return c.do(ctx, breaker, http.MethodGet, endpoint+"?"+params.Encode(), nil)
}

func (c *Client) do(ctx context.Context, breaker *gobreaker.CircuitBreaker, method, fullURL string, payload []byte) ([]byte, error) {
	result, err := breaker.Execute(func() (any, error) {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("backend error: status %d: %s", resp.StatusCode, truncate(body, 200))
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Debug("backend call rejected by circuit breaker", "breaker", breaker.Name(), "url", fullURL)
		}
		return nil, err
	}
	return result.([]byte), nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
