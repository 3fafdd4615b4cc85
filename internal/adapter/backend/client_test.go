package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/webcam-weather/internal/aggregator"
	"github.com/couchcryptid/webcam-weather/internal/domain"
)

var _ aggregator.Backend = (*Client)(nil)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var paris = domain.Coordinate{Lat: 48.8588897, Lon: 2.3200410217200766}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string) *Client {
	return NewClient(baseURL, baseURL+"/api", 2*time.Second, discardLogger())
}

func TestClient_WeatherByCoordinate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/get_weather", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))

		var req coordinateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, paris.Lat, req.Lat)
		assert.Equal(t, paris.Lon, req.Lon)

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"location":"Paris","temperature":12,"humidity":70,"description":"Clear Sky","wind_speed":2.5,"icon":"01d"}`))
	}))
	defer srv.Close()

	snap, err := testClient(srv.URL).WeatherByCoordinate(context.Background(), paris)
	require.NoError(t, err)
	assert.Equal(t, "Paris", snap.Location)
	assert.Equal(t, "Clear Sky", snap.Description)
	assert.True(t, snap.Valid())
}

func TestClient_WeatherByCity_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_weather_by_city", r.URL.Path)

		var req cityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Atlantis", req.Name)

		_, _ = w.Write([]byte(`{"error":"city not found"}`))
	}))
	defer srv.Close()

	snap, err := testClient(srv.URL).WeatherByCity(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.False(t, snap.Valid())
	assert.Equal(t, "city not found", snap.Error)
}

func TestClient_RawWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/weather", r.URL.Path)
		assert.Equal(t, "48.8588897", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.3200410217200766", r.URL.Query().Get("lon"))

		_, _ = w.Write([]byte(`{"cod":200,"name":"Paris","main":{"temp":9.1,"humidity":88},
			"weather":[{"description":"light rain","icon":"10n"}],"wind":{"speed":5.2}}`))
	}))
	defer srv.Close()

	snap, err := testClient(srv.URL).RawWeather(context.Background(), paris)
	require.NoError(t, err)
	assert.Equal(t, "Light Rain", snap.Description)
	assert.Equal(t, "10n", snap.Icon)
	assert.Equal(t, 5.2, snap.WindSpeed)
}

func TestClient_Webcams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/webcams", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":{"webcams":[{"id":"1","title":"Eiffel","viewCount":99,
			"images":{"current":{"preview":"p.jpg"}}}]}}`))
	}))
	defer srv.Close()

	list, err := testClient(srv.URL).Webcams(context.Background(), paris)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Eiffel", list[0].Title)
	assert.Equal(t, []string{"p.jpg"}, list[0].PreviewImages)
}

func TestClient_Webcams_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Webcams(context.Background(), paris)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWebcamFetch)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_Weather_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL+"/api", 50*time.Millisecond, discardLogger())
	_, err := c.WeatherByCoordinate(context.Background(), paris)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWeatherFetch)
}

func TestClient_CircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	for range 5 {
		_, err := c.WeatherByCoordinate(context.Background(), paris)
		require.Error(t, err)
	}
	require.Equal(t, int32(5), calls.Load())

	_, err := c.WeatherByCoordinate(context.Background(), paris)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrWeatherFetch)
	assert.Equal(t, int32(5), calls.Load(), "open breaker must not reach the server")
}

func TestClient_WebcamFailuresDoNotTripWeatherBreaker(t *testing.T) {
	var webcamCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/webcams", func(w http.ResponseWriter, _ *http.Request) {
		webcamCalls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("POST /get_weather", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"location":"Paris","temperature":11.2,"humidity":81,"description":"Light Rain","wind_speed":4.1,"icon":"10d"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(srv.URL)
	for range 6 {
		_, err := c.Webcams(context.Background(), paris)
		require.Error(t, err)
	}
	assert.Equal(t, int32(5), webcamCalls.Load(), "webcam breaker should be open")

	snap, err := c.WeatherByCoordinate(context.Background(), paris)
	require.NoError(t, err)
	assert.Equal(t, "Paris", snap.Location)
}
