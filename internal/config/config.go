package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/webcam-weather/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Weather backend. BackendURL serves the normalized POST endpoints,
	// APIBaseURL serves the raw weather and webcam GET endpoints.
	BackendURL     string
	APIBaseURL     string
	BackendTimeout time.Duration

	// Geocoding configuration. Nominatim is the default provider; Mapbox
	// replaces it when a token is configured.
	GeocoderURL       string
	GeocoderUserAgent string
	GeocoderRateLimit float64 // requests per second
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
	MapboxToken       string
	MapboxEnabled     bool

	// Presentation.
	CarouselInterval time.Duration
	MapZoom          int

	// DeviceLocation is the fixed position reported by the device locator.
	// Nil means the position must be reported by the client.
	DeviceLocation *domain.Coordinate

	// Snapshot publishing (optional).
	KafkaBrokers       []string
	KafkaSnapshotTopic string
	PublishEnabled     bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	backendTimeout, err := parsePositiveDuration("BACKEND_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parsePositiveDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	carouselInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("CAROUSEL_INTERVAL", "5s"))
	if err != nil || carouselInterval < 0 {
		return nil, errors.New("invalid CAROUSEL_INTERVAL")
	}

	rateLimit, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GEOCODER_RATE_LIMIT", "1"), 64)
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid GEOCODER_RATE_LIMIT")
	}

	zoom, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAP_ZOOM", "10"))
	if err != nil || zoom < 0 || zoom > 19 {
		return nil, errors.New("invalid MAP_ZOOM: must be an integer between 0 and 19")
	}

	device, err := parseDeviceLocation()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BackendURL:     strings.TrimRight(sharedcfg.EnvOrDefault("BACKEND_URL", "http://127.0.0.1:8000"), "/"),
		APIBaseURL:     strings.TrimRight(sharedcfg.EnvOrDefault("API_BASE_URL", "http://localhost:8000/api"), "/"),
		BackendTimeout: backendTimeout,

		GeocoderURL:       strings.TrimRight(sharedcfg.EnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"), "/"),
		GeocoderUserAgent: sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "webcam-weather/1.0"),
		GeocoderRateLimit: rateLimit,
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: parseCacheSize(),
		MapboxToken:       mapboxToken,
		MapboxEnabled:     mapboxEnabled,

		CarouselInterval: carouselInterval,
		MapZoom:          zoom,
		DeviceLocation:   device,

		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "weather-view-snapshots"),
		PublishEnabled:     len(brokers) > 0,
	}

	for _, u := range []struct{ key, value string }{
		{"BACKEND_URL", cfg.BackendURL},
		{"API_BASE_URL", cfg.APIBaseURL},
		{"GEOCODER_URL", cfg.GeocoderURL},
	} {
		if err := validateURL(u.key, u.value); err != nil {
			return nil, err
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.PublishEnabled && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

// parseDeviceLocation reads DEVICE_LAT/DEVICE_LON. Both or neither must be set.
func parseDeviceLocation() (*domain.Coordinate, error) {
	lat, lon := os.Getenv("DEVICE_LAT"), os.Getenv("DEVICE_LON")
	if lat == "" && lon == "" {
		return nil, nil
	}
	if lat == "" || lon == "" {
		return nil, errors.New("DEVICE_LAT and DEVICE_LON must be set together")
	}
	c, err := domain.ParseCoordinate(lat, lon)
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_LAT/DEVICE_LON: %w", err)
	}
	return &c, nil
}

func validateURL(key, value string) error {
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s: %q is not an absolute URL", key, value)
	}
	return nil
}
