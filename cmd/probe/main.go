// Command probe checks a running weather backend and geocoder end to end. It
// calls every endpoint the view engine depends on for one location, validates
// the normalized results, and prints a pass/fail report. Endpoint URLs come
// from the same environment variables as the service.
//
// Usage:
//
//	go run ./cmd/probe -lat 48.8566 -lon 2.3522 -city Paris
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/webcam-weather/internal/adapter/backend"
	"github.com/couchcryptid/webcam-weather/internal/adapter/mapbox"
	"github.com/couchcryptid/webcam-weather/internal/adapter/nominatim"
	"github.com/couchcryptid/webcam-weather/internal/config"
	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

// phase tracks pass/fail for a probe phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	lat := flag.String("lat", "", "latitude in decimal degrees")
	lon := flag.String("lon", "", "longitude in decimal degrees")
	city := flag.String("city", "", "optional city name for the by-city and geocoding checks")
	timeout := flag.Duration("timeout", 30*time.Second, "overall probe timeout")
	flag.Parse()

	coord, err := domain.ParseCoordinate(*lat, *lon)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -lat/-lon: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if code := run(ctx, cfg, coord, strings.TrimSpace(*city)); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config, coord domain.Coordinate, city string) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetrics()
	client := backend.NewClient(cfg.BackendURL, cfg.APIBaseURL, cfg.BackendTimeout, logger)

	fmt.Println("=== Webcam Weather Probe ===")
	fmt.Printf("Location: %s  backend: %s  api: %s\n\n", coord, cfg.BackendURL, cfg.APIBaseURL)

	phases := []*phase{
		probeWeather("POST /get_weather", func() (domain.WeatherSnapshot, error) {
			return client.WeatherByCoordinate(ctx, coord)
		}),
		probeWeather("GET /api/weather (raw)", func() (domain.WeatherSnapshot, error) {
			return client.RawWeather(ctx, coord)
		}),
		probeWebcams(ctx, client, coord),
	}
	if city != "" {
		phases = append(phases,
			probeWeather("POST /get_weather_by_city", func() (domain.WeatherSnapshot, error) {
				return client.WeatherByCity(ctx, city)
			}),
			probeGeocoder(ctx, cfg, metrics, logger, city),
		)
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func probeWeather(name string, fetch func() (domain.WeatherSnapshot, error)) *phase {
	p := &phase{name: name}
	snap, err := fetch()
	if err != nil {
		p.errorf("request failed: %v", err)
		return p
	}
	checkWeather(p, snap)
	return p
}

// checkWeather validates the normalized snapshot invariants.
func checkWeather(p *phase, w domain.WeatherSnapshot) {
	if !w.Valid() {
		p.errorf("backend reported error: %q", w.Error)
		return
	}
	if w.Description == "" {
		p.errorf("description is empty")
	}
	if w.Icon == "" {
		p.errorf("icon is empty")
	}
	if w.Humidity < 0 || w.Humidity > 100 {
		p.errorf("humidity %v outside 0..100", w.Humidity)
	}
	if w.WindSpeed < 0 {
		p.errorf("wind speed %v is negative", w.WindSpeed)
	}
}

func probeWebcams(ctx context.Context, client *backend.Client, coord domain.Coordinate) *phase {
	p := &phase{name: "GET /api/webcams"}
	list, err := client.Webcams(ctx, coord)
	if err != nil {
		p.errorf("request failed: %v", err)
		return p
	}
	checkWebcams(p, list)
	fmt.Printf("  webcams: %d\n", len(list))
	return p
}

// checkWebcams validates entry invariants: ids and titles present, views
// non-negative, previews non-empty and unique.
func checkWebcams(p *phase, list domain.WebcamList) {
	for i, w := range list {
		if w.ID == "" {
			p.errorf("webcam %d: id is empty", i)
		}
		if w.ViewCount < 0 {
			p.errorf("webcam %d: view count %d is negative", i, w.ViewCount)
		}
		seen := make(map[string]bool, len(w.PreviewImages))
		for _, u := range w.PreviewImages {
			if strings.TrimSpace(u) == "" {
				p.errorf("webcam %d: empty preview image", i)
			}
			if seen[u] {
				p.errorf("webcam %d: duplicate preview image %q", i, u)
			}
			seen[u] = true
		}
	}
}

func probeGeocoder(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger, city string) *phase {
	var geocoder domain.Geocoder
	name := "geocoder search (nominatim)"
	if cfg.MapboxEnabled {
		name = "geocoder search (mapbox)"
		geocoder = mapbox.NewClient(cfg.MapboxToken, cfg.GeocoderTimeout, metrics, logger)
	} else {
		geocoder = nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderRateLimit, cfg.GeocoderTimeout, metrics, logger)
	}

	p := &phase{name: name}
	results, err := geocoder.Search(ctx, city)
	if err != nil {
		p.errorf("search %q failed: %v", city, err)
		return p
	}
	if len(results) == 0 {
		p.errorf("no results for %q", city)
		return p
	}
	best := results[0]
	if _, err := domain.NewCoordinate(best.Lat, best.Lon); err != nil {
		p.errorf("best match has invalid coordinate: %v", err)
	}
	fmt.Printf("  %q -> %s (%s)\n", city, best.Coordinate, best.DisplayName)
	return p
}
