package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/webcam-weather/internal/adapter/backend"
	"github.com/couchcryptid/webcam-weather/internal/adapter/geocache"
	"github.com/couchcryptid/webcam-weather/internal/adapter/geolocation"
	"github.com/couchcryptid/webcam-weather/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/webcam-weather/internal/adapter/kafka"
	"github.com/couchcryptid/webcam-weather/internal/adapter/mapbox"
	"github.com/couchcryptid/webcam-weather/internal/adapter/nominatim"
	"github.com/couchcryptid/webcam-weather/internal/aggregator"
	"github.com/couchcryptid/webcam-weather/internal/config"
	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/location"
	"github.com/couchcryptid/webcam-weather/internal/observability"
	"github.com/couchcryptid/webcam-weather/internal/session"
	"github.com/couchcryptid/webcam-weather/internal/view"
)

func main() {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Geocoder: Mapbox when a token is configured, Nominatim otherwise.
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		geocoder = mapbox.NewClient(cfg.MapboxToken, cfg.GeocoderTimeout, metrics, logger)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.GeocoderCacheSize, "timeout", cfg.GeocoderTimeout)
	} else {
		geocoder = nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderRateLimit, cfg.GeocoderTimeout, metrics, logger)
		logger.Info("nominatim geocoding enabled", "url", cfg.GeocoderURL, "rate_limit", cfg.GeocoderRateLimit)
	}
	geocoder = geocache.New(geocoder, cfg.GeocoderCacheSize, metrics)

	reported := geolocation.NewReported(geolocation.NewStatic(cfg.DeviceLocation))
	resolver := location.NewResolver(reported, geocoder, logger)

	client := backend.NewClient(cfg.BackendURL, cfg.APIBaseURL, cfg.BackendTimeout, logger)
	agg := aggregator.New(client, metrics, logger, aggregator.WithPlaceNamer(resolver.Describe))

	deck := view.NewDeck(cfg.CarouselInterval, metrics, logger)
	ctrl := session.New(resolver, agg, reported, deck, view.NewMapSync(cfg.MapZoom), metrics, logger)

	ready := readiness{ctrl}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var publisher *kafkaadapter.Publisher
	if cfg.PublishEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaSnapshotTopic, metrics, logger)
		ready = append(ready, publisher)
		updates, unsubscribe := agg.Subscribe()
		defer unsubscribe()
		go func() {
			if err := publisher.Run(ctx, updates); err != nil {
				logger.Error("snapshot publisher error", "error", err)
			}
		}()
	} else {
		logger.Info("snapshot publishing disabled")
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ctrl, ready, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Locate once at startup when the deployment has a fixed position.
	if cfg.DeviceLocation != nil {
		if err := ctrl.Locate(ctx); err != nil {
			logger.Warn("initial locate failed", "error", err)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	ctrl.Close()
	agg.Close()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// readiness is ready when every component is.
type readiness []interface {
	CheckReadiness(ctx context.Context) error
}

func (r readiness) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
