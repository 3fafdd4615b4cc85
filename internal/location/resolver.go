// Package location turns a user action (use my location, or a typed city
// name) into a canonical coordinate.
package location

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/webcam-weather/internal/domain"
)

// Resolver resolves coordinates from the device position or a city name.
type Resolver struct {
	locator  domain.Locator
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewResolver creates a resolver backed by the given locator and geocoder.
func NewResolver(locator domain.Locator, geocoder domain.Geocoder, logger *slog.Logger) *Resolver {
	return &Resolver{locator: locator, geocoder: geocoder, logger: logger}
}

// FromGeolocation asks the locator for the current position exactly once.
// Every failure is reported as domain.ErrLocationUnavailable; callers must
// not retry or fall back to a city search on their own.
func (r *Resolver) FromGeolocation(ctx context.Context) (domain.Coordinate, error) {
	coord, err := r.locator.CurrentPosition(ctx)
	if err != nil {
		r.logger.Warn("geolocation failed", "error", err)
		if errors.Is(err, domain.ErrLocationUnavailable) {
			return domain.Coordinate{}, err
		}
		return domain.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrLocationUnavailable, err)
	}
	return coord, nil
}

// FromCity geocodes name and returns the best-ranked match. Blank input
// returns domain.ErrEmptyQuery without contacting the geocoder.
func (r *Resolver) FromCity(ctx context.Context, name string) (domain.Coordinate, error) {
	query := strings.TrimSpace(name)
	if query == "" {
		return domain.Coordinate{}, domain.ErrEmptyQuery
	}

	results, err := r.geocoder.Search(ctx, query)
	if err != nil {
		r.logger.Warn("city geocoding failed", "query", query, "error", err)
		if errors.Is(err, domain.ErrGeocodingUnavailable) {
			return domain.Coordinate{}, err
		}
		return domain.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrGeocodingUnavailable, err)
	}
	if len(results) == 0 {
		r.logger.Info("city not found", "query", query)
		return domain.Coordinate{}, fmt.Errorf("%w: %q", domain.ErrCityNotFound, query)
	}

	best := results[0]
	r.logger.Debug("city resolved", "query", query, "place", best.DisplayName, "coordinate", best.Coordinate.String())
	return best.Coordinate, nil
}

// Describe reverse-geocodes coord into a place label. Failures are logged and
// yield "".
func (r *Resolver) Describe(ctx context.Context, coord domain.Coordinate) string {
	result, err := r.geocoder.Reverse(ctx, coord)
	if err != nil {
		r.logger.Warn("reverse geocoding failed", "coordinate", coord.String(), "error", err)
		return ""
	}
	return result.DisplayName
}
