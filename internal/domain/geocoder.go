package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Coordinate
	DisplayName string
	Importance  float64 // provider relevance score, higher is better
}

// Geocoder resolves free-text place names to coordinates and back.
type Geocoder interface {
	// Search returns matches ranked by relevance. An empty slice with a nil
	// error means the provider found nothing.
	Search(ctx context.Context, query string) ([]GeocodingResult, error)

	// Reverse converts coordinates to a place description.
	Reverse(ctx context.Context, coord Coordinate) (GeocodingResult, error)
}

// Locator reads the device's current position once.
type Locator interface {
	CurrentPosition(ctx context.Context) (Coordinate, error)
}
