package aggregator

import (
	"time"

	"github.com/couchcryptid/webcam-weather/internal/domain"
)

// Snapshot is the combined weather and webcam state at one instant. A
// Snapshot is never mutated after it is published; readers may keep it.
type Snapshot struct {
	// Coordinate is nil until the first location is resolved.
	Coordinate *domain.Coordinate `json:"coordinate,omitempty"`
	// Revision increments each time Coordinate changes.
	Revision uint64 `json:"revision"`
	// CycleID identifies the fetch cycle that produced the latest results.
	CycleID string `json:"cycle_id,omitempty"`
	// CityName is set when the cycle was started by a city search.
	CityName string `json:"city_name,omitempty"`

	Weather        *domain.WeatherSnapshot `json:"weather,omitempty"`
	WeatherLoading bool                    `json:"weather_loading"`

	Webcams         domain.WebcamList `json:"webcams"`
	WebcamsLoading  bool              `json:"webcams_loading"`
	WebcamsDegraded bool              `json:"webcams_degraded"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Loading reports whether any lookup of the current cycle is still pending.
func (s Snapshot) Loading() bool {
	return s.WeatherLoading || s.WebcamsLoading
}

// Failed reports whether a settled lookup of the current cycle ended in an
// error: a weather error or a degraded webcam list.
func (s Snapshot) Failed() bool {
	weatherFailed := !s.WeatherLoading && s.Weather != nil && !s.Weather.Valid()
	webcamsFailed := !s.WebcamsLoading && s.WebcamsDegraded
	return weatherFailed || webcamsFailed
}

// clone copies s so a mutation never reaches a published value. Webcam
// entries are replaced wholesale, never patched, so sharing the backing
// array of Webcams is safe.
func (s Snapshot) clone() Snapshot {
	out := s
	if s.Coordinate != nil {
		c := *s.Coordinate
		out.Coordinate = &c
	}
	if s.Weather != nil {
		w := *s.Weather
		out.Weather = &w
	}
	return out
}
