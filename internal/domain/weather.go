package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// WeatherSnapshot is the view-ready weather for one location. Exactly one of
// the payload fields or Error is meaningful; see Valid.
type WeatherSnapshot struct {
	Location    string  `json:"location,omitempty"`
	Description string  `json:"description,omitempty"`
	Icon        string  `json:"icon,omitempty"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`   // percent, 0..100
	WindSpeed   float64 `json:"wind_speed"` // m/s, >= 0
	Error       string  `json:"error,omitempty"`
}

// Valid reports whether the snapshot carries weather data rather than an error.
func (w WeatherSnapshot) Valid() bool {
	return w.Error == ""
}

// WeatherResponse is the flat payload returned by the backend's
// /get_weather and /get_weather_by_city endpoints.
type WeatherResponse struct {
	Location    string   `json:"location"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Description string   `json:"description"`
	WindSpeed   *float64 `json:"wind_speed"`
	Icon        string   `json:"icon"`
	Error       string   `json:"error"`
}

// Snapshot converts the backend payload into a WeatherSnapshot. An "error"
// field wins over any data that came with it.
func (r WeatherResponse) Snapshot() WeatherSnapshot {
	if r.Error != "" {
		return WeatherSnapshot{Error: r.Error}
	}
	return WeatherSnapshot{
		Location:    r.Location,
		Description: r.Description,
		Icon:        r.Icon,
		Temperature: deref(r.Temperature),
		Humidity:    clampHumidity(deref(r.Humidity)),
		WindSpeed:   clampWind(deref(r.WindSpeed)),
	}
}

// RawWeather mirrors the subset of the OpenWeatherMap current-weather payload
// served unchanged by /api/weather.
type RawWeather struct {
	Cod     json.RawMessage `json:"cod"` // 200 on success, "404" etc. on failure
	Message string          `json:"message"`
	Name    string          `json:"name"`
	Main    *struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

var titleCaser = cases.Title(language.Und)

// NormalizeRawWeather converts a raw OpenWeatherMap payload into a
// WeatherSnapshot, applying the same title-casing the backend applies to
// descriptions. A non-200 cod or a missing main block becomes an Error.
func NormalizeRawWeather(raw RawWeather) WeatherSnapshot {
	if code := rawCode(raw.Cod); code != 0 && code != 200 {
		msg := raw.Message
		if msg == "" {
			msg = "Failed to fetch weather"
		}
		return WeatherSnapshot{Error: msg}
	}
	if raw.Main == nil {
		return WeatherSnapshot{Error: "Failed to fetch weather"}
	}

	snap := WeatherSnapshot{
		Location:    raw.Name,
		Temperature: raw.Main.Temp,
		Humidity:    clampHumidity(raw.Main.Humidity),
		WindSpeed:   clampWind(raw.Wind.Speed),
	}
	if len(raw.Weather) > 0 {
		snap.Description = titleCaser.String(raw.Weather[0].Description)
		snap.Icon = raw.Weather[0].Icon
	}
	return snap
}

// rawCode decodes OpenWeatherMap's cod field, which is a number on success
// and a string on failure. Returns 0 when absent or unparseable.
func rawCode(b json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// DecodeWeatherResponse parses a backend payload, returning a wrapped
// ErrWeatherFetch for malformed JSON.
func DecodeWeatherResponse(data []byte) (WeatherSnapshot, error) {
	var r WeatherResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return WeatherSnapshot{}, fmt.Errorf("%w: decode weather: %w", ErrWeatherFetch, err)
	}
	return r.Snapshot(), nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func clampHumidity(h float64) float64 {
	switch {
	case h < 0:
		return 0
	case h > 100:
		return 100
	default:
		return h
	}
}

func clampWind(w float64) float64 {
	if w < 0 {
		return 0
	}
	return w
}
