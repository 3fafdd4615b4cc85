package domain

import "errors"

var (
	// ErrLocationUnavailable means the device position could not be read
	// (denied, timed out, or no geolocation capability). Never retried.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrCityNotFound means the geocoder returned zero matches.
	ErrCityNotFound = errors.New("city not found")

	// ErrGeocodingUnavailable covers geocoder transport faults, non-2xx
	// responses, and malformed payloads.
	ErrGeocodingUnavailable = errors.New("geocoding unavailable")

	// ErrWebcamFetch marks a failed webcam lookup. It degrades to an empty
	// list and is never shown to the user as an error.
	ErrWebcamFetch = errors.New("webcam fetch failed")

	// ErrWeatherFetch marks a transport-level weather lookup failure.
	ErrWeatherFetch = errors.New("weather fetch failed")

	// ErrEmptyQuery is returned for blank city searches. No provider is called.
	ErrEmptyQuery = errors.New("empty query")

	// ErrSuperseded is returned when a newer action started while this one
	// was in flight. Its result has been discarded.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// User-facing messages. Transport details never reach the view.
const (
	MsgLocationUnavailable = "Could not access location. Please allow it or search by city."
	MsgCityNotFound        = "City not found!"
	MsgTryAgain            = "Something went wrong. Please try again."
	MsgNoWebcams           = "No webcams found nearby."
	MsgFetchingWeather     = "Fetching weather..."
	MsgLoadingMap          = "Loading map..."
)

// UserMessage maps an error from any layer to the message shown to the user.
// It returns "" for nil, ErrEmptyQuery, and ErrSuperseded, which are silent.
func UserMessage(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrSuperseded):
		return ""
	case errors.Is(err, ErrLocationUnavailable):
		return MsgLocationUnavailable
	case errors.Is(err, ErrCityNotFound):
		return MsgCityNotFound
	case errors.Is(err, ErrWebcamFetch):
		return MsgNoWebcams
	default:
		return MsgTryAgain
	}
}
