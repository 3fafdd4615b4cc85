// Package domain models the weather and webcam data shown on the map view.
//
// # Data Sources
//
// Weather comes from an opaque backend that fronts OpenWeatherMap. It exposes
// two normalized endpoints (by coordinate and by city name) that return a flat
// JSON object, and one raw endpoint that passes the OpenWeatherMap payload
// through unchanged:
//
//	{"location":"Paris","temperature":11.2,"humidity":81,
//	 "description":"Light Rain","wind_speed":4.1,"icon":"10d"}
//
//	{"error":"city not found"}
//
// Webcams come from the Windy Webcams API, proxied by the same backend and
// wrapped as {"result":{"webcams":[...]}}. Each webcam may carry a live
// player embed, a set of still images, both, or neither.
//
// # Normalization Rules
//
// Preview images are taken from three candidate fields in a fixed order:
//
//	images.current.preview
//	images.daylight.preview
//	images.current.thumbnail
//
// Empty or missing candidates are dropped and duplicates collapse onto their
// first occurrence. A webcam with no usable image is still listed; it simply
// renders without imagery.
//
// # Coordinates
//
// All coordinates are WGS-84 decimal degrees. Geocoding providers return
// coordinates as strings; they are parsed with strconv.ParseFloat and
// formatted back with the shortest representation that round-trips, so no
// precision is lost across a parse/format cycle. Two coordinates closer than
// 1e-6 degrees on both axes are considered the same location.
package domain
