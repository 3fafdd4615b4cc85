package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoordinateTolerance is the per-axis distance, in degrees, under which two
// coordinates are treated as the same location.
const CoordinateTolerance = 1e-6

// Coordinate is a WGS-84 latitude/longitude pair. A Coordinate value is always
// complete; absence is modeled with a nil *Coordinate.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate validates lat/lon ranges and returns the coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || lat < -90 || lat > 90 {
		return Coordinate{}, fmt.Errorf("latitude %v out of range", lat)
	}
	if math.IsNaN(lon) || math.IsInf(lon, 0) || lon < -180 || lon > 180 {
		return Coordinate{}, fmt.Errorf("longitude %v out of range", lon)
	}
	return Coordinate{Lat: lat, Lon: lon}, nil
}

// ParseCoordinate parses decimal-degree strings as returned by geocoding
// providers. Both values must parse; a partial coordinate is an error.
func ParseCoordinate(lat, lon string) (Coordinate, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("parse latitude %q: %w", lat, err)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Coordinate{}, fmt.Errorf("parse longitude %q: %w", lon, err)
	}
	return NewCoordinate(la, lo)
}

// Equal reports whether c and o are within CoordinateTolerance on both axes.
func (c Coordinate) Equal(o Coordinate) bool {
	return math.Abs(c.Lat-o.Lat) < CoordinateTolerance && math.Abs(c.Lon-o.Lon) < CoordinateTolerance
}

// LatString formats the latitude with the shortest representation that
// parses back to the same float64.
func (c Coordinate) LatString() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// LonString formats the longitude like LatString.
func (c Coordinate) LonString() string {
	return strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

func (c Coordinate) String() string {
	return c.LatString() + "," + c.LonString()
}

// SameCoordinate compares two optional coordinates. Two nil values are equal.
func SameCoordinate(a, b *Coordinate) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
