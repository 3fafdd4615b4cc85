package view

import (
	"sync"

	"github.com/couchcryptid/webcam-weather/internal/domain"
)

// DefaultZoom is the zoom level used when recentering on a new location.
const DefaultZoom = 10

// MapSurface is a map widget that accepts a center, a zoom, and one marker.
type MapSurface interface {
	SetView(center domain.Coordinate, zoom int)
	ShowMarker(m Marker)
	ClearMarker()
}

// MapSync drives a MapSurface from successive views. The map is recentered
// once per coordinate revision, never on unrelated updates.
type MapSync struct {
	mu           sync.Mutex
	zoom         int
	lastRevision uint64
	center       *domain.Coordinate
}

// NewMapSync creates a MapSync recentering at zoom. A zoom outside 0..19
// falls back to DefaultZoom.
func NewMapSync(zoom int) *MapSync {
	if zoom < 0 || zoom > 19 {
		zoom = DefaultZoom
	}
	return &MapSync{zoom: zoom}
}

// SetUserZoom applies a zoom chosen by the user to surface, keeping the
// current center. Later recenters keep it.
func (m *MapSync) SetUserZoom(surface MapSurface, zoom int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zoom = zoom
	if m.center != nil {
		surface.SetView(*m.center, zoom)
	}
}

// Zoom returns the zoom level the next recenter will use.
func (m *MapSync) Zoom() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.zoom
}

// Apply pushes v to surface. It reports whether the map was recentered.
// SetView runs under the lock so a concurrent SetUserZoom cannot be
// overwritten with a stale zoom.
func (m *MapSync) Apply(surface MapSurface, v View) bool {
	m.mu.Lock()
	recenter := v.Coordinate != nil && v.Revision != m.lastRevision
	if recenter {
		m.lastRevision = v.Revision
		center := *v.Coordinate
		m.center = &center
		surface.SetView(center, m.zoom)
	}
	m.mu.Unlock()

	if v.Marker != nil {
		surface.ShowMarker(*v.Marker)
	} else {
		surface.ClearMarker()
	}
	return recenter
}

// MapState is a MapSurface that records what a client map should display.
// It is the surface served over the HTTP API. Its methods never call back
// into MapSync.
type MapState struct {
	mu     sync.Mutex
	center *domain.Coordinate
	zoom   int
	marker *Marker
}

// MapStateSnapshot is a copy of MapState for serialization.
type MapStateSnapshot struct {
	Center *domain.Coordinate `json:"center,omitempty"`
	Zoom   int                `json:"zoom"`
	Marker *Marker            `json:"marker,omitempty"`
}

func (s *MapState) SetView(center domain.Coordinate, zoom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = &center
	s.zoom = zoom
}

func (s *MapState) ShowMarker(m Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = &m
}

func (s *MapState) ClearMarker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = nil
}

// Snapshot returns the current map state.
func (s *MapState) Snapshot() MapStateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MapStateSnapshot{Center: s.center, Zoom: s.zoom, Marker: s.marker}
}
