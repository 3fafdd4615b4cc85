// Package geolocation provides domain.Locator implementations. A server has no
// device of its own, so the position is either configured (Static) or reported
// by the client's browser (Reported).
package geolocation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/couchcryptid/webcam-weather/internal/domain"
)

// Static always answers with a configured position. A nil position means the
// deployment has none, and every request fails.
type Static struct {
	position *domain.Coordinate
}

// NewStatic creates a locator for a fixed position, which may be nil.
func NewStatic(position *domain.Coordinate) *Static {
	return &Static{position: position}
}

func (s *Static) CurrentPosition(_ context.Context) (domain.Coordinate, error) {
	if s.position == nil {
		return domain.Coordinate{}, fmt.Errorf("%w: no device position configured", domain.ErrLocationUnavailable)
	}
	return *s.position, nil
}

// Reported holds a one-shot position (or failure) reported by the client.
// A report is consumed by the next CurrentPosition call. Without a pending
// report the fallback locator answers.
type Reported struct {
	mu       sync.Mutex
	pending  bool
	position domain.Coordinate
	err      error
	fallback domain.Locator
}

// NewReported creates a locator that falls back to fallback when no report is
// pending. fallback may be nil.
func NewReported(fallback domain.Locator) *Reported {
	return &Reported{fallback: fallback}
}

// Report records a successful client position.
func (r *Reported) Report(position domain.Coordinate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = true
	r.position = position
	r.err = nil
}

// ReportError records a client-side failure such as permission denial.
func (r *Reported) ReportError(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = true
	r.position = domain.Coordinate{}
	r.err = fmt.Errorf("%w: %s", domain.ErrLocationUnavailable, reason)
}

func (r *Reported) CurrentPosition(ctx context.Context) (domain.Coordinate, error) {
	r.mu.Lock()
	if r.pending {
		pos, err := r.position, r.err
		r.pending = false
		r.err = nil
		r.mu.Unlock()
		return pos, err
	}
	r.mu.Unlock()

	if r.fallback == nil {
		return domain.Coordinate{}, fmt.Errorf("%w: no position reported", domain.ErrLocationUnavailable)
	}
	pos, err := r.fallback.CurrentPosition(ctx)
	if err != nil && !errors.Is(err, domain.ErrLocationUnavailable) {
		return domain.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrLocationUnavailable, err)
	}
	return pos, err
}
