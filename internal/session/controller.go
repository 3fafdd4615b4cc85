// Package session handles user actions (search a city, use my location) and
// keeps the bound view current. A newer action always wins: each action takes
// a ticket, and a resolution that completes after a newer ticket was issued is
// discarded with domain.ErrSuperseded.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/couchcryptid/webcam-weather/internal/aggregator"
	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
	"github.com/couchcryptid/webcam-weather/internal/view"
)

// Resolver turns user input into a coordinate.
type Resolver interface {
	FromGeolocation(ctx context.Context) (domain.Coordinate, error)
	FromCity(ctx context.Context, name string) (domain.Coordinate, error)
}

// Fetcher starts fetch cycles and publishes snapshots.
type Fetcher interface {
	Fetch(ctx context.Context, coord domain.Coordinate, opts ...aggregator.FetchOption) bool
	Snapshot() aggregator.Snapshot
	Subscribe() (<-chan aggregator.Snapshot, func())
}

// PositionReporter accepts a position reported by the client.
type PositionReporter interface {
	Report(position domain.Coordinate)
	ReportError(reason string)
}

// Controller is one user's view session.
type Controller struct {
	id       string
	resolver Resolver
	fetcher  Fetcher
	reporter PositionReporter
	deck     *view.Deck
	mapSync  *view.MapSync
	surface  *view.MapState
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	ticket uint64
	status string
	query  string
	closed bool

	unsubscribe func()
	done        chan struct{}
}

// New creates a controller and starts applying snapshots to the deck and map.
// reporter may be nil when clients cannot report positions.
func New(resolver Resolver, fetcher Fetcher, reporter PositionReporter, deck *view.Deck, mapSync *view.MapSync, metrics *observability.Metrics, logger *slog.Logger) *Controller {
	id := uuid.NewString()
	c := &Controller{
		id:       id,
		resolver: resolver,
		fetcher:  fetcher,
		reporter: reporter,
		deck:     deck,
		mapSync:  mapSync,
		surface:  &view.MapState{},
		metrics:  metrics,
		logger:   logger.With("session_id", id),
		done:     make(chan struct{}),
	}

	updates, unsubscribe := fetcher.Subscribe()
	c.unsubscribe = unsubscribe
	go c.run(updates)
	return c
}

// ID identifies the session in logs.
func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) run(updates <-chan aggregator.Snapshot) {
	defer close(c.done)
	for snap := range updates {
		c.deck.Sync(snap.Webcams)
		c.mapSync.Apply(c.surface, view.Bind(snap, c.deck))
	}
}

// Search resolves city and fetches its weather and webcams. Blank input
// returns domain.ErrEmptyQuery and changes nothing.
func (c *Controller) Search(ctx context.Context, city string) error {
	query := strings.TrimSpace(city)
	if query == "" {
		return domain.ErrEmptyQuery
	}

	ticket := c.begin(query)
	c.logger.InfoContext(ctx, "city search", "query", query)

	coord, err := c.resolver.FromCity(ctx, query)
	return c.finish(ctx, ticket, coord, err, aggregator.WithCityName(query))
}

// Locate fetches weather and webcams for the device position.
func (c *Controller) Locate(ctx context.Context) error {
	ticket := c.begin("")
	c.logger.InfoContext(ctx, "locate")

	coord, err := c.resolver.FromGeolocation(ctx)
	return c.finish(ctx, ticket, coord, err)
}

// ReportPosition records a client-reported position and locates with it.
func (c *Controller) ReportPosition(ctx context.Context, position domain.Coordinate) error {
	if c.reporter == nil {
		return c.fail(c.begin(""), domain.ErrLocationUnavailable)
	}
	c.reporter.Report(position)
	return c.Locate(ctx)
}

// ReportPositionError records a client-side geolocation failure.
func (c *Controller) ReportPositionError(ctx context.Context, reason string) error {
	if c.reporter == nil {
		return c.fail(c.begin(""), domain.ErrLocationUnavailable)
	}
	c.reporter.ReportError(reason)
	return c.Locate(ctx)
}

// begin issues a ticket that supersedes every earlier action.
func (c *Controller) begin(query string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticket++
	if query != "" {
		c.query = query
		c.status = domain.MsgFetchingWeather
	} else {
		c.status = ""
	}
	return c.ticket
}

// finish applies a resolution if ticket is still the latest. The ticket check
// and the fetch start happen under one lock so a newer action cannot
// interleave between them. When the current snapshot shows a failed lookup,
// the fetch is forced so repeating the action retries the same location.
func (c *Controller) finish(ctx context.Context, ticket uint64, coord domain.Coordinate, err error, opts ...aggregator.FetchOption) error {
	if err != nil {
		return c.fail(ticket, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ticket != c.ticket {
		c.superseded(ticket)
		return domain.ErrSuperseded
	}
	c.status = ""
	if c.fetcher.Snapshot().Failed() {
		opts = append(opts, aggregator.Force())
	}
	c.fetcher.Fetch(ctx, coord, opts...)
	return nil
}

func (c *Controller) fail(ticket uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ticket != c.ticket {
		c.superseded(ticket)
		return domain.ErrSuperseded
	}
	c.status = domain.UserMessage(err)
	if !errors.Is(err, domain.ErrCityNotFound) {
		c.logger.Warn("action failed", "error", err)
	}
	return err
}

func (c *Controller) superseded(ticket uint64) {
	c.metrics.SupersededResults.WithLabelValues("location").Inc()
	c.logger.Debug("discarding superseded resolution", "ticket", ticket, "latest", c.ticket)
}

// View binds the latest snapshot and overlays session status.
func (c *Controller) View() view.View {
	v := view.Bind(c.fetcher.Snapshot(), c.deck)
	m := c.surface.Snapshot()
	v.Map = &m

	c.mu.Lock()
	defer c.mu.Unlock()
	v.Query = c.query
	if c.status != "" {
		v.Status = c.status
	}
	return v
}

// Next advances the carousel of a card.
func (c *Controller) Next(key string) error { return c.deck.Next(key) }

// Prev steps back the carousel of a card.
func (c *Controller) Prev(key string) error { return c.deck.Prev(key) }

// Jump moves the carousel of a card to slide i.
func (c *Controller) Jump(key string, i int) error { return c.deck.Jump(key, i) }

// Pause stops autoplay of a card's carousel.
func (c *Controller) Pause(key string) error { return c.deck.Pause(key) }

// Resume restarts autoplay of a card's carousel.
func (c *Controller) Resume(key string) error { return c.deck.Resume(key) }

// SetZoom applies a user-chosen map zoom.
func (c *Controller) SetZoom(zoom int) { c.mapSync.SetUserZoom(c.surface, zoom) }

// CheckReadiness reports an error once the session is closed.
func (c *Controller) CheckReadiness(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("session closed")
	}
	return nil
}

// Close stops applying snapshots and closes every carousel.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.unsubscribe()
	<-c.done
	c.deck.Close()
}
