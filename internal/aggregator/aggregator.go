// Package aggregator fetches weather and nearby webcams for a coordinate and
// publishes the combined result as immutable snapshots.
//
// The weather and webcam lookups of one cycle run concurrently and are applied
// independently: either may finish first, and a failure of one never touches
// the other's data. Every result is tagged with the cycle it was issued for and
// dropped on arrival when a newer cycle has started.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

// Backend is the weather backend as seen by the aggregator.
type Backend interface {
	WeatherByCoordinate(ctx context.Context, coord domain.Coordinate) (domain.WeatherSnapshot, error)
	WeatherByCity(ctx context.Context, name string) (domain.WeatherSnapshot, error)
	RawWeather(ctx context.Context, coord domain.Coordinate) (domain.WeatherSnapshot, error)
	Webcams(ctx context.Context, coord domain.Coordinate) (domain.WebcamList, error)
}

// PlaceNamer labels a coordinate when the backend returns weather without a
// location name. It returns "" when no label is available.
type PlaceNamer func(ctx context.Context, coord domain.Coordinate) string

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithPlaceNamer sets the fallback used to label unnamed weather results.
func WithPlaceNamer(n PlaceNamer) Option {
	return func(a *Aggregator) { a.namePlace = n }
}

// FetchOption configures a single Fetch call.
type FetchOption func(*fetchParams)

type fetchParams struct {
	city  string
	force bool
}

// WithCityName looks up weather by city name instead of by coordinate. It is
// used right after a city search.
func WithCityName(name string) FetchOption {
	return func(p *fetchParams) { p.city = name }
}

// Force starts a cycle even when the coordinate has not changed.
func Force() FetchOption {
	return func(p *fetchParams) { p.force = true }
}

// cycle tags every result with the request that produced it.
type cycle struct {
	seq   uint64
	id    string
	coord domain.Coordinate
	city  string
}

// Aggregator owns the current Snapshot.
type Aggregator struct {
	backend   Backend
	namePlace PlaceNamer
	metrics   *observability.Metrics
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	seq    uint64
	snap   Snapshot
	subs   map[uint64]chan Snapshot
	nextID uint64
	closed bool
}

// New creates an Aggregator with an empty snapshot.
func New(backend Backend, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Aggregator {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Aggregator{
		backend: backend,
		metrics: metrics,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[uint64]chan Snapshot),
		snap:    Snapshot{Webcams: domain.WebcamList{}},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Snapshot returns the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}

// Fetch starts a fetch cycle for coord and returns immediately. It does
// nothing and returns false when coord equals the current coordinate, unless
// Force is given. The lookups outlive ctx; they are bounded by the backend
// timeouts and stopped by Close.
func (a *Aggregator) Fetch(ctx context.Context, coord domain.Coordinate, opts ...FetchOption) bool {
	var p fetchParams
	for _, opt := range opts {
		opt(&p)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	changed := !domain.SameCoordinate(a.snap.Coordinate, &coord)
	if !changed && !p.force {
		a.mu.Unlock()
		a.metrics.SkippedFetches.Inc()
		a.logger.Debug("fetch skipped, coordinate unchanged", "coordinate", coord.String())
		return false
	}

	a.seq++
	c := cycle{seq: a.seq, id: uuid.NewString(), coord: coord, city: p.city}

	next := a.snap.clone()
	if changed {
		// Data for the previous location must not be shown at the new one.
		next.Coordinate = &coord
		next.Revision++
		next.Weather = nil
		next.Webcams = domain.WebcamList{}
		next.WebcamsDegraded = false
	}
	next.CycleID = c.id
	next.CityName = p.city
	next.WeatherLoading = true
	next.WebcamsLoading = true
	a.publishLocked(next)

	a.wg.Add(2)
	a.mu.Unlock()

	a.logger.InfoContext(ctx, "fetch cycle started",
		"cycle_id", c.id, "coordinate", coord.String(), "city", p.city, "forced", p.force && !changed)

	runCtx, stop := a.detach(ctx)
	var pending sync.WaitGroup
	pending.Add(2)
	go func() {
		defer a.wg.Done()
		defer pending.Done()
		a.fetchWeather(runCtx, c)
	}()
	go func() {
		defer a.wg.Done()
		defer pending.Done()
		a.fetchWebcams(runCtx, c)
	}()
	go func() {
		pending.Wait()
		stop()
	}()
	return true
}

// detach keeps ctx's values but ties cancellation to the aggregator lifetime.
func (a *Aggregator) detach(ctx context.Context) (context.Context, func()) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(a.ctx, cancel)
	return runCtx, func() {
		stopAfter()
		cancel()
	}
}

func (a *Aggregator) fetchWeather(ctx context.Context, c cycle) {
	start := time.Now()
	snap, err := a.lookupWeather(ctx, c)
	a.metrics.FetchDuration.WithLabelValues("weather").Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		a.metrics.FetchRequests.WithLabelValues("weather", "error").Inc()
		a.logger.Warn("weather lookup failed", "cycle_id", c.id, "error", err)
		snap = domain.WeatherSnapshot{Error: domain.UserMessage(err)}
	case !snap.Valid():
		a.metrics.FetchRequests.WithLabelValues("weather", "error").Inc()
		a.logger.Info("weather backend reported an error", "cycle_id", c.id, "message", snap.Error)
	default:
		a.metrics.FetchRequests.WithLabelValues("weather", "success").Inc()
		if snap.Location == "" && a.namePlace != nil {
			snap.Location = a.namePlace(ctx, c.coord)
		}
	}

	a.apply(c, "weather", func(s *Snapshot) {
		s.Weather = &snap
		s.WeatherLoading = false
	})
}

// lookupWeather tries the primary endpoint and falls back to the raw
// pass-through endpoint when the primary is unreachable.
func (a *Aggregator) lookupWeather(ctx context.Context, c cycle) (domain.WeatherSnapshot, error) {
	var (
		snap domain.WeatherSnapshot
		err  error
	)
	if c.city != "" {
		snap, err = a.backend.WeatherByCity(ctx, c.city)
	} else {
		snap, err = a.backend.WeatherByCoordinate(ctx, c.coord)
	}
	if err == nil || ctx.Err() != nil {
		return snap, err
	}

	a.logger.Warn("primary weather lookup failed, trying raw endpoint", "cycle_id", c.id, "error", err)
	raw, rawErr := a.backend.RawWeather(ctx, c.coord)
	if rawErr != nil {
		return domain.WeatherSnapshot{}, errors.Join(err, rawErr)
	}
	if raw.Valid() && raw.Location == "" && c.city != "" {
		raw.Location = c.city
	}
	return raw, nil
}

func (a *Aggregator) fetchWebcams(ctx context.Context, c cycle) {
	start := time.Now()
	list, err := a.backend.Webcams(ctx, c.coord)
	a.metrics.FetchDuration.WithLabelValues("webcams").Observe(time.Since(start).Seconds())

	degraded := err != nil
	if degraded {
		a.metrics.FetchRequests.WithLabelValues("webcams", "degraded").Inc()
		a.logger.Warn("webcam lookup failed, showing none", "cycle_id", c.id, "error", err)
		list = domain.WebcamList{}
	} else {
		a.metrics.FetchRequests.WithLabelValues("webcams", "success").Inc()
	}
	if list == nil {
		list = domain.WebcamList{}
	}

	a.apply(c, "webcams", func(s *Snapshot) {
		s.Webcams = list
		s.WebcamsLoading = false
		s.WebcamsDegraded = degraded
	})
}

// apply publishes a result unless a newer cycle has started since c.
func (a *Aggregator) apply(c cycle, kind string, mutate func(*Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c.seq != a.seq || a.closed {
		a.metrics.SupersededResults.WithLabelValues(kind).Inc()
		a.logger.Debug("discarding superseded result", "kind", kind, "cycle_id", c.id)
		return
	}
	next := a.snap.clone()
	mutate(&next)
	a.publishLocked(next)
}

// publishLocked swaps in next and notifies subscribers. Sends never block:
// a subscriber that has not consumed the previous value gets only the latest.
func (a *Aggregator) publishLocked(next Snapshot) {
	next.UpdatedAt = domain.Now()
	a.snap = next
	for _, ch := range a.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}

// Subscribe returns a channel receiving every published snapshot, starting
// with the current one, and a func that ends the subscription.
func (a *Aggregator) Subscribe() (<-chan Snapshot, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if a.closed {
		close(ch)
		return ch, func() {}
	}
	id := a.nextID
	a.nextID++
	a.subs[id] = ch
	ch <- a.snap

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if _, ok := a.subs[id]; ok {
				delete(a.subs, id)
				close(ch)
			}
		})
	}
}

// Wait blocks until every in-flight lookup has been applied or discarded.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// Close cancels in-flight lookups, waits for them, and closes all
// subscriptions. Later Fetch calls do nothing.
func (a *Aggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.cancel()
	a.wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ch := range a.subs {
		delete(a.subs, id)
		close(ch)
	}
}
