package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/webcam-weather/internal/adapter/geolocation"
	"github.com/couchcryptid/webcam-weather/internal/aggregator"
	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
	"github.com/couchcryptid/webcam-weather/internal/view"
)

var cities = map[string]domain.Coordinate{
	"Paris": {Lat: 48.8566, Lon: 2.3522},
	"Tokyo": {Lat: 35.6762, Lon: 139.6503},
}

// --- mocks ---

type mockResolver struct {
	mu        sync.Mutex
	cityCalls int
	geoCalls  int
	gates     map[string]chan struct{}
	geoErr    error
	geoPos    domain.Coordinate
	locator   domain.Locator
}

func newMockResolver() *mockResolver {
	return &mockResolver{gates: make(map[string]chan struct{})}
}

func (m *mockResolver) hold(name string) func() {
	ch := make(chan struct{})
	m.mu.Lock()
	m.gates[name] = ch
	m.mu.Unlock()
	return func() { close(ch) }
}

func (m *mockResolver) FromCity(_ context.Context, name string) (domain.Coordinate, error) {
	m.mu.Lock()
	m.cityCalls++
	gate := m.gates[name]
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	coord, ok := cities[name]
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: %q", domain.ErrCityNotFound, name)
	}
	return coord, nil
}

func (m *mockResolver) FromGeolocation(ctx context.Context) (domain.Coordinate, error) {
	m.mu.Lock()
	m.geoCalls++
	m.mu.Unlock()
	if m.locator != nil {
		return m.locator.CurrentPosition(ctx)
	}
	return m.geoPos, m.geoErr
}

func (m *mockResolver) calls() (city, geo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cityCalls, m.geoCalls
}

type stubBackend struct {
	mu           sync.Mutex
	calls        int
	cityFailures int
}

// failCity makes the next n by-city lookups fail in transport.
func (s *stubBackend) failCity(n int) {
	s.mu.Lock()
	s.cityFailures = n
	s.mu.Unlock()
}

func (s *stubBackend) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubBackend) inc() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *stubBackend) WeatherByCoordinate(_ context.Context, c domain.Coordinate) (domain.WeatherSnapshot, error) {
	s.inc()
	return domain.WeatherSnapshot{Location: "at " + c.String(), Description: "Clear Sky", Humidity: 50}, nil
}

func (s *stubBackend) WeatherByCity(_ context.Context, name string) (domain.WeatherSnapshot, error) {
	s.mu.Lock()
	s.calls++
	fail := s.cityFailures > 0
	if fail {
		s.cityFailures--
	}
	s.mu.Unlock()
	if fail {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: connection refused", domain.ErrWeatherFetch)
	}
	return domain.WeatherSnapshot{Location: name, Description: "Light Rain", Humidity: 80}, nil
}

func (s *stubBackend) RawWeather(_ context.Context, _ domain.Coordinate) (domain.WeatherSnapshot, error) {
	return domain.WeatherSnapshot{}, errors.New("unused")
}

func (s *stubBackend) Webcams(_ context.Context, c domain.Coordinate) (domain.WebcamList, error) {
	s.inc()
	return domain.WebcamList{
		{ID: c.String(), Title: "cam", PreviewImages: []string{"a.jpg", "b.jpg"}},
	}, nil
}

type fixture struct {
	ctrl     *Controller
	resolver *mockResolver
	backend  *stubBackend
	agg      *aggregator.Aggregator
	metrics  *observability.Metrics
}

func newFixture(t *testing.T, reporter PositionReporter) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	backend := &stubBackend{}
	agg := aggregator.New(backend, metrics, logger)
	resolver := newMockResolver()
	deck := view.NewDeck(view.DefaultAutoplay, metrics, logger, view.WithDeckClock(clockwork.NewFakeClock()))
	ctrl := New(resolver, agg, reporter, deck, view.NewMapSync(view.DefaultZoom), metrics, logger)

	t.Cleanup(func() {
		ctrl.Close()
		agg.Close()
	})
	return &fixture{ctrl: ctrl, resolver: resolver, backend: backend, agg: agg, metrics: metrics}
}

// --- tests ---

func TestSearch_Success(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.ctrl.Search(context.Background(), "  Paris "))
	f.agg.Wait()

	v := f.ctrl.View()
	require.NotNil(t, v.Coordinate)
	assert.Equal(t, cities["Paris"], *v.Coordinate)
	require.NotNil(t, v.Weather)
	assert.Equal(t, "Paris", v.Weather.Location)
	assert.Equal(t, view.AnimationRain, v.Weather.Animation)
	assert.Equal(t, "Paris", v.Query)
	assert.Empty(t, v.Status)
}

func TestSearch_EmptyInputIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()
	before := f.ctrl.View()

	for _, input := range []string{"", "   ", "\t\n"} {
		err := f.ctrl.Search(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	}
	f.agg.Wait()

	city, _ := f.resolver.calls()
	assert.Equal(t, 1, city, "no resolver call for blank input")
	after := f.ctrl.View()
	assert.Equal(t, before.Coordinate, after.Coordinate)
	assert.Equal(t, before.Weather, after.Weather)
	assert.Equal(t, before.Query, after.Query)
	assert.Equal(t, before.Status, after.Status)
}

func TestSearch_CityNotFoundKeepsInput(t *testing.T) {
	f := newFixture(t, nil)

	err := f.ctrl.Search(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, domain.ErrCityNotFound)

	v := f.ctrl.View()
	assert.Equal(t, domain.MsgCityNotFound, v.Status)
	assert.Equal(t, "Atlantis", v.Query)
	assert.Nil(t, v.Coordinate)
	assert.Equal(t, 0, f.backend.count())
}

func TestSearch_RepeatRetriesAfterFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.failCity(1)

	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()
	v := f.ctrl.View()
	assert.Nil(t, v.Weather)
	assert.Equal(t, domain.MsgTryAgain, v.WeatherError)

	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()
	v = f.ctrl.View()
	require.NotNil(t, v.Weather)
	assert.Equal(t, "Paris", v.Weather.Location)
	assert.Empty(t, v.WeatherError)
	assert.Zero(t, testutil.ToFloat64(f.metrics.SkippedFetches))
}

func TestSearch_RepeatAfterSuccessIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()
	calls := f.backend.count()

	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()
	assert.Equal(t, calls, f.backend.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SkippedFetches))
}

func TestSearch_LatestWins(t *testing.T) {
	f := newFixture(t, nil)
	releaseParis := f.resolver.hold("Paris")

	parisErr := make(chan error, 1)
	go func() { parisErr <- f.ctrl.Search(context.Background(), "Paris") }()

	require.Eventually(t, func() bool {
		city, _ := f.resolver.calls()
		return city == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, f.ctrl.Search(context.Background(), "Tokyo"))
	releaseParis()
	assert.ErrorIs(t, <-parisErr, domain.ErrSuperseded)
	f.agg.Wait()

	v := f.ctrl.View()
	require.NotNil(t, v.Coordinate)
	assert.Equal(t, cities["Tokyo"], *v.Coordinate)
	assert.Equal(t, "Tokyo", v.Weather.Location)
	assert.Equal(t, "Tokyo", v.Query)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SupersededResults.WithLabelValues("location")))
}

func TestLocate_Success(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.geoPos = domain.Coordinate{Lat: 40.7128, Lon: -74.006}

	require.NoError(t, f.ctrl.Locate(context.Background()))
	f.agg.Wait()

	v := f.ctrl.View()
	require.NotNil(t, v.Coordinate)
	assert.Equal(t, "at "+f.resolver.geoPos.String(), v.Weather.Location)
}

func TestLocate_Unavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.geoErr = domain.ErrLocationUnavailable

	err := f.ctrl.Locate(context.Background())
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)

	city, geo := f.resolver.calls()
	assert.Equal(t, 1, geo)
	assert.Equal(t, 0, city, "never falls back to city search")
	assert.Equal(t, domain.MsgLocationUnavailable, f.ctrl.View().Status)
}

func TestReportPosition(t *testing.T) {
	reported := geolocation.NewReported(nil)
	f := newFixture(t, reported)
	f.resolver.locator = reported

	pos := domain.Coordinate{Lat: -33.8688, Lon: 151.2093}
	require.NoError(t, f.ctrl.ReportPosition(context.Background(), pos))
	f.agg.Wait()
	assert.Equal(t, pos, *f.ctrl.View().Coordinate)

	err := f.ctrl.ReportPositionError(context.Background(), "User denied Geolocation")
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
	v := f.ctrl.View()
	assert.Equal(t, domain.MsgLocationUnavailable, v.Status)
	assert.Equal(t, pos, *v.Coordinate, "previous location stays displayed")
}

func TestReportPosition_WithoutReporter(t *testing.T) {
	f := newFixture(t, nil)
	err := f.ctrl.ReportPosition(context.Background(), domain.Coordinate{})
	assert.ErrorIs(t, err, domain.ErrLocationUnavailable)
}

func TestView_CardsAndMapFollowSnapshots(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()

	var v view.View
	require.Eventually(t, func() bool {
		v = f.ctrl.View()
		return v.Map != nil && v.Map.Center != nil && v.Map.Marker != nil && len(v.Cards) == 1 && v.Cards[0].Carousel.Running
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, cities["Paris"], *v.Map.Center)
	assert.Equal(t, view.DefaultZoom, v.Map.Zoom)

	key := v.Cards[0].Key
	require.NoError(t, f.ctrl.Next(key))
	assert.Equal(t, 1, f.ctrl.View().Cards[0].Carousel.Index)
	require.NoError(t, f.ctrl.Prev(key))
	require.NoError(t, f.ctrl.Jump(key, 1))
	assert.Error(t, f.ctrl.Jump(key, 5))
	assert.ErrorIs(t, f.ctrl.Next("nope"), view.ErrUnknownCard)
}

func TestCheckReadiness(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctrl.CheckReadiness(context.Background()))
	f.ctrl.Close()
	assert.Error(t, f.ctrl.CheckReadiness(context.Background()))
}

func TestPauseResume(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()

	var key string
	require.Eventually(t, func() bool {
		v := f.ctrl.View()
		if len(v.Cards) != 1 || !v.Cards[0].Carousel.Running {
			return false
		}
		key = v.Cards[0].Key
		return true
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.ctrl.Pause(key))
	cv := f.ctrl.View().Cards[0].Carousel
	assert.True(t, cv.Paused)
	assert.False(t, cv.Running)

	require.NoError(t, f.ctrl.Resume(key))
	cv = f.ctrl.View().Cards[0].Carousel
	assert.False(t, cv.Paused)
	assert.True(t, cv.Running)

	assert.ErrorIs(t, f.ctrl.Pause("nope"), view.ErrUnknownCard)
}

func TestSetZoom_UpdatesMapImmediately(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.ctrl.Search(context.Background(), "Paris"))
	f.agg.Wait()
	require.Eventually(t, func() bool {
		m := f.ctrl.View().Map
		return m != nil && m.Center != nil
	}, time.Second, 5*time.Millisecond)

	f.ctrl.SetZoom(4)
	m := f.ctrl.View().Map
	assert.Equal(t, 4, m.Zoom)
	assert.Equal(t, cities["Paris"], *m.Center)
}
