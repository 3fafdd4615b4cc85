package carousel

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 5 * time.Second

var threeImages = []string{"a.jpg", "b.jpg", "c.jpg"}

func newManual(images []string) *Carousel {
	return New(images, 0, WithClock(clockwork.NewFakeClock()))
}

func TestNew_InitialState(t *testing.T) {
	tests := []struct {
		name     string
		images   []string
		interval time.Duration
		running  bool
	}{
		{"autoplay with several images", threeImages, testInterval, true},
		{"single image never runs", []string{"a.jpg"}, testInterval, false},
		{"empty list never runs", nil, testInterval, false},
		{"zero interval disables autoplay", threeImages, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.images, tt.interval, WithClock(clockwork.NewFakeClock()))
			defer c.Close()

			assert.Equal(t, 0, c.Index())
			assert.Equal(t, tt.running, c.Running())
		})
	}
}

func TestNext_CyclesBackToStart(t *testing.T) {
	for n := 2; n <= 6; n++ {
		images := make([]string, n)
		for start := 0; start < n; start++ {
			c := newManual(images)
			require.NoError(t, c.Jump(start))
			for range n {
				c.Next()
			}
			assert.Equal(t, start, c.Index(), "n=%d start=%d", n, start)
		}
	}
}

func TestPrev_InvertsNext(t *testing.T) {
	c := newManual(threeImages)
	for i := range threeImages {
		require.NoError(t, c.Jump(i))
		c.Next()
		c.Prev()
		assert.Equal(t, i, c.Index())
	}
}

func TestPrev_WrapsToLast(t *testing.T) {
	c := newManual(threeImages)
	c.Prev()
	assert.Equal(t, 2, c.Index())
	assert.Equal(t, "c.jpg", c.Current())
}

func TestNextPrev_NoOpForSingleOrEmpty(t *testing.T) {
	for _, images := range [][]string{nil, {"only.jpg"}} {
		c := newManual(images)
		c.Next()
		c.Prev()
		assert.Equal(t, 0, c.Index())
	}
	assert.Equal(t, "", newManual(nil).Current())
}

func TestJump(t *testing.T) {
	c := newManual(threeImages)

	require.NoError(t, c.Jump(2))
	assert.Equal(t, 2, c.Index())

	err := c.Jump(3)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 2, c.Index(), "rejected jump must not move the index")

	require.ErrorIs(t, c.Jump(-1), ErrIndexOutOfRange)
	require.ErrorIs(t, newManual(nil).Jump(0), ErrIndexOutOfRange)
}

func TestAutoplay_AdvancesOnEachTick(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(threeImages, testInterval, WithClock(fc))
	defer c.Close()

	for _, want := range []int{1, 2, 0} {
		fc.Advance(testInterval)
		assert.Eventually(t, func() bool { return c.Index() == want }, time.Second, time.Millisecond)
	}
}

func TestClose_NoTransitionsAfterDestroy(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(threeImages, testInterval, WithClock(fc))

	c.Close()
	assert.False(t, c.Running())

	for range 5 {
		fc.Advance(testInterval)
	}
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 0, c.Index(), "autoplay ticks are ignored after close")

	c.Next()
	assert.Equal(t, 0, c.Index(), "manual transitions are ignored after close")
	assert.ErrorIs(t, c.Jump(1), ErrClosed)

	c.Close() // idempotent
}

func TestSetImages_ResetsIndexAndRestartsTimer(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(threeImages, testInterval, WithClock(fc))
	defer c.Close()

	require.NoError(t, c.Jump(2))
	c.SetImages([]string{"x.jpg", "y.jpg"})

	assert.Equal(t, 0, c.Index())
	assert.Equal(t, "x.jpg", c.Current())
	assert.True(t, c.Running())

	fc.Advance(testInterval)
	assert.Eventually(t, func() bool { return c.Index() == 1 }, time.Second, time.Millisecond)
}

func TestSetImages_ShrinkToSingleStopsTimer(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(threeImages, testInterval, WithClock(fc))
	defer c.Close()

	c.SetImages([]string{"solo.jpg"})
	assert.False(t, c.Running())

	fc.Advance(testInterval)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, c.Index())
}

func TestSetInterval(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(threeImages, testInterval, WithClock(fc))
	defer c.Close()

	c.SetInterval(0)
	assert.False(t, c.Running())

	c.SetInterval(time.Second)
	assert.True(t, c.Running())

	fc.Advance(time.Second)
	assert.Eventually(t, func() bool { return c.Index() == 1 }, time.Second, time.Millisecond)
}

func TestPauseResume(t *testing.T) {
	fc := clockwork.NewFakeClock()
	c := New(threeImages, testInterval, WithClock(fc))
	defer c.Close()

	c.Pause()
	assert.False(t, c.Running())
	assert.True(t, c.Paused())
	assert.True(t, c.State().Paused)
	fc.Advance(testInterval)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, c.Index())

	c.Resume()
	assert.True(t, c.Running())
	assert.False(t, c.Paused())
	fc.Advance(testInterval)
	assert.Eventually(t, func() bool { return c.Index() == 1 }, time.Second, time.Millisecond)
}

func TestState_ReturnsCopy(t *testing.T) {
	c := newManual(threeImages)
	s := c.State()
	s.Images[0] = "mutated.jpg"

	assert.Equal(t, "a.jpg", c.Current())
	assert.Equal(t, State{Index: 0, Running: false, Images: threeImages}, c.State())
}
