// Package carousel implements the slide index and autoplay timer for a
// webcam's preview images.
//
// A Carousel owns exactly one autoplay goroutine at a time. The goroutine is
// stopped and joined whenever the image list or interval changes and when the
// carousel is closed, so no tick can reach a carousel after Close returns.
package carousel

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrIndexOutOfRange is returned by Jump for an index outside the image list.
	ErrIndexOutOfRange = errors.New("carousel index out of range")

	// ErrClosed is returned by Jump after Close.
	ErrClosed = errors.New("carousel closed")
)

// State is a point-in-time copy of a carousel.
type State struct {
	Index   int      `json:"index"`
	Running bool     `json:"running"`
	Paused  bool     `json:"paused"`
	Images  []string `json:"images"`
}

// Option configures a Carousel at construction.
type Option func(*Carousel)

// WithClock sets the time source for the autoplay ticker.
func WithClock(c clockwork.Clock) Option {
	return func(cr *Carousel) { cr.clock = c }
}

// Carousel tracks the current slide of an ordered image list and advances it
// on a timer while running.
type Carousel struct {
	mu    sync.Mutex
	clock clockwork.Clock

	images   []string
	interval time.Duration
	index    int
	paused   bool
	closed   bool

	// gen identifies the current autoplay goroutine. Ticks carrying an older
	// generation are ignored.
	gen  uint64
	stop chan struct{}
	done chan struct{}
}

// New creates a carousel over images. Autoplay starts immediately when
// interval > 0 and there is more than one image.
func New(images []string, interval time.Duration, opts ...Option) *Carousel {
	c := &Carousel{
		clock:    clockwork.NewRealClock(),
		images:   slices.Clone(images),
		interval: interval,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	c.startLocked()
	c.mu.Unlock()
	return c
}

// Index returns the current slide index. It is 0 for an empty list.
func (c *Carousel) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// Current returns the image at the current index, or "" for an empty list.
func (c *Carousel) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.images) == 0 {
		return ""
	}
	return c.images[c.index]
}

// Len returns the number of images.
func (c *Carousel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.images)
}

// Running reports whether the autoplay timer is active.
func (c *Carousel) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// State returns a copy of the carousel's current state.
func (c *Carousel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Index:   c.index,
		Running: c.stop != nil,
		Paused:  c.paused,
		Images:  slices.Clone(c.images),
	}
}

// Next advances to the following slide, wrapping to 0. No-op for one image or fewer.
func (c *Carousel) Next() {
	c.step(1)
}

// Prev moves to the preceding slide, wrapping to the last. No-op for one image or fewer.
func (c *Carousel) Prev() {
	c.step(-1)
}

func (c *Carousel) step(delta int) {
	c.mu.Lock()
	if c.closed || len(c.images) <= 1 {
		c.mu.Unlock()
		return
	}
	n := len(c.images)
	c.index = (c.index + delta + n) % n
	c.mu.Unlock()
}

// Jump moves directly to slide i. An index outside [0, len) is rejected.
func (c *Carousel) Jump(i int) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if i < 0 || i >= len(c.images) {
		n := len(c.images)
		c.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, n)
	}
	c.index = i
	c.mu.Unlock()
	return nil
}

// SetImages replaces the image list. The index resets to 0 and the autoplay
// timer restarts for the new list.
func (c *Carousel) SetImages(images []string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	done := c.stopLocked()
	c.images = slices.Clone(images)
	c.index = 0
	c.startLocked()
	c.mu.Unlock()

	wait(done)
}

// SetInterval changes the autoplay interval and restarts the timer. A zero or
// negative interval disables autoplay.
func (c *Carousel) SetInterval(d time.Duration) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	done := c.stopLocked()
	c.interval = d
	c.startLocked()
	c.mu.Unlock()

	wait(done)
}

// Pause stops autoplay without changing the current slide.
func (c *Carousel) Pause() {
	c.mu.Lock()
	if c.closed || c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = true
	done := c.stopLocked()
	c.mu.Unlock()

	wait(done)
}

// Paused reports whether autoplay was stopped by Pause.
func (c *Carousel) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Resume restarts autoplay after Pause.
func (c *Carousel) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.paused {
		return
	}
	c.paused = false
	c.startLocked()
}

// Close stops autoplay and waits for the timer goroutine to exit. After Close
// the carousel ignores all transitions. Close is idempotent.
func (c *Carousel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	done := c.stopLocked()
	c.mu.Unlock()

	wait(done)
}

// startLocked launches the autoplay goroutine if the carousel should run.
func (c *Carousel) startLocked() {
	if c.closed || c.paused || c.interval <= 0 || len(c.images) <= 1 {
		return
	}
	c.gen++
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	ticker := c.clock.NewTicker(c.interval)
	go c.autoplay(c.gen, ticker, c.stop, c.done)
}

// stopLocked signals the running goroutine to exit and returns a channel that
// closes once it has. The caller must wait on it after releasing c.mu, since
// the goroutine may be blocked acquiring the lock.
func (c *Carousel) stopLocked() <-chan struct{} {
	if c.stop == nil {
		return nil
	}
	c.gen++
	close(c.stop)
	done := c.done
	c.stop, c.done = nil, nil
	return done
}

func (c *Carousel) autoplay(gen uint64, ticker clockwork.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !c.tick(gen) {
				return
			}
		}
	}
}

// tick advances one slide on behalf of goroutine gen. It returns false when
// gen is stale.
func (c *Carousel) tick(gen uint64) bool {
	c.mu.Lock()
	if c.closed || c.gen != gen || len(c.images) <= 1 {
		c.mu.Unlock()
		return false
	}
	c.index = (c.index + 1) % len(c.images)
	c.mu.Unlock()
	return true
}

func wait(done <-chan struct{}) {
	if done != nil {
		<-done
	}
}
