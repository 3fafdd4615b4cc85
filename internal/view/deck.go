package view

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/webcam-weather/internal/carousel"
	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

// DefaultAutoplay is the slide interval of webcam preview carousels.
const DefaultAutoplay = 5 * time.Second

// ErrUnknownCard is returned for a key that has no carousel.
var ErrUnknownCard = errors.New("unknown card")

// DeckOption configures a Deck.
type DeckOption func(*Deck)

// WithDeckClock sets the clock driving carousel autoplay.
func WithDeckClock(c clockwork.Clock) DeckOption {
	return func(d *Deck) { d.clock = c }
}

// Deck owns one carousel per webcam card that is shown through preview
// images. Carousels live exactly as long as their card.
type Deck struct {
	interval time.Duration
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	cards  map[string]*carousel.Carousel
	closed bool
}

// NewDeck creates an empty deck whose carousels advance every interval.
func NewDeck(interval time.Duration, metrics *observability.Metrics, logger *slog.Logger, opts ...DeckOption) *Deck {
	d := &Deck{
		interval: interval,
		clock:    clockwork.NewRealClock(),
		metrics:  metrics,
		logger:   logger,
		cards:    make(map[string]*carousel.Carousel),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CardKeys returns the reconciliation key of every entry in list order.
// Identical entries get an occurrence suffix so keys stay unique.
func CardKeys(list domain.WebcamList) []string {
	keys := make([]string, len(list))
	seen := make(map[string]int, len(list))
	for i, w := range list {
		k := w.Key()
		seen[k]++
		if n := seen[k]; n > 1 {
			k = fmt.Sprintf("%s-%d", k, n)
		}
		keys[i] = k
	}
	return keys
}

// Sync reconciles the deck with list. Carousels of removed cards are closed,
// kept cards keep their carousel (restarted only if their images changed),
// and new preview cards get a fresh carousel.
func (d *Deck) Sync(list domain.WebcamList) {
	keys := CardKeys(list)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	type update struct {
		c      *carousel.Carousel
		images []string
	}
	wanted := make(map[string]struct{}, len(list))
	var (
		created int
		updates []update
	)
	for i, w := range list {
		if w.Live() || len(w.PreviewImages) == 0 {
			continue
		}
		key := keys[i]
		wanted[key] = struct{}{}
		if c, ok := d.cards[key]; ok {
			if !slices.Equal(c.State().Images, w.PreviewImages) {
				updates = append(updates, update{c, w.PreviewImages})
			}
			continue
		}
		d.cards[key] = carousel.New(w.PreviewImages, d.interval, carousel.WithClock(d.clock))
		created++
	}

	var removed []*carousel.Carousel
	for key, c := range d.cards {
		if _, ok := wanted[key]; !ok {
			removed = append(removed, c)
			delete(d.cards, key)
		}
	}
	active := len(d.cards)
	d.mu.Unlock()

	// SetImages and Close join autoplay goroutines, so they run outside the
	// deck lock.
	for _, u := range updates {
		u.c.SetImages(u.images)
	}
	for _, c := range removed {
		c.Close()
	}
	d.metrics.ActiveCarousels.Set(float64(active))
	if created > 0 || len(removed) > 0 || len(updates) > 0 {
		d.logger.Debug("card deck synced",
			"created", created, "updated", len(updates), "removed", len(removed), "active", active)
	}
}

func (d *Deck) lookup(key string) (*carousel.Carousel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.cards[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCard, key)
	}
	return c, nil
}

// State returns the carousel state of a card.
func (d *Deck) State(key string) (carousel.State, bool) {
	c, err := d.lookup(key)
	if err != nil {
		return carousel.State{}, false
	}
	return c.State(), true
}

// Next advances a card's carousel.
func (d *Deck) Next(key string) error {
	c, err := d.lookup(key)
	if err != nil {
		return err
	}
	c.Next()
	return nil
}

// Prev steps a card's carousel back.
func (d *Deck) Prev(key string) error {
	c, err := d.lookup(key)
	if err != nil {
		return err
	}
	c.Prev()
	return nil
}

// Jump moves a card's carousel to slide i.
func (d *Deck) Jump(key string, i int) error {
	c, err := d.lookup(key)
	if err != nil {
		return err
	}
	return c.Jump(i)
}

// Pause stops autoplay of a card's carousel, keeping its slide.
func (d *Deck) Pause(key string) error {
	c, err := d.lookup(key)
	if err != nil {
		return err
	}
	c.Pause()
	return nil
}

// Resume restarts autoplay of a card's carousel after Pause.
func (d *Deck) Resume(key string) error {
	c, err := d.lookup(key)
	if err != nil {
		return err
	}
	c.Resume()
	return nil
}

// Len returns the number of live carousels.
func (d *Deck) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cards)
}

// Close closes every carousel. Later Sync calls do nothing.
func (d *Deck) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	cards := d.cards
	d.cards = make(map[string]*carousel.Carousel)
	d.mu.Unlock()

	for _, c := range cards {
		c.Close()
	}
	d.metrics.ActiveCarousels.Set(0)
}
