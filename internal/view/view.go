// Package view derives the presentation state (map marker, weather panel,
// webcam cards) from an aggregator snapshot. Bind is a pure function; the
// only stateful pieces are the card Deck, which owns carousel lifetimes, and
// MapSync, which remembers which coordinate the map was last centered on.
package view

import (
	"time"

	"github.com/couchcryptid/webcam-weather/internal/aggregator"
	"github.com/couchcryptid/webcam-weather/internal/domain"
)

// CardKind selects how a webcam card presents its imagery.
type CardKind string

const (
	CardLive     CardKind = "live"
	CardCarousel CardKind = "carousel"
	CardNoImage  CardKind = "none"
)

// View is everything a renderer needs for one frame.
type View struct {
	Coordinate *domain.Coordinate `json:"coordinate,omitempty"`
	Revision   uint64             `json:"revision"`
	MapMessage string             `json:"map_message,omitempty"`
	// Map is filled by the owner of the map surface, not by Bind.
	Map *MapStateSnapshot `json:"map,omitempty"`
	// Query is the last search input, kept for correction after a failure.
	Query string `json:"query,omitempty"`

	Marker       *Marker       `json:"marker,omitempty"`
	Weather      *WeatherPanel `json:"weather,omitempty"`
	WeatherError string        `json:"weather_error,omitempty"`
	Loading      bool          `json:"loading"`
	Status       string        `json:"status,omitempty"`

	Cards           []Card `json:"cards"`
	WebcamMessage   string `json:"webcam_message,omitempty"`
	WebcamsDegraded bool   `json:"webcams_degraded"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Marker is the map pin and its popup.
type Marker struct {
	Position domain.Coordinate `json:"position"`
	Popup    WeatherPanel      `json:"popup"`
}

// WeatherPanel is the weather card content, also used as the popup.
type WeatherPanel struct {
	Location    string    `json:"location"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url,omitempty"`
	Animation   Animation `json:"animation"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"wind_speed"`
}

// Card is one webcam. Title and view count are always present.
type Card struct {
	Key          string        `json:"key"`
	Title        string        `json:"title"`
	ViewCount    int           `json:"view_count"`
	Kind         CardKind      `json:"kind"`
	LiveEmbedURL string        `json:"live_embed_url,omitempty"`
	Carousel     *CarouselView `json:"carousel,omitempty"`
}

// CarouselView is the visible state of a preview carousel.
type CarouselView struct {
	Images  []string `json:"images"`
	Index   int      `json:"index"`
	Current string   `json:"current"`
	Running bool     `json:"running"`
	Paused  bool     `json:"paused"`
	Dots    []Dot    `json:"dots"`
}

// Dot is one pagination indicator.
type Dot struct {
	Index  int  `json:"index"`
	Active bool `json:"active"`
}

// Bind derives a View from snap. Carousel positions come from deck, which may
// be nil; a card without a carousel shows its first image.
func Bind(snap aggregator.Snapshot, deck *Deck) View {
	v := View{
		Coordinate:      snap.Coordinate,
		Revision:        snap.Revision,
		Loading:         snap.Loading(),
		WebcamsDegraded: snap.WebcamsDegraded,
		UpdatedAt:       snap.UpdatedAt,
		Cards:           []Card{},
	}
	if snap.Coordinate == nil {
		v.MapMessage = domain.MsgLoadingMap
	}
	if snap.WeatherLoading {
		v.Status = domain.MsgFetchingWeather
	}

	if w := snap.Weather; w != nil {
		if w.Valid() {
			panel := weatherPanel(*w)
			v.Weather = &panel
			if snap.Coordinate != nil {
				v.Marker = &Marker{Position: *snap.Coordinate, Popup: panel}
			}
		} else {
			v.WeatherError = w.Error
		}
	}

	keys := CardKeys(snap.Webcams)
	for i, w := range snap.Webcams {
		v.Cards = append(v.Cards, bindCard(keys[i], w, deck))
	}
	if len(v.Cards) == 0 && !snap.WebcamsLoading && snap.Coordinate != nil {
		v.WebcamMessage = domain.MsgNoWebcams
	}
	return v
}

func weatherPanel(w domain.WeatherSnapshot) WeatherPanel {
	return WeatherPanel{
		Location:    w.Location,
		Description: w.Description,
		IconURL:     IconURL(w.Icon),
		Animation:   AnimationFor(w.Description),
		Temperature: w.Temperature,
		Humidity:    w.Humidity,
		WindSpeed:   w.WindSpeed,
	}
}

func bindCard(key string, w domain.WebcamEntry, deck *Deck) Card {
	card := Card{Key: key, Title: w.Title, ViewCount: w.ViewCount}
	switch {
	case w.Live():
		card.Kind = CardLive
		card.LiveEmbedURL = w.LiveEmbedURL
	case len(w.PreviewImages) > 0:
		card.Kind = CardCarousel
		cv := CarouselView{Images: w.PreviewImages}
		if deck != nil {
			if st, ok := deck.State(key); ok && len(st.Images) == len(w.PreviewImages) {
				cv.Index = st.Index
				cv.Running = st.Running
				cv.Paused = st.Paused
			}
		}
		cv.Current = w.PreviewImages[cv.Index]
		cv.Dots = Dots(len(w.PreviewImages), cv.Index)
		card.Carousel = &cv
	default:
		card.Kind = CardNoImage
	}
	return card
}

// Dots returns n pagination dots with the one at active marked.
func Dots(n, active int) []Dot {
	dots := make([]Dot, n)
	for i := range dots {
		dots[i] = Dot{Index: i, Active: i == active}
	}
	return dots
}
