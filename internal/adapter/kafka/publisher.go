// Package kafka publishes settled view snapshots to a Kafka topic so other
// services can follow what users are looking at.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/webcam-weather/internal/aggregator"
	"github.com/couchcryptid/webcam-weather/internal/domain"
	"github.com/couchcryptid/webcam-weather/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SnapshotEvent is the message payload.
type SnapshotEvent struct {
	CycleID         string                  `json:"cycle_id"`
	Coordinate      domain.Coordinate       `json:"coordinate"`
	CityName        string                  `json:"city_name,omitempty"`
	Weather         *domain.WeatherSnapshot `json:"weather,omitempty"`
	Webcams         domain.WebcamList       `json:"webcams"`
	WebcamsDegraded bool                    `json:"webcams_degraded"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock sets the clock timing retry backoff.
func WithClock(c clockwork.Clock) Option {
	return func(p *Publisher) { p.clock = c }
}

// Publisher writes one message per completed fetch cycle.
type Publisher struct {
	writer  messageWriter
	topic   string
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	lastCycle string
	lastErr   error
}

// NewPublisher creates a Kafka producer for the snapshot topic.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newPublisher(w, topic, metrics, logger, opts...)
}

func newPublisher(w messageWriter, topic string, metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		writer:  w,
		topic:   topic,
		clock:   clockwork.NewRealClock(),
		metrics: metrics,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run publishes snapshots from updates until ctx is cancelled or updates is
// closed. Only settled snapshots (location known, no lookup pending) are
// published, once per cycle. A failed publish is retried with exponential
// backoff; a newer snapshot arriving meanwhile replaces the pending one.
func (p *Publisher) Run(ctx context.Context, updates <-chan aggregator.Snapshot) error {
	p.logger.Info("snapshot publisher started", "topic", p.topic)

	backoff := initialBackoff
	var (
		pending *aggregator.Snapshot
		retry   <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if !p.publishable(snap) {
				continue
			}
			pending = &snap
		case <-retry:
			retry = nil
		}
		if pending == nil || retry != nil {
			continue
		}

		if err := p.Publish(ctx, *pending); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("snapshot publish failed", "cycle_id", pending.CycleID, "error", err, "retry_in", backoff)
			retry = p.clock.After(backoff)
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		pending = nil
		backoff = initialBackoff
	}
}

func (p *Publisher) publishable(snap aggregator.Snapshot) bool {
	if snap.Coordinate == nil || snap.Loading() || snap.CycleID == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return snap.CycleID != p.lastCycle
}

// Publish writes snap to the topic.
func (p *Publisher) Publish(ctx context.Context, snap aggregator.Snapshot) error {
	msg, err := serializeToMessage(snap)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, msg)

	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.lastCycle = snap.CycleID
	}
	p.mu.Unlock()

	if err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("write snapshot: %w", err)
	}
	p.metrics.SnapshotsPublished.Inc()
	p.logger.Debug("snapshot published", "cycle_id", snap.CycleID, "coordinate", snap.Coordinate.String())
	return nil
}

// CheckReadiness reports the error of the most recent publish, if any.
func (p *Publisher) CheckReadiness(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastErr != nil {
		return errors.Join(errors.New("last snapshot publish failed"), p.lastErr)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a settled snapshot into a Kafka message keyed
// by coordinate, so every update for one location lands on one partition.
func serializeToMessage(snap aggregator.Snapshot) (kafkago.Message, error) {
	if snap.Coordinate == nil {
		return kafkago.Message{}, errors.New("serialize snapshot: no coordinate")
	}
	event := SnapshotEvent{
		CycleID:         snap.CycleID,
		Coordinate:      *snap.Coordinate,
		CityName:        snap.CityName,
		Weather:         snap.Weather,
		Webcams:         snap.Webcams,
		WebcamsDegraded: snap.WebcamsDegraded,
		UpdatedAt:       snap.UpdatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.Coordinate.String()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "cycle_id", Value: []byte(snap.CycleID)},
			{Key: "updated_at", Value: []byte(snap.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
