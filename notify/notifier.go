// Package notify announces notable room transitions to the activity feed.
// Delivery is strictly fire-and-forget: a slow or broken sink can never
// block or fail a game operation.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"arcade/game"
)

type Event struct {
	Kind     string    `json:"kind"`
	RoomID   string    `json:"room_id"`
	GameKind string    `json:"game_kind"`
	Actors   []string  `json:"actors,omitempty"`
	At       time.Time `json:"at"`
}

// Sink receives events, one at a time, from the dispatcher worker.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Dispatcher implements game.Notifier. Notify enqueues without blocking;
// when the buffer is full the event is dropped with a warning, which is
// the contract: notifications are best-effort.
type Dispatcher struct {
	events chan Event
	sinks  []Sink
	now    func() time.Time
}

func NewDispatcher(buffer int, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		events: make(chan Event, buffer),
		sinks:  sinks,
		now:    time.Now,
	}
}

func (d *Dispatcher) Notify(eventKind string, key game.RoomKey, actors []string) {
	event := Event{
		Kind:     eventKind,
		RoomID:   key.ID,
		GameKind: string(key.Kind),
		Actors:   actors,
		At:       d.now(),
	}
	select {
	case d.events <- event:
	default:
		log.Warn().Str("event", eventKind).Str("room", key.ID).Msg("notification buffer full, event dropped")
	}
}

// Run drains the queue until the context is cancelled. Sink failures are
// logged and swallowed.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			for _, sink := range d.sinks {
				if err := sink.Emit(ctx, event); err != nil {
					log.Warn().Err(err).Str("event", event.Kind).Str("room", event.RoomID).Msg("notification delivery failed")
				}
			}
		}
	}
}

// LogSink writes events to the structured log, the default feed in dev.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, event Event) error {
	log.Info().
		Str("event", event.Kind).
		Str("game_kind", event.GameKind).
		Str("room", event.RoomID).
		Strs("actors", event.Actors).
		Msg("room activity")
	return nil
}

// WebhookSink POSTs events as JSON to the activity feed endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Emit(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("feed responded %d", resp.StatusCode)
	}
	return nil
}
