package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/game"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	seen   chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{seen: make(chan struct{}, 16)}
}

func (s *captureSink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.seen <- struct{}{}
	return s.err
}

func (s *captureSink) captured() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a delivery")
	}
}

func TestDispatcher(t *testing.T) {
	key := game.RoomKey{Kind: game.KindTicTacToe, ID: "match-1"}

	t.Run("delivers enqueued events to every sink", func(t *testing.T) {
		first, second := newCaptureSink(), newCaptureSink()
		dispatcher := NewDispatcher(8, first, second)
		at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
		dispatcher.now = func() time.Time { return at }

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go dispatcher.Run(ctx)

		dispatcher.Notify(game.EventGameStarted, key, []string{"alice", "bob"})
		waitFor(t, first.seen)
		waitFor(t, second.seen)

		want := Event{
			Kind:     game.EventGameStarted,
			RoomID:   "match-1",
			GameKind: "ttt",
			Actors:   []string{"alice", "bob"},
			At:       at,
		}
		assert.Equal(t, []Event{want}, first.captured())
		assert.Equal(t, []Event{want}, second.captured())
	})

	t.Run("a full buffer drops instead of blocking", func(t *testing.T) {
		dispatcher := NewDispatcher(1)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 50; i++ {
				dispatcher.Notify(game.EventPlayerJoined, key, nil)
			}
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Notify blocked on a full buffer")
		}
	})

	t.Run("a failing sink does not stop the others", func(t *testing.T) {
		failing := newCaptureSink()
		failing.err = errors.New("sink down")
		healthy := newCaptureSink()
		dispatcher := NewDispatcher(8, failing, healthy)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go dispatcher.Run(ctx)

		dispatcher.Notify(game.EventRoomCreated, key, nil)
		dispatcher.Notify(game.EventGameCompleted, key, nil)
		waitFor(t, healthy.seen)
		waitFor(t, healthy.seen)

		assert.Len(t, healthy.captured(), 2)
	})
}

func TestWebhookSink(t *testing.T) {
	t.Run("posts the event as json", func(t *testing.T) {
		received := make(chan Event, 1)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var event Event
			require.NoError(t, json.NewDecoder(r.Body).Decode(&event))
			received <- event
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		sink := NewWebhookSink(server.URL, time.Second)
		event := Event{Kind: game.EventGameCompleted, RoomID: "match-1", GameKind: "ttt"}
		require.NoError(t, sink.Emit(context.Background(), event))

		got := <-received
		assert.Equal(t, event.Kind, got.Kind)
		assert.Equal(t, event.RoomID, got.RoomID)
	})

	t.Run("non-2xx responses are errors", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		sink := NewWebhookSink(server.URL, time.Second)
		err := sink.Emit(context.Background(), Event{Kind: game.EventRoomCreated})
		assert.ErrorContains(t, err, "502")
	})

	t.Run("unreachable feed is an error", func(t *testing.T) {
		sink := NewWebhookSink("http://127.0.0.1:1/feed", 100*time.Millisecond)
		err := sink.Emit(context.Background(), Event{Kind: game.EventRoomCreated})
		assert.Error(t, err)
	})
}
