package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"arcade/domain"
)

// --- Store ---

// fakeStore is an in-memory Store for unit tests. It serializes snapshots
// like the real backends do, and can inject CAS conflicts and errors.
type fakeStore struct {
	mu      sync.Mutex
	entries map[RoomKey]fakeEntry

	// conflictNext forces the next n CompareAndSwap calls to lose.
	conflictNext int
	loadErr      error
	casErr       error
	casCalls     int
}

type fakeEntry struct {
	version    int64
	data       []byte
	staleAfter time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[RoomKey]fakeEntry)}
}

func (s *fakeStore) Load(_ context.Context, key RoomKey) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrRoomNotFound, key.Kind, key.ID)
	}
	var room Room
	if err := json.Unmarshal(entry.data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *fakeStore) CompareAndSwap(_ context.Context, key RoomKey, expected int64, room *Room) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.casCalls++
	if s.casErr != nil {
		return false, s.casErr
	}
	if s.conflictNext > 0 {
		s.conflictNext--
		return false, nil
	}
	entry, exists := s.entries[key]
	if !exists {
		if expected != 0 {
			return false, nil
		}
	} else if entry.version != expected {
		return false, nil
	}
	data, err := json.Marshal(room)
	if err != nil {
		return false, err
	}
	s.entries[key] = fakeEntry{version: room.Version, data: data, staleAfter: room.StaleAfter}
	return true, nil
}

func (s *fakeStore) Delete(_ context.Context, key RoomKey) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) ListStale(_ context.Context, now time.Time) ([]RoomKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []RoomKey
	for key, entry := range s.entries {
		if !entry.staleAfter.After(now) {
			stale = append(stale, key)
		}
	}
	return stale, nil
}

// --- Notifier ---

// recordingNotifier captures events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(eventKind string, key RoomKey, _ []string) {
	n.mu.Lock()
	n.events = append(n.events, eventKind+":"+key.ID)
	n.mu.Unlock()
}

func (n *recordingNotifier) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func (n *recordingNotifier) count(eventKind, roomID string) int {
	want := eventKind + ":" + roomID
	c := 0
	for _, e := range n.recorded() {
		if e == want {
			c++
		}
	}
	return c
}

// --- MockStore (error-path assertions) ---

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Load(ctx context.Context, key RoomKey) (*Room, error) {
	args := m.Called(ctx, key)
	room, _ := args.Get(0).(*Room)
	return room, args.Error(1)
}

func (m *MockStore) CompareAndSwap(ctx context.Context, key RoomKey, expected int64, room *Room) (bool, error) {
	args := m.Called(ctx, key, expected, room)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, key RoomKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) ListStale(ctx context.Context, now time.Time) ([]RoomKey, error) {
	args := m.Called(ctx, now)
	keys, _ := args.Get(0).([]RoomKey)
	return keys, args.Error(1)
}

// --- helpers ---

func testRegistry() *Registry {
	return NewRegistry(
		NewTicTacToe(),
		NewWordChain(),
		NewDrawing(),
		NewStory(),
		NewCrossword(),
	)
}

type coreFixture struct {
	store       *fakeStore
	notifier    *recordingNotifier
	lifecycle   *Lifecycle
	coordinator *Coordinator
}

func newCoreFixture() *coreFixture {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	registry := testRegistry()
	return &coreFixture{
		store:       store,
		notifier:    notifier,
		lifecycle:   NewLifecycle(store, registry, notifier),
		coordinator: NewCoordinator(store, registry, notifier),
	}
}

func mustJSON(t interface{ Fatalf(string, ...any) }, v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func unmarshalState(state json.RawMessage, dest any) error {
	return json.Unmarshal(state, dest)
}

var errStorageDown = fmt.Errorf("%w: connection refused", domain.ErrStorageUnavailable)

// playTicTacToeWin joins alice and bob and plays alice to an anti-diagonal win.
func playTicTacToeWin(t *testing.T, f *coreFixture, roomID string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.lifecycle.CreateOrJoin(ctx, KindTicTacToe, roomID, "alice", false, nil)
	require.NoError(t, err)
	_, err = f.lifecycle.CreateOrJoin(ctx, KindTicTacToe, roomID, "bob", false, nil)
	require.NoError(t, err)
	for _, mv := range []struct {
		actor    string
		position int
	}{
		{"alice", 5}, {"bob", 1}, {"alice", 3}, {"bob", 2}, {"alice", 7},
	} {
		_, err := f.coordinator.SubmitMove(ctx, KindTicTacToe, roomID, mv.actor, mustJSON(t, tttMove{Position: mv.position}))
		require.NoError(t, err)
	}
}
