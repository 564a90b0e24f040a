package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"arcade/game"
)

// MemoryStore keeps serialized room snapshots in process memory. It is the
// default backend for development and unit tests; snapshots are stored as
// JSON so every Load hands back an isolated copy, exactly like the durable
// backends do.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[game.RoomKey]memoryEntry
}

type memoryEntry struct {
	version    int64
	data       []byte
	staleAfter time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[game.RoomKey]memoryEntry)}
}

func (s *MemoryStore) Load(_ context.Context, key game.RoomKey) (*game.Room, error) {
	s.mu.RLock()
	entry, ok := s.rooms[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", game.ErrRoomNotFound, key.Kind, key.ID)
	}
	var room game.Room
	if err := json.Unmarshal(entry.data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s/%s: %w", key.Kind, key.ID, err)
	}
	return &room, nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, key game.RoomKey, expected int64, room *game.Room) (bool, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return false, fmt.Errorf("encode room %s/%s: %w", key.Kind, key.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, exists := s.rooms[key]
	if !exists {
		if expected != 0 {
			return false, nil
		}
	} else if entry.version != expected {
		return false, nil
	}
	s.rooms[key] = memoryEntry{version: room.Version, data: data, staleAfter: room.StaleAfter}
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, key game.RoomKey) error {
	s.mu.Lock()
	delete(s.rooms, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListStale(_ context.Context, now time.Time) ([]game.RoomKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stale []game.RoomKey
	for key, entry := range s.rooms {
		if !entry.staleAfter.After(now) {
			stale = append(stale, key)
		}
	}
	return stale, nil
}

// Len reports how many rooms are currently stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
