package game

import (
	"context"
	"time"
)

// Store is the single shared resource of the engine: durable key-value
// persistence for room snapshots addressed by (kind, id). Mutation is
// never lock-and-hold; every writer reads a version and attempts one
// conditional write.
//
// Implementations translate infrastructure failures into
// domain.ErrStorageUnavailable (wrapped) and a missing room into
// ErrRoomNotFound.
type Store interface {
	// Load returns the current snapshot, including its version.
	Load(ctx context.Context, key RoomKey) (*Room, error)

	// CompareAndSwap persists room only if the stored version still equals
	// expected; expected == 0 means "insert, the room must not exist yet".
	// The caller sets room.Version to expected+1 before the call.
	CompareAndSwap(ctx context.Context, key RoomKey, expected int64, room *Room) (bool, error)

	Delete(ctx context.Context, key RoomKey) error

	// ListStale returns keys of rooms whose StaleAfter deadline has passed.
	ListStale(ctx context.Context, now time.Time) ([]RoomKey, error)
}

// Notifier is the sink for notable transitions. Implementations must be
// fire-and-forget: Notify never blocks the caller and a delivery failure
// never fails a game operation.
type Notifier interface {
	Notify(eventKind string, key RoomKey, actors []string)
}

// Event kinds handed to the notifier.
const (
	EventRoomCreated   = "room_created"
	EventPlayerJoined  = "player_joined"
	EventGameStarted   = "game_started"
	EventGameCompleted = "game_completed"
	EventRoomRestarted = "room_restarted"
)
