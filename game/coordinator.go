package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// casAttempts bounds the optimistic-concurrency retry loop. Losing every
// attempt surfaces ErrConcurrentModification, a user-retryable condition.
const casAttempts = 3

// Coordinator is the single entry point for moves and the only component
// permitted to write game state. Safety against simultaneous submissions
// comes purely from the version-guarded read-modify-write loop; there are
// no locks to expire or clean up.
type Coordinator struct {
	store    Store
	registry *Registry
	notifier Notifier
	now      func() time.Time
}

func NewCoordinator(store Store, registry *Registry, notifier Notifier) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
		notifier: notifier,
		now:      time.Now,
	}
}

// SubmitMove loads the room, delegates to the rule engine, and persists the
// result with a compare-and-swap. A move that loses the race is never
// partially applied; it is retried in full against the fresh snapshot.
// Store I/O failures are returned immediately and never retried here: a
// blind retry of a mutating write with unknown outcome is unsafe.
func (c *Coordinator) SubmitMove(ctx context.Context, kind GameKind, roomID, actorID string, payload json.RawMessage) (*Room, error) {
	engine, err := c.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	roomID, err = normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}
	key := RoomKey{Kind: kind, ID: roomID}

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := c.store.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if !room.IsMember(actorID) {
			return nil, fmt.Errorf("%w: %s in %s/%s", ErrNotAMember, actorID, kind, roomID)
		}
		if room.IsSpectator(actorID) {
			return nil, fmt.Errorf("%w: spectators cannot move", ErrNotAMember)
		}
		if room.Status == StatusCompleted {
			return nil, fmt.Errorf("%w: %s/%s", ErrGameAlreadyOver, kind, roomID)
		}

		newState, outcome, err := engine.ApplyMove(room, actorID, payload)
		if err != nil {
			return nil, err
		}

		now := c.now()
		next := room.Clone()
		next.State = newState
		next.appendHistory(actorID, "moved", now)

		// The terminal transition is guarded by the status flip itself
		// inside the same CAS write, so the completion notification can
		// never double-fire.
		completed := false
		if outcome != nil || engine.IsTerminal(newState) {
			next.Status = StatusCompleted
			if outcome == nil {
				outcome = &Outcome{Kind: OutcomeDraw}
			}
			next.Outcome = outcome
			completed = true
		}
		next.touch(now, engine.Rules().Retention)
		next.Version = room.Version + 1

		ok, err := c.store.CompareAndSwap(ctx, key, room.Version, next)
		if err != nil {
			return nil, err
		}
		if ok {
			if completed {
				c.notifier.Notify(EventGameCompleted, key, next.Players)
			}
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: move in %s/%s", ErrConcurrentModification, kind, roomID)
}

// View projects a room snapshot for callers, resolving the current turn
// through the matching engine.
func (c *Coordinator) View(room *Room) RoomView {
	engine, err := c.registry.Lookup(room.Kind)
	if err != nil {
		return NewRoomView(room, "")
	}
	return NewRoomView(room, engine.CurrentActor(room))
}
