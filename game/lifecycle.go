package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

// Lifecycle creates, loads, joins and garbage-collects rooms. All of its
// writes go through the same version-guarded CAS discipline as the
// coordinator; nothing ever mutates a stored room in place.
type Lifecycle struct {
	store    Store
	registry *Registry
	notifier Notifier
	now      func() time.Time
}

func NewLifecycle(store Store, registry *Registry, notifier Notifier) *Lifecycle {
	return &Lifecycle{
		store:    store,
		registry: registry,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateOrJoin is idempotent: a missing room is created, an existing one is
// joined, and a repeat call by a member returns the current snapshot
// without duplicating anyone.
func (l *Lifecycle) CreateOrJoin(ctx context.Context, kind GameKind, roomID, actorID string, asSpectator bool, config json.RawMessage) (*Room, error) {
	engine, err := l.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	if roomID == "" {
		roomID = generateRoomID()
	} else if roomID, err = normalizeRoomID(roomID); err != nil {
		return nil, err
	}
	key := RoomKey{Kind: kind, ID: roomID}

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := l.store.Load(ctx, key)
		if errors.Is(err, ErrRoomNotFound) {
			fresh, err := l.newRoom(engine, key, actorID, asSpectator, config)
			if err != nil {
				return nil, err
			}
			ok, err := l.store.CompareAndSwap(ctx, key, 0, fresh)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue // lost the insert race, join instead
			}
			l.notifier.Notify(EventRoomCreated, key, []string{actorID})
			if fresh.Status == StatusInProgress {
				l.notifier.Notify(EventGameStarted, key, fresh.Players)
			}
			return fresh, nil
		}
		if err != nil {
			return nil, err
		}

		if room.IsMember(actorID) {
			return room, nil
		}
		if err := engine.ValidateJoin(room, actorID, asSpectator); err != nil {
			return nil, err
		}

		rules := engine.Rules()
		now := l.now()
		next := room.Clone()
		started := false
		if asSpectator {
			next.Spectators = append(next.Spectators, actorID)
			next.appendHistory(actorID, "started spectating", now)
		} else {
			next.Players = append(next.Players, actorID)
			next.appendHistory(actorID, "joined", now)
			if next.Status == StatusWaiting && len(next.Players) >= rules.MinPlayers {
				next.Status = StatusInProgress
				next.TurnOrder = slices.Clone(next.Players)
				started = true
			}
		}
		next.touch(now, rules.Retention)
		next.Version = room.Version + 1

		ok, err := l.store.CompareAndSwap(ctx, key, room.Version, next)
		if err != nil {
			return nil, err
		}
		if ok {
			l.notifier.Notify(EventPlayerJoined, key, []string{actorID})
			if started {
				l.notifier.Notify(EventGameStarted, key, next.Players)
			}
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: join %s/%s", ErrConcurrentModification, kind, roomID)
}

func (l *Lifecycle) newRoom(engine Engine, key RoomKey, actorID string, asSpectator bool, config json.RawMessage) (*Room, error) {
	state, err := engine.InitialState(config)
	if err != nil {
		return nil, err
	}
	rules := engine.Rules()
	now := l.now()
	room := &Room{
		ID:        key.ID,
		Kind:      key.Kind,
		Version:   1,
		State:     state,
		Config:    slices.Clone(config),
		Status:    StatusWaiting,
		CreatedAt: now,
	}
	if asSpectator {
		room.Spectators = []string{actorID}
		room.appendHistory(actorID, "created room as spectator", now)
	} else {
		room.Players = []string{actorID}
		room.appendHistory(actorID, "created room", now)
		if len(room.Players) >= rules.MinPlayers {
			room.Status = StatusInProgress
			room.TurnOrder = slices.Clone(room.Players)
		}
	}
	room.touch(now, rules.Retention)
	return room, nil
}

func (l *Lifecycle) Get(ctx context.Context, kind GameKind, roomID string) (*Room, error) {
	if _, err := l.registry.Lookup(kind); err != nil {
		return nil, err
	}
	roomID, err := normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}
	return l.store.Load(ctx, RoomKey{Kind: kind, ID: roomID})
}

// Leave removes the actor from the room. Leaving a turn-based game in
// progress is an explicit forfeit: the leaver drops out of the turn order
// and, if too few players remain, the game completes with a forfeit
// outcome. Turns are never silently skipped.
func (l *Lifecycle) Leave(ctx context.Context, kind GameKind, roomID, actorID string) (*Room, error) {
	engine, err := l.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	roomID, err = normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}
	key := RoomKey{Kind: kind, ID: roomID}
	rules := engine.Rules()

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := l.store.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if !room.IsMember(actorID) {
			return nil, fmt.Errorf("%w: %s in %s/%s", ErrNotAMember, actorID, kind, roomID)
		}

		now := l.now()
		next := room.Clone()
		completed := false
		if next.IsSpectator(actorID) {
			next.Spectators = slices.DeleteFunc(next.Spectators, func(id string) bool { return id == actorID })
			next.appendHistory(actorID, "stopped spectating", now)
		} else {
			next.Players = slices.DeleteFunc(next.Players, func(id string) bool { return id == actorID })
			if next.Status == StatusInProgress {
				next.TurnOrder = slices.DeleteFunc(next.TurnOrder, func(id string) bool { return id == actorID })
				if len(next.Players) < rules.MinPlayers {
					next.Status = StatusCompleted
					next.Outcome = &Outcome{Kind: OutcomeForfeit, Actor: actorID}
					completed = true
				}
				next.appendHistory(actorID, "forfeited", now)
			} else {
				next.appendHistory(actorID, "left", now)
			}
		}
		next.touch(now, rules.Retention)
		next.Version = room.Version + 1

		ok, err := l.store.CompareAndSwap(ctx, key, room.Version, next)
		if err != nil {
			return nil, err
		}
		if ok {
			if completed {
				l.notifier.Notify(EventGameCompleted, key, next.Players)
			}
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: leave %s/%s", ErrConcurrentModification, kind, roomID)
}

// Restart begins a new logical game inside the same room identity: fresh
// state, cleared outcome, turn order refrozen from the current players.
// The version keeps increasing, so the reset stays auditable.
func (l *Lifecycle) Restart(ctx context.Context, kind GameKind, roomID, actorID string) (*Room, error) {
	engine, err := l.registry.Lookup(kind)
	if err != nil {
		return nil, err
	}
	roomID, err = normalizeRoomID(roomID)
	if err != nil {
		return nil, err
	}
	key := RoomKey{Kind: kind, ID: roomID}
	rules := engine.Rules()

	for attempt := 0; attempt < casAttempts; attempt++ {
		room, err := l.store.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		if !room.IsPlayer(actorID) {
			return nil, fmt.Errorf("%w: only players may restart %s/%s", ErrNotAMember, kind, roomID)
		}
		if room.Status == StatusInProgress && !rules.MidGameRestart {
			return nil, fmt.Errorf("%w: finish the game first", ErrGameAlreadyInProgress)
		}

		state, err := engine.InitialState(room.Config)
		if err != nil {
			return nil, err
		}
		now := l.now()
		next := room.Clone()
		next.State = state
		next.Outcome = nil
		if len(next.Players) >= rules.MinPlayers {
			next.Status = StatusInProgress
			next.TurnOrder = slices.Clone(next.Players)
		} else {
			next.Status = StatusWaiting
			next.TurnOrder = nil
		}
		next.appendHistory(actorID, "restarted the game", now)
		next.touch(now, rules.Retention)
		next.Version = room.Version + 1

		ok, err := l.store.CompareAndSwap(ctx, key, room.Version, next)
		if err != nil {
			return nil, err
		}
		if ok {
			l.notifier.Notify(EventRoomRestarted, key, []string{actorID})
			if next.Status == StatusInProgress {
				l.notifier.Notify(EventGameStarted, key, next.Players)
			}
			return next, nil
		}
	}
	return nil, fmt.Errorf("%w: restart %s/%s", ErrConcurrentModification, kind, roomID)
}

// GarbageCollect deletes rooms whose StaleAfter deadline has passed and
// returns how many were removed. It is safe to run concurrently with live
// traffic; it only touches rooms that are already idle.
func (l *Lifecycle) GarbageCollect(ctx context.Context, now time.Time) (int, error) {
	stale, err := l.store.ListStale(ctx, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, key := range stale {
		if err := l.store.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("kind", string(key.Kind)).Str("room", key.ID).Msg("failed to delete stale room")
			continue
		}
		count++
	}
	return count, nil
}

// RunSweeper drives GarbageCollect on a fixed interval, decoupled from
// request handling, until the context is cancelled.
func (l *Lifecycle) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			count, err := l.GarbageCollect(ctx, now)
			if err != nil {
				log.Error().Err(err).Msg("room sweep failed")
				continue
			}
			if count > 0 {
				log.Info().Int("reaped", count).Msg("collected idle rooms")
			}
		}
	}
}
