package game

import (
	"encoding/json"
	"slices"
	"time"
)

type GameKind string

type Status string

const (
	StatusWaiting    Status = "waiting_for_players"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

type OutcomeKind string

const (
	OutcomeWin     OutcomeKind = "win"
	OutcomeDraw    OutcomeKind = "draw"
	OutcomeForfeit OutcomeKind = "forfeit"
)

type Outcome struct {
	Kind  OutcomeKind `json:"kind"`
	Actor string      `json:"actor,omitempty"`
}

type HistoryEntry struct {
	Actor   string    `json:"actor"`
	Summary string    `json:"summary"`
	At      time.Time `json:"at"`
}

// historyCap bounds the in-room history; oldest entries are dropped.
const historyCap = 32

// Room is the unit of shared, versioned game state. It is only ever
// mutated through the coordinator/lifecycle CAS loop; every other holder
// sees a snapshot.
type Room struct {
	ID         string   `json:"id"`
	Kind       GameKind `json:"kind"`
	Version    int64    `json:"version"`
	Players    []string `json:"players"`
	Spectators []string `json:"spectators,omitempty"`

	// TurnOrder is frozen at game start. A player who leaves mid-game is
	// removed from it (explicit forfeit), never silently skipped.
	TurnOrder []string `json:"turn_order,omitempty"`

	// State is opaque to the lifecycle and coordinator; only the matching
	// rule engine interprets it.
	State  json.RawMessage `json:"state"`
	Config json.RawMessage `json:"config,omitempty"`

	Status  Status         `json:"status"`
	Outcome *Outcome       `json:"outcome,omitempty"`
	History []HistoryEntry `json:"history,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	// StaleAfter is LastActivityAt plus the kind's retention window,
	// resolved at write time so stores can list stale rooms uniformly.
	StaleAfter time.Time `json:"stale_after"`
}

type RoomKey struct {
	Kind GameKind
	ID   string
}

func (r *Room) Key() RoomKey {
	return RoomKey{Kind: r.Kind, ID: r.ID}
}

func (r *Room) IsPlayer(actorID string) bool {
	return slices.Contains(r.Players, actorID)
}

func (r *Room) IsSpectator(actorID string) bool {
	return slices.Contains(r.Spectators, actorID)
}

func (r *Room) IsMember(actorID string) bool {
	return r.IsPlayer(actorID) || r.IsSpectator(actorID)
}

func (r *Room) appendHistory(actor, summary string, at time.Time) {
	r.History = append(r.History, HistoryEntry{Actor: actor, Summary: summary, At: at})
	if len(r.History) > historyCap {
		r.History = r.History[len(r.History)-historyCap:]
	}
}

func (r *Room) touch(now time.Time, retention time.Duration) {
	r.LastActivityAt = now
	r.StaleAfter = now.Add(retention)
}

// Clone returns a deep copy safe to mutate without affecting the receiver.
func (r *Room) Clone() *Room {
	c := *r
	c.Players = slices.Clone(r.Players)
	c.Spectators = slices.Clone(r.Spectators)
	c.TurnOrder = slices.Clone(r.TurnOrder)
	c.History = slices.Clone(r.History)
	c.State = slices.Clone(r.State)
	c.Config = slices.Clone(r.Config)
	if r.Outcome != nil {
		o := *r.Outcome
		c.Outcome = &o
	}
	return &c
}

// RoomView is the caller-facing projection of a Room. Outcome is present
// only once the game has completed.
type RoomView struct {
	RoomID      string          `json:"room_id"`
	GameKind    GameKind        `json:"game_kind"`
	Status      Status          `json:"status"`
	Version     int64           `json:"version"`
	Players     []string        `json:"players"`
	Spectators  []string        `json:"spectators,omitempty"`
	CurrentTurn string          `json:"current_turn,omitempty"`
	State       json.RawMessage `json:"state"`
	History     []HistoryEntry  `json:"history,omitempty"`
	Outcome     *Outcome        `json:"outcome,omitempty"`
}

func NewRoomView(room *Room, currentTurn string) RoomView {
	view := RoomView{
		RoomID:     room.ID,
		GameKind:   room.Kind,
		Status:     room.Status,
		Version:    room.Version,
		Players:    slices.Clone(room.Players),
		Spectators: slices.Clone(room.Spectators),
		State:      room.State,
		History:    slices.Clone(room.History),
	}
	if room.Status == StatusInProgress {
		view.CurrentTurn = currentTurn
	}
	if room.Status == StatusCompleted {
		view.Outcome = room.Outcome
	}
	return view
}
