package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rules declares the static properties of a game kind. The lifecycle
// consults them for capacity, start conditions and garbage collection; it
// never interprets game state itself.
type Rules struct {
	MinPlayers     int
	MaxPlayers     int
	TurnBased      bool
	MidGameJoin    bool
	MidGameRestart bool
	Retention      time.Duration
}

// Engine is implemented once per game kind. Implementations are pure: no
// I/O, no shared state, one move against one consistent snapshot at a
// time. Concurrent submissions are resolved a layer up by the
// coordinator's CAS loop.
type Engine interface {
	Kind() GameKind
	Rules() Rules

	// InitialState builds the starting payload from an optional
	// kind-specific config document.
	InitialState(config json.RawMessage) (json.RawMessage, error)

	// ValidateJoin enforces capacity, duplicate-join rejection and
	// player/spectator disjointness against a room snapshot.
	ValidateJoin(room *Room, actorID string, asSpectator bool) error

	// ApplyMove validates and applies one move, returning the next state
	// and a non-nil outcome when the move ends the game.
	ApplyMove(room *Room, actorID string, payload json.RawMessage) (json.RawMessage, *Outcome, error)

	// IsTerminal reports whether the state admits no further moves.
	IsTerminal(state json.RawMessage) bool

	// CurrentActor returns the player expected to move next, or "" for
	// kinds without turn order.
	CurrentActor(room *Room) string
}

// Registry dispatches by game kind so that adding a kind never touches the
// lifecycle or the coordinator.
type Registry struct {
	engines map[GameKind]Engine
}

func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[GameKind]Engine, len(engines))}
	for _, e := range engines {
		r.engines[e.Kind()] = e
	}
	return r
}

func (r *Registry) Lookup(kind GameKind) (Engine, error) {
	engine, ok := r.engines[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameKind, kind)
	}
	return engine, nil
}

func (r *Registry) Kinds() []GameKind {
	kinds := make([]GameKind, 0, len(r.engines))
	for k := range r.engines {
		kinds = append(kinds, k)
	}
	return kinds
}

// validateJoinCommon is the capacity/duplicate/disjointness policy shared
// by every engine. Per-game ValidateJoin implementations call it first.
func validateJoinCommon(room *Room, rules Rules, actorID string, asSpectator bool) error {
	if room.IsMember(actorID) {
		return fmt.Errorf("%w: %s", ErrAlreadyJoined, actorID)
	}
	if asSpectator {
		return nil
	}
	if len(room.Players) >= rules.MaxPlayers {
		return fmt.Errorf("%w: %d/%d players", ErrRoomFull, len(room.Players), rules.MaxPlayers)
	}
	if room.Status == StatusInProgress && !rules.MidGameJoin {
		return ErrGameAlreadyInProgress
	}
	return nil
}

// expectedActor maps a move count onto the frozen turn order.
func expectedActor(order []string, moves int) string {
	if len(order) == 0 {
		return ""
	}
	return order[moves%len(order)]
}

// requireTurn rejects a move from anyone but the expected current player.
func requireTurn(order []string, moves int, actorID string) error {
	expected := expectedActor(order, moves)
	if expected == "" {
		return fmt.Errorf("%w: game has not started", ErrNotYourTurn)
	}
	if expected != actorID {
		return fmt.Errorf("%w: waiting on %s", ErrNotYourTurn, expected)
	}
	return nil
}
