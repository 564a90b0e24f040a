package game

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const KindCrossword GameKind = "crossword"

type crossword struct{}

func NewCrossword() Engine { return crossword{} }

type crosswordSlot struct {
	Clue   string `json:"clue"`
	Answer string `json:"-"`
}

type crosswordPuzzle struct {
	Name  string
	Slots map[string]crosswordSlot
}

// Built-in mini puzzles; the config's "puzzle" field picks one.
var crosswordPuzzles = map[string]crosswordPuzzle{
	"starter": {
		Name: "starter",
		Slots: map[string]crosswordSlot{
			"1A": {Clue: "Feline pet", Answer: "cat"},
			"2A": {Clue: "Opposite of day", Answer: "night"},
			"1D": {Clue: "Hot drink from beans", Answer: "coffee"},
			"2D": {Clue: "Planet we live on", Answer: "earth"},
		},
	},
	"terminal": {
		Name: "terminal",
		Slots: map[string]crosswordSlot{
			"1A": {Clue: "Unix shell builtin to change directory", Answer: "cd"},
			"2A": {Clue: "Stream editor", Answer: "sed"},
			"3A": {Clue: "Searches files for patterns", Answer: "grep"},
			"1D": {Clue: "Concatenates and prints files", Answer: "cat"},
			"2D": {Clue: "Secure remote shell", Answer: "ssh"},
		},
	},
}

type crosswordState struct {
	Puzzle string            `json:"puzzle"`
	Clues  map[string]string `json:"clues"`
	// Solved maps slot -> answer, filled collaboratively.
	Solved map[string]string `json:"solved"`
}

type crosswordConfig struct {
	Puzzle string `json:"puzzle"`
}

type crosswordMove struct {
	Slot   string `json:"slot"`
	Answer string `json:"answer"`
}

func (crossword) Kind() GameKind { return KindCrossword }

func (crossword) Rules() Rules {
	return Rules{
		MinPlayers:  1,
		MaxPlayers:  6,
		MidGameJoin: true,
		Retention:   6 * time.Hour,
	}
}

func (crossword) InitialState(config json.RawMessage) (json.RawMessage, error) {
	cfg := crosswordConfig{Puzzle: "starter"}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: bad crossword config", ErrInvalidPayload)
		}
	}
	puzzle, ok := crosswordPuzzles[cfg.Puzzle]
	if !ok {
		return nil, fmt.Errorf("%w: unknown puzzle %q", ErrInvalidPayload, cfg.Puzzle)
	}
	clues := make(map[string]string, len(puzzle.Slots))
	for slot, s := range puzzle.Slots {
		clues[slot] = s.Clue
	}
	return json.Marshal(crosswordState{
		Puzzle: puzzle.Name,
		Clues:  clues,
		Solved: map[string]string{},
	})
}

func (e crossword) ValidateJoin(room *Room, actorID string, asSpectator bool) error {
	return validateJoinCommon(room, e.Rules(), actorID, asSpectator)
}

func (e crossword) ApplyMove(room *Room, actorID string, payload json.RawMessage) (json.RawMessage, *Outcome, error) {
	var st crosswordState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return nil, nil, fmt.Errorf("decode crossword state: %w", err)
	}
	puzzle, ok := crosswordPuzzles[st.Puzzle]
	if !ok {
		return nil, nil, fmt.Errorf("decode crossword state: puzzle %q vanished", st.Puzzle)
	}

	var mv crosswordMove
	if err := json.Unmarshal(payload, &mv); err != nil {
		return nil, nil, fmt.Errorf("%w: want {\"slot\", \"answer\"}", ErrInvalidPayload)
	}
	slotID := strings.ToUpper(strings.TrimSpace(mv.Slot))
	slot, ok := puzzle.Slots[slotID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no slot %q in this puzzle", ErrOutOfBounds, mv.Slot)
	}
	if _, done := st.Solved[slotID]; done {
		return nil, nil, fmt.Errorf("%w: slot %s is already solved", ErrInvalidPayload, slotID)
	}
	answer := strings.ToLower(strings.TrimSpace(mv.Answer))
	if answer != slot.Answer {
		return nil, nil, fmt.Errorf("%w: wrong answer for %s", ErrInvalidPayload, slotID)
	}

	if st.Solved == nil {
		st.Solved = map[string]string{}
	}
	st.Solved[slotID] = answer

	var outcome *Outcome
	if len(st.Solved) == len(puzzle.Slots) {
		outcome = &Outcome{Kind: OutcomeDraw}
	}

	newState, err := json.Marshal(st)
	if err != nil {
		return nil, nil, fmt.Errorf("encode crossword state: %w", err)
	}
	return newState, outcome, nil
}

func (crossword) IsTerminal(state json.RawMessage) bool {
	var st crosswordState
	if err := json.Unmarshal(state, &st); err != nil {
		return false
	}
	puzzle, ok := crosswordPuzzles[st.Puzzle]
	if !ok {
		return false
	}
	return len(st.Solved) == len(puzzle.Slots)
}

func (crossword) CurrentActor(_ *Room) string { return "" }
