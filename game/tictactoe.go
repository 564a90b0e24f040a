package game

import (
	"encoding/json"
	"fmt"
	"time"
)

const KindTicTacToe GameKind = "ttt"

type ticTacToe struct{}

func NewTicTacToe() Engine { return ticTacToe{} }

type tttState struct {
	// Board cells are "", "X" or "O", row-major from the top-left.
	Board [9]string `json:"board"`
	Moves int       `json:"moves"`
}

type tttMove struct {
	// Position is 1..9: 1 = top-left, 5 = center, 9 = bottom-right.
	Position int `json:"position"`
}

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func (ticTacToe) Kind() GameKind { return KindTicTacToe }

func (ticTacToe) Rules() Rules {
	return Rules{
		MinPlayers: 2,
		MaxPlayers: 2,
		TurnBased:  true,
		Retention:  30 * time.Minute,
	}
}

func (ticTacToe) InitialState(_ json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(tttState{})
}

func (e ticTacToe) ValidateJoin(room *Room, actorID string, asSpectator bool) error {
	return validateJoinCommon(room, e.Rules(), actorID, asSpectator)
}

func (e ticTacToe) ApplyMove(room *Room, actorID string, payload json.RawMessage) (json.RawMessage, *Outcome, error) {
	var st tttState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return nil, nil, fmt.Errorf("decode ttt state: %w", err)
	}
	if err := requireTurn(room.TurnOrder, st.Moves, actorID); err != nil {
		return nil, nil, err
	}

	var mv tttMove
	if err := json.Unmarshal(payload, &mv); err != nil {
		return nil, nil, fmt.Errorf("%w: want {\"position\": 1-9}", ErrInvalidPayload)
	}
	if mv.Position < 1 || mv.Position > 9 {
		return nil, nil, fmt.Errorf("%w: position %d", ErrOutOfBounds, mv.Position)
	}
	idx := mv.Position - 1
	if st.Board[idx] != "" {
		return nil, nil, fmt.Errorf("%w: cell %d already occupied", ErrInvalidPayload, mv.Position)
	}

	mark := markFor(room.TurnOrder, actorID)
	st.Board[idx] = mark
	st.Moves++

	var outcome *Outcome
	if lineWon(st.Board, mark) {
		outcome = &Outcome{Kind: OutcomeWin, Actor: actorID}
	} else if st.Moves == len(st.Board) {
		outcome = &Outcome{Kind: OutcomeDraw}
	}

	newState, err := json.Marshal(st)
	if err != nil {
		return nil, nil, fmt.Errorf("encode ttt state: %w", err)
	}
	return newState, outcome, nil
}

func (ticTacToe) IsTerminal(state json.RawMessage) bool {
	var st tttState
	if err := json.Unmarshal(state, &st); err != nil {
		return false
	}
	return lineWon(st.Board, "X") || lineWon(st.Board, "O") || st.Moves == len(st.Board)
}

func (ticTacToe) CurrentActor(room *Room) string {
	var st tttState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return ""
	}
	return expectedActor(room.TurnOrder, st.Moves)
}

// markFor assigns X to the first player in the frozen turn order.
func markFor(order []string, actorID string) string {
	if len(order) > 0 && order[0] == actorID {
		return "X"
	}
	return "O"
}

func lineWon(board [9]string, mark string) bool {
	for _, line := range tttLines {
		if board[line[0]] == mark && board[line[1]] == mark && board[line[2]] == mark {
			return true
		}
	}
	return false
}
