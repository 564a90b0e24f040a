package game

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const KindCanvas GameKind = "canvas"

const (
	canvasWidth  = 24
	canvasHeight = 16
)

// canvasPalette lists the symbols a participant may paint with.
var canvasPalette = "#@*+ox.~"

type drawing struct{}

func NewDrawing() Engine { return drawing{} }

type canvasState struct {
	// Cells is sparse: "x,y" -> symbol. Empty cells are simply absent.
	Cells map[string]string `json:"cells"`
	Moves int               `json:"moves"`
}

type canvasMove struct {
	X int `json:"x"`
	Y int `json:"y"`
	// Symbol "" erases the cell.
	Symbol string `json:"symbol"`
}

func (drawing) Kind() GameKind { return KindCanvas }

func (drawing) Rules() Rules {
	return Rules{
		MinPlayers:     1,
		MaxPlayers:     16,
		MidGameJoin:    true,
		MidGameRestart: true,
		Retention:      24 * time.Hour,
	}
}

func (drawing) InitialState(_ json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(canvasState{Cells: map[string]string{}})
}

func (e drawing) ValidateJoin(room *Room, actorID string, asSpectator bool) error {
	return validateJoinCommon(room, e.Rules(), actorID, asSpectator)
}

func (e drawing) ApplyMove(room *Room, actorID string, payload json.RawMessage) (json.RawMessage, *Outcome, error) {
	var st canvasState
	if err := json.Unmarshal(room.State, &st); err != nil {
		return nil, nil, fmt.Errorf("decode canvas state: %w", err)
	}
	var mv canvasMove
	if err := json.Unmarshal(payload, &mv); err != nil {
		return nil, nil, fmt.Errorf("%w: want {\"x\", \"y\", \"symbol\"}", ErrInvalidPayload)
	}
	if mv.X < 0 || mv.X >= canvasWidth || mv.Y < 0 || mv.Y >= canvasHeight {
		return nil, nil, fmt.Errorf("%w: (%d,%d) outside %dx%d canvas", ErrOutOfBounds, mv.X, mv.Y, canvasWidth, canvasHeight)
	}
	if mv.Symbol != "" && (utf8.RuneCountInString(mv.Symbol) != 1 || !strings.Contains(canvasPalette, mv.Symbol)) {
		return nil, nil, fmt.Errorf("%w: unknown symbol %q, palette is %q", ErrInvalidPayload, mv.Symbol, canvasPalette)
	}

	if st.Cells == nil {
		st.Cells = map[string]string{}
	}
	cell := strconv.Itoa(mv.X) + "," + strconv.Itoa(mv.Y)
	if mv.Symbol == "" {
		delete(st.Cells, cell)
	} else {
		st.Cells[cell] = mv.Symbol
	}
	st.Moves++

	newState, err := json.Marshal(st)
	if err != nil {
		return nil, nil, fmt.Errorf("encode canvas state: %w", err)
	}
	// A drawing session never ends by move; idle GC or restart clears it.
	return newState, nil, nil
}

func (drawing) IsTerminal(_ json.RawMessage) bool { return false }

func (drawing) CurrentActor(_ *Room) string { return "" }
