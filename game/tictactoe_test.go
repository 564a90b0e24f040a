package game

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tttRoom(t *testing.T, board [9]string, moves int) *Room {
	t.Helper()
	return &Room{
		ID:        "match-1",
		Kind:      KindTicTacToe,
		Players:   []string{"alice", "bob"},
		TurnOrder: []string{"alice", "bob"},
		Status:    StatusInProgress,
		State:     mustJSON(t, tttState{Board: board, Moves: moves}),
	}
}

func TestTicTacToe(t *testing.T) {
	engine := NewTicTacToe()

	t.Run("alice takes the anti-diagonal", func(t *testing.T) {
		room := tttRoom(t, [9]string{}, 0)
		for _, mv := range []struct {
			actor    string
			position int
			mark     string
		}{
			{"alice", 5, "X"}, {"bob", 1, "O"}, {"alice", 3, "X"}, {"bob", 2, "O"},
		} {
			state, outcome, err := engine.ApplyMove(room, mv.actor, mustJSON(t, tttMove{Position: mv.position}))
			require.NoError(t, err)
			require.Nil(t, outcome)
			room.State = state

			var st tttState
			require.NoError(t, unmarshalState(state, &st))
			assert.Equal(t, mv.mark, st.Board[mv.position-1])
		}

		state, outcome, err := engine.ApplyMove(room, "alice", mustJSON(t, tttMove{Position: 7}))
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, OutcomeWin, outcome.Kind)
		assert.Equal(t, "alice", outcome.Actor)
		assert.True(t, engine.IsTerminal(state))
	})

	t.Run("move validation", func(t *testing.T) {
		for _, tc := range []struct {
			name    string
			board   [9]string
			moves   int
			actor   string
			payload any
			wantErr error
		}{
			{
				name:    "out of turn",
				actor:   "bob",
				payload: tttMove{Position: 1},
				wantErr: ErrNotYourTurn,
			},
			{
				name:    "position below range",
				actor:   "alice",
				payload: tttMove{Position: 0},
				wantErr: ErrOutOfBounds,
			},
			{
				name:    "position above range",
				actor:   "alice",
				payload: tttMove{Position: 10},
				wantErr: ErrOutOfBounds,
			},
			{
				name:    "occupied cell",
				board:   [9]string{4: "X"},
				moves:   2,
				actor:   "alice",
				payload: tttMove{Position: 5},
				wantErr: ErrInvalidPayload,
			},
			{
				name:    "malformed payload",
				actor:   "alice",
				payload: json.RawMessage(`{"position": "center"}`),
				wantErr: ErrInvalidPayload,
			},
		} {
			t.Run(tc.name, func(t *testing.T) {
				room := tttRoom(t, tc.board, tc.moves)
				payload, ok := tc.payload.(json.RawMessage)
				if !ok {
					payload = mustJSON(t, tc.payload)
				}
				_, _, err := engine.ApplyMove(room, tc.actor, payload)
				assert.ErrorIs(t, err, tc.wantErr)
			})
		}
	})

	t.Run("full board without a line is a draw", func(t *testing.T) {
		// X O X
		// X O O
		// O X _   alice (X) fills the last cell
		room := tttRoom(t, [9]string{"X", "O", "X", "X", "O", "O", "O", "X", ""}, 8)
		state, outcome, err := engine.ApplyMove(room, "alice", mustJSON(t, tttMove{Position: 9}))
		require.NoError(t, err)
		require.NotNil(t, outcome)
		assert.Equal(t, OutcomeDraw, outcome.Kind)
		assert.Empty(t, outcome.Actor)
		assert.True(t, engine.IsTerminal(state))
	})

	t.Run("turn alternates with the frozen order", func(t *testing.T) {
		room := tttRoom(t, [9]string{}, 0)
		assert.Equal(t, "alice", engine.CurrentActor(room))

		state, _, err := engine.ApplyMove(room, "alice", mustJSON(t, tttMove{Position: 5}))
		require.NoError(t, err)
		room.State = state
		assert.Equal(t, "bob", engine.CurrentActor(room))
	})

	t.Run("only two players fit", func(t *testing.T) {
		f := newCoreFixture()
		startTicTacToe(t, f, "match-1")
		_, err := f.lifecycle.CreateOrJoin(context.Background(), KindTicTacToe, "match-1", "carol", false, nil)
		assert.ErrorIs(t, err, ErrRoomFull)
	})
}
