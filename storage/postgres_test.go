package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/game"
)

func TestPostgresStore(t *testing.T) {
	requireContainers(t)
	runStoreContract(t, pgStore)

	t.Run("room payload survives the JSONB round trip", func(t *testing.T) {
		ctx := context.Background()
		id := uniqueRoomID("jsonb")
		key := game.RoomKey{Kind: game.KindTicTacToe, ID: id}

		room := testRoom(id, 1, time.Now().Add(time.Hour))
		room.History = []game.HistoryEntry{{Actor: "alice", Summary: "joined", At: time.Now().UTC()}}
		room.Outcome = &game.Outcome{Kind: game.OutcomeWin, Actor: "alice"}

		ok, err := pgStore.CompareAndSwap(ctx, key, 0, room)
		require.NoError(t, err)
		require.True(t, ok)

		loaded, err := pgStore.Load(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, loaded.Outcome)
		assert.Equal(t, game.OutcomeWin, loaded.Outcome.Kind)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "alice", loaded.History[0].Actor)
	})

	t.Run("canceled context is reported as is", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := pgStore.Load(ctx, game.RoomKey{Kind: game.KindTicTacToe, ID: "whatever"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
