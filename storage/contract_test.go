package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arcade/game"
)

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, store game.Store) {
	ctx := context.Background()

	t.Run("missing room", func(t *testing.T) {
		_, err := store.Load(ctx, game.RoomKey{Kind: game.KindTicTacToe, ID: uniqueRoomID("ghost")})
		assert.ErrorIs(t, err, game.ErrRoomNotFound)
	})

	t.Run("insert and version-guarded swap", func(t *testing.T) {
		id := uniqueRoomID("cas")
		key := game.RoomKey{Kind: game.KindTicTacToe, ID: id}

		ok, err := store.CompareAndSwap(ctx, key, 0, testRoom(id, 1, time.Now().Add(time.Hour)))
		require.NoError(t, err)
		require.True(t, ok)

		// A second insert attempt loses.
		ok, err = store.CompareAndSwap(ctx, key, 0, testRoom(id, 1, time.Now().Add(time.Hour)))
		require.NoError(t, err)
		assert.False(t, ok)

		room := testRoom(id, 2, time.Now().Add(time.Hour))
		room.Players = append(room.Players, "bob")
		ok, err = store.CompareAndSwap(ctx, key, 1, room)
		require.NoError(t, err)
		assert.True(t, ok)

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)
		assert.Equal(t, []string{"alice", "bob"}, loaded.Players)

		// The stale writer still holds version 1 and must lose.
		ok, err = store.CompareAndSwap(ctx, key, 1, testRoom(id, 2, time.Now().Add(time.Hour)))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		id := uniqueRoomID("del")
		key := game.RoomKey{Kind: game.KindTicTacToe, ID: id}

		ok, err := store.CompareAndSwap(ctx, key, 0, testRoom(id, 1, time.Now().Add(time.Hour)))
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, store.Delete(ctx, key))
		_, err = store.Load(ctx, key)
		assert.ErrorIs(t, err, game.ErrRoomNotFound)
		assert.NoError(t, store.Delete(ctx, key))
	})

	t.Run("stale listing follows the persisted deadline", func(t *testing.T) {
		now := time.Now()
		oldID := uniqueRoomID("stale-old")
		freshID := uniqueRoomID("stale-fresh")

		ok, err := store.CompareAndSwap(ctx, game.RoomKey{Kind: game.KindTicTacToe, ID: oldID}, 0,
			testRoom(oldID, 1, now.Add(-time.Minute)))
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = store.CompareAndSwap(ctx, game.RoomKey{Kind: game.KindTicTacToe, ID: freshID}, 0,
			testRoom(freshID, 1, now.Add(time.Hour)))
		require.NoError(t, err)
		require.True(t, ok)

		stale, err := store.ListStale(ctx, now)
		require.NoError(t, err)
		assert.Contains(t, stale, game.RoomKey{Kind: game.KindTicTacToe, ID: oldID})
		assert.NotContains(t, stale, game.RoomKey{Kind: game.KindTicTacToe, ID: freshID})

		// A later write moving the deadline forward rescues the room.
		ok, err = store.CompareAndSwap(ctx, game.RoomKey{Kind: game.KindTicTacToe, ID: oldID}, 1,
			testRoom(oldID, 2, now.Add(time.Hour)))
		require.NoError(t, err)
		require.True(t, ok)

		stale, err = store.ListStale(ctx, now)
		require.NoError(t, err)
		assert.NotContains(t, stale, game.RoomKey{Kind: game.KindTicTacToe, ID: oldID})
	})
}
