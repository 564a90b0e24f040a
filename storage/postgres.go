package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arcade/domain"
	"arcade/game"
)

// PostgresStore persists room snapshots in a single rooms table. The CAS is
// a version-guarded UPDATE; the insert race is resolved by the primary key.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Load(ctx context.Context, key game.RoomKey) (*game.Room, error) {
	var data []byte
	row := s.pool.QueryRow(ctx,
		"SELECT data FROM rooms WHERE game_kind = $1 AND room_id = $2",
		string(key.Kind), key.ID)
	if err := row.Scan(&data); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("%w: %s/%s", game.ErrRoomNotFound, key.Kind, key.ID)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: postgres load: %w", domain.ErrStorageUnavailable, err)
		}
	}
	var room game.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s/%s: %w", key.Kind, key.ID, err)
	}
	return &room, nil
}

func (s *PostgresStore) CompareAndSwap(ctx context.Context, key game.RoomKey, expected int64, room *game.Room) (bool, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return false, fmt.Errorf("encode room %s/%s: %w", key.Kind, key.ID, err)
	}

	if expected == 0 {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO rooms (game_kind, room_id, version, data, stale_after)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (game_kind, room_id) DO NOTHING`,
			string(key.Kind), key.ID, room.Version, data, room.StaleAfter)
		if err != nil {
			return false, s.writeError(err)
		}
		return tag.RowsAffected() > 0, nil
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE rooms SET version = $1, data = $2, stale_after = $3
		 WHERE game_kind = $4 AND room_id = $5 AND version = $6`,
		room.Version, data, room.StaleAfter, string(key.Kind), key.ID, expected)
	if err != nil {
		return false, s.writeError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key game.RoomKey) error {
	_, err := s.pool.Exec(ctx,
		"DELETE FROM rooms WHERE game_kind = $1 AND room_id = $2",
		string(key.Kind), key.ID)
	if err != nil {
		return s.writeError(err)
	}
	return nil
}

func (s *PostgresStore) ListStale(ctx context.Context, now time.Time) ([]game.RoomKey, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT game_kind, room_id FROM rooms WHERE stale_after <= $1", now)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres stale scan: %w", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var keys []game.RoomKey
	for rows.Next() {
		var kind, id string
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, fmt.Errorf("%w: postgres stale scan: %w", domain.ErrStorageUnavailable, err)
		}
		keys = append(keys, game.RoomKey{Kind: game.GameKind(kind), ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: postgres stale scan: %w", domain.ErrStorageUnavailable, err)
	}
	return keys, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) writeError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: postgres write: %w", domain.ErrStorageUnavailable, err)
}
