package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"arcade/domain"
	"arcade/game"
)

const (
	redisRoomPrefix   = "room:"
	redisStaleSetName = "rooms:stale"
)

// casScript performs the conditional write atomically: insert when the
// caller expects version 0 and the room is absent, otherwise replace only
// when the stored version matches. The stale index ZSET is updated in the
// same script so a crash can never leave it out of sync.
var casScript = redis.NewScript(`
local ver = redis.call('HGET', KEYS[1], 'ver')
if not ver then
  if ARGV[1] ~= '0' then
    return 0
  end
elseif ver ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'ver', ARGV[2], 'data', ARGV[3])
redis.call('ZADD', KEYS[2], ARGV[4], ARGV[5])
return 1
`)

// RedisStore persists room snapshots as Redis hashes with the version in a
// dedicated field, plus a ZSET of stale deadlines for GC listing.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisRoomKey(key game.RoomKey) string {
	return redisRoomPrefix + string(key.Kind) + ":" + key.ID
}

func redisStaleMember(key game.RoomKey) string {
	return string(key.Kind) + "/" + key.ID
}

func (s *RedisStore) Load(ctx context.Context, key game.RoomKey) (*game.Room, error) {
	data, err := s.client.HGet(ctx, redisRoomKey(key), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s/%s", game.ErrRoomNotFound, key.Kind, key.ID)
		}
		return nil, fmt.Errorf("%w: redis load: %w", domain.ErrStorageUnavailable, err)
	}
	var room game.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("decode room %s/%s: %w", key.Kind, key.ID, err)
	}
	return &room, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key game.RoomKey, expected int64, room *game.Room) (bool, error) {
	data, err := json.Marshal(room)
	if err != nil {
		return false, fmt.Errorf("encode room %s/%s: %w", key.Kind, key.ID, err)
	}
	res, err := casScript.Run(ctx, s.client,
		[]string{redisRoomKey(key), redisStaleSetName},
		strconv.FormatInt(expected, 10),
		strconv.FormatInt(room.Version, 10),
		data,
		strconv.FormatInt(room.StaleAfter.Unix(), 10),
		redisStaleMember(key),
	).Int()
	if err != nil {
		return false, fmt.Errorf("%w: redis cas: %w", domain.ErrStorageUnavailable, err)
	}
	return res == 1, nil
}

func (s *RedisStore) Delete(ctx context.Context, key game.RoomKey) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisRoomKey(key))
	pipe.ZRem(ctx, redisStaleSetName, redisStaleMember(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: redis delete: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ListStale(ctx context.Context, now time.Time) ([]game.RoomKey, error) {
	members, err := s.client.ZRangeByScore(ctx, redisStaleSetName, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis stale scan: %w", domain.ErrStorageUnavailable, err)
	}
	keys := make([]game.RoomKey, 0, len(members))
	for _, member := range members {
		kind, id, ok := strings.Cut(member, "/")
		if !ok {
			continue
		}
		keys = append(keys, game.RoomKey{Kind: game.GameKind(kind), ID: id})
	}
	return keys, nil
}

// Ping checks connection health, for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return nil
}
