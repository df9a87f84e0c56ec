package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var popToSetScript = redis.NewScript(`
local member = redis.call('RPOP', KEYS[1])
if member then
	redis.call('SADD', KEYS[2], member)
end
return member
`)

var moveZToListScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('LPUSH', KEYS[2], ARGV[1])
	return 1
end
return 0
`)

type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis GET failed: %w", err)
	}
	return value, true, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis DEL failed: %w", err)
	}
	return n, nil
}

func (s *RedisStore) LPush(ctx context.Context, key, value string) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("redis LPUSH failed: %w", err)
	}
	return nil
}

func (s *RedisStore) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis LLEN failed: %w", err)
	}
	return n, nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE failed: %w", err)
	}
	return values, nil
}

func (s *RedisStore) PopToSet(ctx context.Context, list, set string) (string, bool, error) {
	member, err := popToSetScript.Run(ctx, s.client, []string{list, set}).Text()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis pop-to-set failed: %w", err)
	}
	return member, true, nil
}

func (s *RedisStore) SRem(ctx context.Context, key, member string) (bool, error) {
	n, err := s.client.SRem(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis SREM failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis SCARD failed: %w", err)
	}
	return n, nil
}

func (s *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("redis ZADD failed: %w", err)
	}
	return nil
}

func (s *RedisStore) ZRem(ctx context.Context, key, member string) (bool, error) {
	n, err := s.client.ZRem(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis ZREM failed: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ZCARD failed: %w", err)
	}
	return n, nil
}

func (s *RedisStore) ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]string, error) {
	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(max, 'f', -1, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZRANGEBYSCORE failed: %w", err)
	}
	return members, nil
}

func (s *RedisStore) MoveZToList(ctx context.Context, zset, member, list string) (bool, error) {
	moved, err := moveZToListScript.Run(ctx, s.client, []string{zset, list}, member).Int64()
	if err != nil {
		return false, fmt.Errorf("redis move-to-list failed: %w", err)
	}
	return moved == 1, nil
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, n int64) error {
	if err := s.client.HIncrBy(ctx, key, field, n).Err(); err != nil {
		return fmt.Errorf("redis HINCRBY failed: %w", err)
	}
	return nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL failed: %w", err)
	}
	return values, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis PING failed: %w", err)
	}
	return nil
}
