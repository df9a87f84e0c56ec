package queue

import (
	"context"
)

// Store is the key-value surface the job queue is built on. Lists push at
// the head and pop from the tail. Sorted sets are ordered by ascending score.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	// Get reports ok=false for a missing key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Del returns how many of keys existed.
	Del(ctx context.Context, keys ...string) (int64, error)

	LPush(ctx context.Context, key, value string) error
	LLen(ctx context.Context, key string) (int64, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// PopToSet removes the tail of list and adds it to set in one step.
	PopToSet(ctx context.Context, list, set string) (member string, ok bool, err error)

	SRem(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key, member string) (bool, error)
	ZCard(ctx context.Context, key string) (int64, error)
	// ZRangeByScore returns up to limit members with score <= max, lowest first.
	ZRangeByScore(ctx context.Context, key string, max float64, limit int64) ([]string, error)
	// MoveZToList removes member from the sorted set and pushes it onto list
	// in one step. moved is false when member was no longer in the set.
	MoveZToList(ctx context.Context, zset, member, list string) (moved bool, err error)

	HIncrBy(ctx context.Context, key, field string, n int64) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Ping(ctx context.Context) error
}
