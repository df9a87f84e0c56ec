//go:build integration

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := redismodule.Run(ctx, "redis:7.2-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis uri: %v", err)
	}

	opt, err := redis.ParseURL(uri)
	if err != nil {
		t.Fatalf("failed to parse redis URL: %v", err)
	}
	client := redis.NewClient(opt)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(ctxWithTimeout).Err(); err != nil {
		client.Close()
		t.Fatalf("failed to ping redis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return client
}

func TestRedisStore_QueueLifecycle(t *testing.T) {
	client := setupRedis(t)
	clock := newFakeClock()
	q := New(NewRedisStore(client), WithClock(clock.Now), WithKeyPrefix("test:queue:"))
	ctx := context.Background()

	lowID, err := q.Enqueue(ctx, webhookJob("t1", PriorityLow))
	require.NoError(t, err)
	urgentID, err := q.Enqueue(ctx, webhookJob("t1", PriorityUrgent))
	require.NoError(t, err)

	delayed := webhookJob("t1", PriorityHigh)
	delayed.ProcessAfter = clock.Now().Add(2 * time.Second)
	delayedID, err := q.Enqueue(ctx, delayed)
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, []string{QueueWebhooks})
	require.NoError(t, err)
	assert.Equal(t, urgentID, job.ID)
	require.NoError(t, q.Complete(ctx, job.ID))

	clock.Advance(2 * time.Second)
	job, err = q.Dequeue(ctx, []string{QueueWebhooks})
	require.NoError(t, err)
	assert.Equal(t, delayedID, job.ID)
	require.NoError(t, q.Fail(ctx, job.ID, "HTTP 503"))

	job, err = q.Dequeue(ctx, []string{QueueWebhooks})
	require.NoError(t, err)
	assert.Equal(t, lowID, job.ID)

	_, err = q.Retry(ctx, job, 1, time.Second)
	require.NoError(t, err)

	stats, err := q.Stats(ctx, QueueWebhooks)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.Delayed)
	assert.Equal(t, int64(0), stats.Processing)

	failed, err := q.ListFailed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "HTTP 503", failed[0].MetadataString("last_error"))

	assert.True(t, q.Healthy(ctx))
}

func TestRedisStore_PopToSetOnEmptyList(t *testing.T) {
	client := setupRedis(t)
	store := NewRedisStore(client)

	member, ok, err := store.PopToSet(context.Background(), "test:empty", "test:processing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, member)
}
