package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xkayo32/pytake-sub002/internal/config"
	"github.com/xkayo32/pytake-sub002/internal/logger"
	"github.com/xkayo32/pytake-sub002/pkg/retry"
)

type RedisConnector struct {
	Config config.RedisConfig
	Logger logger.Logger
}

func NewRedisConnector(cfg config.RedisConfig, log logger.Logger) *RedisConnector {
	return &RedisConnector{
		Config: cfg,
		Logger: log,
	}
}

// InitRedis connects and pings, retrying with backoff per connect_retry.
func (rc *RedisConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", rc.Config.Host, rc.Config.Port),
		Password:    rc.Config.Password,
		DB:          rc.Config.DB,
		DialTimeout: rc.Config.DialTimeout,
	})

	err := retry.Do(ctx, rc.Config.ConnectRetry.Options(), func() error {
		return rdb.Ping(ctx).Err()
	}, func(attempt int, err error, nextDelay time.Duration) {
		rc.Logger.WarnwCtx(ctx, "Redis not reachable, retrying",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	rc.Logger.InfowCtx(ctx, "Connected to Redis",
		"host", rc.Config.Host,
		"port", rc.Config.Port,
		"db", rc.Config.DB,
	)
	return rdb, nil
}

func (rc *RedisConnector) Shutdown(rdb *redis.Client) []error {
	if rdb == nil {
		return nil
	}
	if err := rdb.Close(); err != nil {
		return []error{fmt.Errorf("redis close error: %w", err)}
	}
	return nil
}
