package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ovaphlow/pitchfork/service-auth-go/pkg/utilities"
)

// RedisConfig configures the optional Redis connection used for reset tokens
// and rate limiting. An empty Addr disables Redis.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	Timeout        time.Duration
	ConnectRetries int
}

// RedisConfigFromEnv reads REDIS_ADDR, REDIS_PASSWORD and REDIS_DB.
func RedisConfigFromEnv() RedisConfig {
	return RedisConfig{
		Addr:           utilities.EnvString("REDIS_ADDR", ""),
		Password:       utilities.EnvString("REDIS_PASSWORD", ""),
		DB:             utilities.EnvInt("REDIS_DB", 0),
		Timeout:        3 * time.Second,
		ConnectRetries: utilities.EnvInt("DATABASE_CONNECT_RETRIES", 5),
	}
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// ConnectRedis builds a pooled client and pings it, retrying like Connect.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("redis address is not configured")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := pingWithRetry(ctx, Config{Timeout: cfg.Timeout, ConnectRetries: cfg.ConnectRetries}, ping); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
