package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/competency-api/pkg/config"
)

// pingTimeout bounds the startup connectivity check. The caller treats a
// failure as "run without report caching", so fail fast rather than hang the
// boot sequence.
const pingTimeout = 5 * time.Second

// NewRedis connects the report cache and verifies the server is reachable.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
