package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/sortie/internal/config"
	"github.com/dyluth/sortie/pkg/blackboard"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisURL = "redis://localhost:6379"
	pingTimeout     = 5 * time.Second
)

// redisURLFromEnv returns SORTIE_REDIS_URL, or the local default.
func redisURLFromEnv() string {
	if url := os.Getenv(config.RedisURLEnv); url != "" {
		return url
	}
	return defaultRedisURL
}

// openBlackboard connects to the blackboard at url and verifies it answers.
func openBlackboard(ctx context.Context, url, instance string) (*blackboard.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL %q: %w", url, err)
	}

	client, err := blackboard.NewClient(opts, instance)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis at %s is not reachable: %w", opts.Addr, err)
	}
	return client, nil
}
