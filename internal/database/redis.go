package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pageza/recipe-assistant/backend/config"
)

// NewRedisClient creates a new Redis client. It returns nil without error when REDIS_URL is
// unset; callers fall back to in-process alternatives.
func NewRedisClient(cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set, AI drafts and rate limits stay in memory")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis", "addr", opts.Addr)
	return client, nil
}
