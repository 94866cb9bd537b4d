package database

import (
	"context"
	"fmt"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a redis client and checks the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
