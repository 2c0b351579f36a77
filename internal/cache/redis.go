package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/parkspot/payment-reconciler/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// NewRedisClient connects to Redis. It returns nil, nil when no URL is configured.
func NewRedisClient(cfg config.RedisConfig, logger *logrus.Logger) (*redis.Client, error) {
	if cfg.URL == "" {
		logger.Warn("REDIS_URL not set, shared rate limiting disabled")
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Test the connection, a down cache should not stop the service
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Could not connect to Redis, rate limits will fail open")
	} else {
		logger.WithField("addr", opts.Addr).Info("Connected to Redis")
	}

	return client, nil
}
