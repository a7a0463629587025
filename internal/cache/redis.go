package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SyedDaiam9101/diagnosis-service/internal/inference"
)

// Redis wraps a Redis client for prediction storage
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a new Redis cache connected to the specified address
// If addr is empty, defaults to localhost:6379
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	// Test connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Redis{client: client, ttl: ttl}, nil
}

func redisKey(key string) string {
	return "prediction:" + key
}

// Set stores a prediction with the configured TTL
func (c *Redis) Set(ctx context.Context, key string, pred inference.Prediction) error {
	if c.client == nil {
		return fmt.Errorf("cache client is nil")
	}

	data, err := json.Marshal(pred)
	if err != nil {
		return fmt.Errorf("failed to encode prediction: %w", err)
	}

	if err := c.client.Set(ctx, redisKey(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set prediction %s: %w", key, err)
	}

	return nil
}

// Get retrieves a prediction; the bool is false when the key does not exist
func (c *Redis) Get(ctx context.Context, key string) (inference.Prediction, bool, error) {
	if c.client == nil {
		return inference.Prediction{}, false, fmt.Errorf("cache client is nil")
	}

	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return inference.Prediction{}, false, nil
	}
	if err != nil {
		return inference.Prediction{}, false, fmt.Errorf("failed to get prediction %s: %w", key, err)
	}

	var pred inference.Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		return inference.Prediction{}, false, fmt.Errorf("failed to decode prediction %s: %w", key, err)
	}

	return pred, true, nil
}

// Close closes the Redis connection
func (c *Redis) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

var _ Cache = (*Redis)(nil)
