package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the Redis server at redisURL. An empty URL
// returns (nil, nil) so callers can treat Redis as optional and degrade to
// the in-memory store.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
