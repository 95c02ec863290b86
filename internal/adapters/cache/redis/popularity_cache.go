package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/vncsmyrnk/awards/internal/core/ports"
)

const (
	keyPrefix  = "awards:popularity:"
	defaultTTL = 30 * time.Second
)

type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewClient dials redis and checks it answers.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

type popularityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPopularityCache caches tallies under awards:popularity:<choiceID>.
// Entries expire after ttl so a missed invalidation is bounded.
func NewPopularityCache(client *redis.Client, ttl time.Duration) ports.PopularityCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &popularityCache{client: client, ttl: ttl}
}

func (c *popularityCache) Get(ctx context.Context, choiceID int64) (int64, bool, error) {
	count, err := c.client.Get(ctx, key(choiceID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cached tally: %w", err)
	}
	return count, true, nil
}

func (c *popularityCache) Set(ctx context.Context, choiceID int64, count int64) error {
	if err := c.client.Set(ctx, key(choiceID), count, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache tally: %w", err)
	}
	return nil
}

func (c *popularityCache) Invalidate(ctx context.Context, choiceID int64) error {
	if err := c.client.Del(ctx, key(choiceID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached tally: %w", err)
	}
	return nil
}

func key(choiceID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, choiceID)
}
