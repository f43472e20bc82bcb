package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"weekplan/internal/appstate"

	"github.com/go-redis/redis/v8"
)

// RedisCache keeps import previews in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to redisURL ("redis://host:6379/0").
func NewRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "weekplan:import_preview:"}, nil
}

// Get returns the cached preview or nil on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*CachedPreview, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preview cache: %w", err)
	}
	var cached CachedPreview
	if err := json.Unmarshal([]byte(raw), &cached); err != nil || cached.Draft.Title == "" {
		return nil, nil
	}
	return &cached, nil
}

// Set stores value for the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value CachedPreview) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write preview cache: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// StateCache keeps import previews in the app_state table. Entries older
// than the TTL are treated as misses.
type StateCache struct {
	store *appstate.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewStateCache creates a new StateCache instance
func NewStateCache(store *appstate.Store, ttl time.Duration) *StateCache {
	return &StateCache{store: store, ttl: ttl, now: time.Now}
}

func (c *StateCache) Get(ctx context.Context, key string) (*CachedPreview, error) {
	e, err := c.store.Get(ctx, appstate.ImportCacheKey(key))
	if err != nil || e == nil {
		return nil, err
	}
	if e.UpdatedAt.Before(c.now().Add(-c.ttl)) {
		return nil, nil
	}
	var cached CachedPreview
	if err := json.Unmarshal([]byte(e.Value), &cached); err != nil || cached.Draft.Title == "" {
		return nil, nil
	}
	return &cached, nil
}

func (c *StateCache) Set(ctx context.Context, key string, value CachedPreview) error {
	return c.store.SetJSON(ctx, appstate.ImportCacheKey(key), value)
}
