package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisCacheKey = "xraycheck:verdict-cache"

// RedisBackend stores the whole verdict-cache document as one Redis
// string value under a fixed key, selected when CACHE_FILE is a
// redis:// URL (spec §6 domain stack).
type RedisBackend struct {
	Client *redis.Client
}

// NewRedisBackend parses a redis:// URL and opens a client against it.
func NewRedisBackend(url string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", err)
	}
	return &RedisBackend{Client: redis.NewClient(opts)}, nil
}

func (b *RedisBackend) Load(ctx context.Context, ttl time.Duration) (map[string]CacheEntry, error) {
	raw, err := b.Client.Get(ctx, redisCacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return map[string]CacheEntry{}, nil
		}
		return map[string]CacheEntry{}, fmt.Errorf("redis get %s: %w", redisCacheKey, err)
	}

	var all map[string]CacheEntry
	if err := json.Unmarshal(raw, &all); err != nil {
		return map[string]CacheEntry{}, fmt.Errorf("corrupt redis value %s: %w", redisCacheKey, err)
	}

	now := time.Now().Unix()
	fresh := make(map[string]CacheEntry, len(all))
	for k, v := range all {
		if ttl <= 0 || now-v.Timestamp < int64(ttl.Seconds()) {
			fresh[k] = v
		}
	}
	return fresh, nil
}

func (b *RedisBackend) Save(ctx context.Context, entries map[string]CacheEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return b.Client.Set(ctx, redisCacheKey, raw, 0).Err()
}
