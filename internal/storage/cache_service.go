package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheKeyType namespaces cache keys by what they hold
type CacheKeyType string

// CacheKeyISIN holds registry decisions for an ISIN
const CacheKeyISIN CacheKeyType = "isin"

// CacheService keeps JSON-encoded values in Redis for a fixed TTL
type CacheService struct {
	redis *RedisCache
	ttl   time.Duration
}

func NewCacheService(redis *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{redis: redis, ttl: ttl}
}

// GenerateCacheKey joins keyType and the trimmed, upper-cased params with ':'
func (c *CacheService) GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	var b strings.Builder
	b.WriteString(string(keyType))
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(strings.ToUpper(strings.TrimSpace(p)))
	}
	return b.String()
}

func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache %s: encode: %w", key, err)
	}
	return c.redis.Set(ctx, key, data, c.ttl)
}

// Get decodes the value under key into dest. A miss is (false, nil).
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache %s: read: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("cache %s: decode: %w", key, err)
	}
	return true, nil
}
