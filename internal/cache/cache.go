// Package cache provides a two-tier cache for recommendation results:
// an in-memory LRU for hot entries and an optional Redis tier for sharing
// results across instances. Caching is safe because evaluation is pure and
// idempotent for a given patient record.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Apps-1-2-3/medai-assistant/internal/domain"
)

// entry is the cached unit: the result plus which component produced it.
type entry struct {
	Result *domain.RecommendationResult `json:"result"`
	Source string                       `json:"source"`
}

// ResultCache caches recommendation results keyed by patient record hash.
type ResultCache struct {
	memory *lru.Cache[string, entry]
	redis  *redis.Client // nil when Redis tier is disabled
	ttl    time.Duration
	logger *logrus.Logger
}

// New creates a result cache. When cfg.RedisURL is empty only the in-memory
// tier is used.
func New(cfg domain.CacheConfig, logger *logrus.Logger) (*ResultCache, error) {
	memory, err := lru.New[string, entry](cfg.MaxItems)
	if err != nil {
		return nil, err
	}

	c := &ResultCache{
		memory: memory,
		ttl:    cfg.TTL,
		logger: logger,
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		c.redis = redis.NewClient(opts)
	}

	return c, nil
}

// Key derives a stable cache key from the canonical JSON encoding of the
// patient record.
func Key(p *domain.PatientRecord) string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return "medai:result:" + hex.EncodeToString(sum[:])
}

// Get looks up a cached result, checking memory first and promoting Redis
// hits into the memory tier.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.RecommendationResult, string, bool) {
	if e, ok := c.memory.Get(key); ok {
		return e.Result, e.Source, true
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			var e entry
			if err := json.Unmarshal(data, &e); err == nil && e.Result != nil {
				c.memory.Add(key, e)
				return e.Result, e.Source, true
			}
		} else if err != redis.Nil && c.logger != nil {
			c.logger.WithError(err).Debug("Redis cache lookup failed")
		}
	}

	return nil, "", false
}

// Put stores a result in both tiers. Redis failures are logged and ignored;
// the cache never makes a request fail.
func (c *ResultCache) Put(ctx context.Context, key string, result *domain.RecommendationResult, source string) {
	e := entry{Result: result, Source: source}
	c.memory.Add(key, e)

	if c.redis != nil {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
			c.logger.WithError(err).Debug("Redis cache write failed")
		}
	}
}

// Len returns the number of entries in the memory tier.
func (c *ResultCache) Len() int {
	return c.memory.Len()
}

// Close releases the Redis connection if one was configured.
func (c *ResultCache) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
