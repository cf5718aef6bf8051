package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

type RedisCache struct {
	c *redis.Client
}

func NewRedisCache(c *redis.Client) *RedisCache { return &RedisCache{c: c} }

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

// CachedClassifier remembers predictions by image digest. Cache failures only
// cost a call to next.
type CachedClassifier struct {
	next   Classifier
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedClassifier(next Classifier, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedClassifier {
	return &CachedClassifier{next: next, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return "prediction:" + hex.EncodeToString(sum[:])
}

func (c *CachedClassifier) Predict(ctx context.Context, image []byte) (*Prediction, error) {
	key := cacheKey(image)

	cached, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var p Prediction
		if err := json.Unmarshal([]byte(cached), &p); err == nil && Validate(&p) == nil {
			return &p, nil
		}
		c.logger.Warn("Discarding unreadable cached prediction", zap.String("key", key))
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn("Prediction cache read failed", zap.Error(err))
	}

	p, err := c.next.Predict(ctx, image)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(p); err == nil {
		if err := c.cache.Set(ctx, key, string(b), c.ttl); err != nil {
			c.logger.Warn("Prediction cache write failed", zap.Error(err))
		}
	}

	return p, nil
}
