package tts

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const cacheKeyPrefix = "buzzle:tts:"

// AudioCache stores synthesized clips by key.
type AudioCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, audio []byte, ttl time.Duration) error
}

// RedisCache is an AudioCache on Redis or Dragonfly.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache wraps a redis client.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	audio, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return audio, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, audio []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, audio, ttl).Err()
}

// Cached memoizes another synthesizer. Identical lines such as the
// character greetings are synthesized once per TTL.
type Cached struct {
	next  Synthesizer
	cache AudioCache
	ttl   time.Duration
}

// NewCached wraps next with cache.
func NewCached(next Synthesizer, cache AudioCache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: cache, ttl: ttl}
}

// CacheKey derives the storage key for a voice and text pair.
func CacheKey(text, voice string) string {
	sum := blake2b.Sum256([]byte(voice + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *Cached) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	key := CacheKey(text, voice)

	audio, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		// A broken cache only costs a synthesis call.
		slog.Warn("tts cache read failed", "error", err)
	} else if ok {
		return audio, nil
	}

	audio, err = c.next.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, audio, c.ttl); err != nil {
		slog.Warn("tts cache write failed", "error", err)
	}
	return audio, nil
}
