// Package cache provides a Dragonfly/Redis client wrapper.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDisabled is returned by a nil Cache's health check.
var ErrDisabled = errors.New("cache disabled")

// Cache wraps a Redis/Dragonfly client. A nil *Cache means caching is off.
type Cache struct {
	Client *redis.Client
}

// Option adjusts client options before connecting.
type Option func(*redis.Options)

// WithTimeouts overrides the dial and read/write timeouts.
func WithTimeouts(dial, rw time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = rw
		o.WriteTimeout = rw
	}
}

// WithPoolSize caps open connections.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// Options parses url and applies the default timeouts followed by opts.
func Options(url string, opts ...Option) (*redis.Options, error) {
	o, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	WithTimeouts(5*time.Second, 3*time.Second)(o)
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// New connects to the cache and pings it.
func New(ctx context.Context, url string, opts ...Option) (*Cache, error) {
	o, err := Options(url, opts...)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Cmdable exposes the client for stores that only need commands, such as
// the narration audio cache.
func (c *Cache) Cmdable() redis.Cmdable {
	return c.Client
}

// Close shuts down the cache client. Safe on nil.
func (c *Cache) Close() error {
	if c == nil || c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return ErrDisabled
	}
	return c.Client.Ping(ctx).Err()
}
