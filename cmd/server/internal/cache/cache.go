// Package cache is a best-effort, two-tier cache: Redis when it is
// reachable, a local TTL'd map when it is not. Unavailability is a
// first-class return value here, never an error the caller must handle.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "price:"

// Key builds the cache key for a symbol.
func Key(symbol string) string { return keyPrefix + symbol }

const (
	connectAttempts = 3
	maxConnectDelay = 2 * time.Second
)

// Clock abstracts wall-clock time for deterministic testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type fallbackEntry struct {
	value    string
	storedAt time.Time
}

// Cache wraps a Redis client with a same-process fallback map. The
// fallback has no native expiry, so storedAt enforces the TTL window
// manually.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	clock  Clock
	logger *zap.Logger

	live atomic.Bool

	mu       sync.Mutex
	fallback map[string]fallbackEntry
}

// New builds a cache around an existing client. The cache starts in
// the unavailable state; call Connect to probe the backend.
func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	return NewWithClock(rdb, ttl, realClock{}, logger)
}

func NewWithClock(rdb *redis.Client, ttl time.Duration, clock Clock, logger *zap.Logger) *Cache {
	return &Cache{
		rdb:      rdb,
		ttl:      ttl,
		clock:    clock,
		logger:   logger,
		fallback: make(map[string]fallbackEntry),
	}
}

// Connect probes the backend with bounded retry. On failure the
// backend stays marked unavailable for the process lifetime; liveness
// is only ever re-evaluated from operation errors, never re-probed.
func (c *Cache) Connect(ctx context.Context) bool {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = c.rdb.Ping(ctx).Err(); err == nil {
			c.live.Store(true)
			return true
		}
		delay := time.Duration(attempt) * 50 * time.Millisecond
		if delay > maxConnectDelay {
			delay = maxConnectDelay
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}
	c.logger.Warn("cache backend unreachable, running on local fallback only", zap.Error(err))
	return false
}

// Live reports whether the Redis tier is considered reachable.
func (c *Cache) Live() bool { return c.live.Load() }

func (c *Cache) markDown(err error) {
	if c.live.CompareAndSwap(true, false) {
		c.logger.Warn("cache backend lost, degrading to local fallback", zap.Error(err))
	}
}

// Get returns the cached value for key, consulting Redis first and the
// local fallback when Redis is absent or unavailable.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	if c.live.Load() {
		val, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			return val, true
		}
		if err != redis.Nil {
			c.markDown(err)
		}
	}
	return c.fallbackGet(key)
}

// Set writes the value to Redis (best effort) and always to the local
// fallback. Reports whether the Redis write succeeded.
func (c *Cache) Set(ctx context.Context, key, value string) bool {
	c.fallbackSet(key, value)

	if !c.live.Load() {
		return false
	}
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.markDown(err)
		return false
	}
	return true
}

// MultiGet returns the present values for keys. Absent keys are simply
// missing from the result.
func (c *Cache) MultiGet(ctx context.Context, keys []string) map[string]string {
	if len(keys) == 0 {
		return nil
	}
	found := make(map[string]string, len(keys))

	if c.live.Load() {
		results, err := c.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			c.markDown(err)
		} else {
			for i, val := range results {
				if payload, ok := val.(string); ok && payload != "" {
					found[keys[i]] = payload
				}
			}
		}
	}

	for _, key := range keys {
		if _, ok := found[key]; ok {
			continue
		}
		if val, ok := c.fallbackGet(key); ok {
			found[key] = val
		}
	}
	return found
}

// MultiSet pipelines SETs for all entries with the shared TTL and
// mirrors every entry into the local fallback.
func (c *Cache) MultiSet(ctx context.Context, entries map[string]string) bool {
	for key, value := range entries {
		c.fallbackSet(key, value)
	}

	if !c.live.Load() || len(entries) == 0 {
		return false
	}

	pipe := c.rdb.Pipeline()
	for key, value := range entries {
		pipe.Set(ctx, key, value, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.markDown(err)
		return false
	}
	return true
}

// Publish sends a payload on a broadcast channel. Best effort like
// every other operation.
func (c *Cache) Publish(ctx context.Context, channel string, payload []byte) bool {
	if !c.live.Load() {
		return false
	}
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		c.markDown(err)
		return false
	}
	return true
}

// RunPubSub blocks reading messages matching pattern and invoking
// onMessage for each. Returns immediately when the backend was never
// reachable.
func (c *Cache) RunPubSub(ctx context.Context, pattern string, onMessage func(channel, payload string)) {
	if !c.live.Load() {
		return
	}

	pubsub := c.rdb.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			onMessage(msg.Channel, msg.Payload)
		}
	}
}

func (c *Cache) fallbackSet(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback[key] = fallbackEntry{value: value, storedAt: c.clock.Now()}
}

func (c *Cache) fallbackGet(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.fallback[key]
	if !ok {
		return "", false
	}
	if c.clock.Now().Sub(entry.storedAt) > c.ttl {
		delete(c.fallback, key)
		return "", false
	}
	return entry.value, true
}
