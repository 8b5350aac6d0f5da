// Package cache keeps evaluated query results in Redis. The index never
// changes after startup, so entries only need scoping to the index
// fingerprint; a rebuilt corpus gets a fresh key space.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/PippiShao/IMDB/internal/indexer/registry"
	pkgredis "github.com/PippiShao/IMDB/pkg/redis"
	"github.com/PippiShao/IMDB/pkg/resilience"
)

const keyPrefix = "qs:"

type QueryCache struct {
	client      *pkgredis.Client
	ttl         time.Duration
	fingerprint string
	breaker     *resilience.CircuitBreaker
	group       singleflight.Group
	logger      *slog.Logger
	hits        atomic.Int64
	misses      atomic.Int64
}

type Option func(*QueryCache)

// WithBreaker routes every Redis call through cb. While cb is open the cache
// reports misses and skips writes without touching Redis.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *QueryCache) { c.breaker = cb }
}

func New(client *pkgredis.Client, ttl time.Duration, fingerprint string, opts ...Option) *QueryCache {
	c := &QueryCache{
		client:      client,
		ttl:         ttl,
		fingerprint: fingerprint,
		logger:      slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *QueryCache) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Execute(fn)
}

func (c *QueryCache) Get(ctx context.Context, key string) ([]registry.DocID, bool) {
	redisKey := c.buildKey(key)
	var (
		data  []byte
		found bool
	)
	err := c.guard(func() error {
		var err error
		data, found, err = c.client.Load(ctx, redisKey)
		return err
	})
	if err != nil || !found {
		switch {
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache get skipped", "key", redisKey, "error", err)
		case err != nil:
			c.logger.Error("cache get failed", "key", redisKey, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var ids []registry.DocID
	if err := json.Unmarshal(data, &ids); err != nil {
		c.logger.Error("cache unmarshal failed", "key", redisKey, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", redisKey, "results", len(ids))
	return ids, true
}

func (c *QueryCache) Set(ctx context.Context, key string, ids []registry.DocID) {
	redisKey := c.buildKey(key)
	if ids == nil {
		ids = []registry.DocID{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", redisKey, "error", err)
		return
	}
	err = c.guard(func() error { return c.client.Store(ctx, redisKey, data, c.ttl) })
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.logger.Debug("cache set skipped", "key", redisKey, "error", err)
	case err != nil:
		c.logger.Error("cache set failed", "key", redisKey, "error", err)
	}
}

// GetOrCompute returns the cached result for key, or runs compute once per
// key across concurrent callers and stores its result. The bool reports a
// cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() ([]registry.DocID, error),
) ([]registry.DocID, bool, error) {
	if ids, ok := c.Get(ctx, key); ok {
		return ids, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		ids, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, ids)
		return ids, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]registry.DocID), false, nil
}

// Invalidate drops every entry written for this cache's fingerprint and
// returns how many were removed. Entries of other fingerprints sharing the
// Redis database are left alone.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	pattern := keyPrefix + c.fingerprint + ":*"
	var deleted int64
	err := c.guard(func() error {
		var err error
		deleted, err = c.client.DeleteMatching(ctx, pattern)
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache for %s: %w", c.fingerprint, err)
	}
	c.logger.Info("cache invalidated", "fingerprint", c.fingerprint, "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Fingerprint() string {
	return c.fingerprint
}

// Stats reports lookups since startup. Every Get counts once, including those
// skipped by an open breaker.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.fingerprint, hash[:16])
}
