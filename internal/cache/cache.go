package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kjstillabower/fwi-predictor/internal/models"
)

// Cache stores predicted FWI values keyed by Key. Predictions are deterministic for a
// given artifact pair, so a hit is always exact.
type Cache interface {
	Get(ctx context.Context, key string) (float64, bool, error)
	Set(ctx context.Context, key string, value float64, ttl time.Duration) error
}

// Key returns the cache key for v under the artifact pair identified by fingerprint.
// The vector is hashed so the key stays within memcached's 250 byte limit.
func Key(fingerprint string, v models.FeatureVector) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return fingerprint + ":" + hex.EncodeToString(sum[:16])
}

// InMemoryCache is a bounded LRU with a fixed TTL. Safe for concurrent use.
type InMemoryCache struct {
	lru *expirable.LRU[string, float64]
}

// NewInMemoryCache creates an LRU holding at most size entries, each expiring after ttl.
func NewInMemoryCache(size int, ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{lru: expirable.NewLRU[string, float64](size, nil, ttl)}
}

// Get returns (value, true, nil) on hit and (0, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (float64, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

// Set stores value. The per-call ttl is ignored; entries use the TTL given to NewInMemoryCache.
func (c *InMemoryCache) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	c.lru.Add(key, value)
	return nil
}

// Len returns the number of live entries.
func (c *InMemoryCache) Len() int {
	return c.lru.Len()
}

// NopCache never stores anything. Used when cache.backend is "none".
type NopCache struct{}

func (NopCache) Get(context.Context, string) (float64, bool, error)        { return 0, false, nil }
func (NopCache) Set(context.Context, string, float64, time.Duration) error { return nil }
