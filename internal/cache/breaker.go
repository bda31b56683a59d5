package cache

import (
	"context"
	"errors"
	"time"

	"github.com/kjstillabower/fwi-predictor/internal/circuitbreaker"
)

// BreakerCache guards a remote Cache with a circuit breaker. While the circuit is open,
// Get reports a miss and Set is skipped, so predictions fall through to inference.
type BreakerCache struct {
	inner Cache
	cb    *circuitbreaker.CircuitBreaker
}

// NewBreakerCache wraps inner with cb.
func NewBreakerCache(inner Cache, cb *circuitbreaker.CircuitBreaker) *BreakerCache {
	return &BreakerCache{inner: inner, cb: cb}
}

// Get implements Cache.Get. A miss is not a failure.
func (c *BreakerCache) Get(ctx context.Context, key string) (float64, bool, error) {
	var (
		v  float64
		ok bool
	)
	err := c.cb.Call(func() error {
		var err error
		v, ok, err = c.inner.Get(ctx, key)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return 0, false, nil
	}
	return v, ok, err
}

// Set implements Cache.Set.
func (c *BreakerCache) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	err := c.cb.Call(func() error {
		return c.inner.Set(ctx, key, value, ttl)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil
	}
	return err
}
