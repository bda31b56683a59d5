package http

import (
	"context"
	"sync/atomic"
	"time"
)

// InFlightTracker counts requests that have entered the middleware chain and not yet returned.
// Shutdown waits on it after srv.Shutdown so a slow prediction is not cut off mid-render.
type InFlightTracker struct {
	count atomic.Int64
}

// Begin marks a request as started and returns the func that marks it done.
func (t *InFlightTracker) Begin() (done func()) {
	t.count.Add(1)
	return func() { t.count.Add(-1) }
}

// Count returns the current in-flight count.
func (t *InFlightTracker) Count() int64 {
	return t.count.Load()
}

// WaitForZero blocks until the in-flight count reaches zero or ctx is cancelled,
// re-checking every checkInterval.
func (t *InFlightTracker) WaitForZero(ctx context.Context, checkInterval time.Duration) error {
	if checkInterval <= 0 {
		checkInterval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()
	for t.Count() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

var globalInFlightTracker = &InFlightTracker{}

// InFlightCount returns the number of requests currently being served.
func InFlightCount() int64 {
	return globalInFlightTracker.Count()
}

// WaitForInFlight blocks until in-flight requests reach zero or ctx is done.
func WaitForInFlight(ctx context.Context, checkInterval time.Duration) error {
	return globalInFlightTracker.WaitForZero(ctx, checkInterval)
}
