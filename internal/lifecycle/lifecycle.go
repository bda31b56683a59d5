// Package lifecycle holds the process drain state shared by main and the health handler.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// shutdownAt is the drain start in Unix nanoseconds; zero while serving.
var shutdownAt atomic.Int64

// BeginShutdown marks the process as draining from now. Only the first call takes effect;
// it reports whether this call started the drain.
func BeginShutdown(now time.Time) bool {
	return shutdownAt.CompareAndSwap(0, now.UnixNano())
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shutdownAt.Load() != 0
}

// ShutdownStartedAt returns when the drain began, or false while serving.
func ShutdownStartedAt() (time.Time, bool) {
	ns := shutdownAt.Load()
	if ns == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, ns), true
}

// Reset returns to the serving state. For tests only.
func Reset() {
	shutdownAt.Store(0)
}
