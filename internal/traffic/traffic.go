// Package traffic keeps sliding windows of prediction-route outcomes. It backs the
// overload and degraded checks of /health and the window gauges on /metrics.
package traffic

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Outcome classifies a request on the prediction routes.
type Outcome int

const (
	// Success is a served prediction.
	Success Outcome = iota
	// Error is a server-side inference failure. Counts toward the degraded error rate.
	Error
	// Invalid is a rejected client input (400). Counted as traffic, not as an error.
	Invalid
	// Denied is a rate-limit rejection (429).
	Denied
	numOutcomes
)

const defaultMaxAge = 5 * time.Minute

var defaultTracker = NewTracker(clockwork.NewRealClock(), defaultMaxAge)

// Record records one outcome on the process-wide tracker.
func Record(o Outcome) {
	defaultTracker.Record(o)
}

// RecordN records n outcomes at once. For synthetic load in tests.
func RecordN(o Outcome, n int) {
	defaultTracker.RecordN(o, n)
}

// RequestCount returns the number of outcomes of any kind within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.Count(Denied, window)
}

// ErrorRate returns (errorCount, totalCount) within the window. totalCount = successes + errors.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	maxAge time.Duration
	times  [numOutcomes][]time.Time
}

// NewTracker returns a Tracker reading time from clock. Entries older than maxAge are pruned;
// windows longer than maxAge are therefore truncated.
func NewTracker(clock clockwork.Clock, maxAge time.Duration) *Tracker {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Tracker{clock: clock, maxAge: maxAge}
}

// Record records one outcome at the current time.
func (t *Tracker) Record(o Outcome) {
	t.RecordN(o, 1)
}

// RecordN records n outcomes at the current time.
func (t *Tracker) RecordN(o Outcome, n int) {
	if o < 0 || o >= numOutcomes || n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	for i := 0; i < n; i++ {
		t.times[o] = append(t.times[o], now)
	}
	t.pruneLocked(now)
}

// Count returns the number of outcomes of kind o within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	if o < 0 || o >= numOutcomes {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[o], t.clock.Now().Add(-window))
}

// RequestCount returns the number of outcomes of any kind within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	n := 0
	for _, times := range t.times {
		n += countSince(times, cutoff)
	}
	return n
}

// ErrorRate returns (errorCount, totalCount) within the window.
// Invalid input and denials are excluded from both counts.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	errCount := countSince(t.times[Error], cutoff)
	return errCount, errCount + countSince(t.times[Success], cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.times {
		t.times[i] = nil
	}
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.maxAge)
	for o, times := range t.times {
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[o] = append(times[:0], times[i:]...)
		}
	}
}
