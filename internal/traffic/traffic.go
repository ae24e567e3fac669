package traffic

import (
	"sync"
	"time"
)

// retention bounds how long outcomes are kept; it must cover the longest health window.
const retention = 5 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a request that completed the pipeline.
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a request that failed upstream, in normalization or in rendering.
func RecordError() {
	defaultTracker.RecordError()
}

// RecordRejected records a render refused by admission control.
func RecordRejected() {
	defaultTracker.RecordRejected()
}

// RequestCount returns the number of outcomes (success + error + rejected) within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// RejectedCount returns the number of admission rejections within the window.
func RejectedCount(window time.Duration) int {
	return defaultTracker.RejectedCount(window)
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
// It is the single source for the overloaded and degraded health states.
type Tracker struct {
	mu            sync.Mutex
	successTimes  []time.Time
	errorTimes    []time.Time
	rejectedTimes []time.Time
}

// RecordSuccess records a successful outcome.
func (t *Tracker) RecordSuccess() {
	t.recordOutcome(&t.successTimes)
}

// RecordError records a failed outcome.
func (t *Tracker) RecordError() {
	t.recordOutcome(&t.errorTimes)
}

// RecordRejected records an admission rejection.
func (t *Tracker) RecordRejected() {
	t.recordOutcome(&t.rejectedTimes)
}

func (t *Tracker) recordOutcome(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns the total number of outcomes within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	return countInWindow(t.successTimes, cutoff) +
		countInWindow(t.errorTimes, cutoff) +
		countInWindow(t.rejectedTimes, cutoff)
}

// RejectedCount returns the number of admission rejections within the window.
func (t *Tracker) RejectedCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.rejectedTimes, time.Now().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) within the window.
// Rejections are excluded: they measure capacity, not correctness.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	errCount := countInWindow(t.errorTimes, cutoff)
	successCount := countInWindow(t.successTimes, cutoff)
	return errCount, errCount + successCount
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.rejectedTimes = nil
}

func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than retention. Must be called with mu held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.rejectedTimes)
}
