// Package traffic keeps sliding windows of request outcomes. The health
// handler reads them to decide degraded and overloaded status.
package traffic

import (
	"sync"
	"time"
)

// retention bounds how far back outcomes are kept.
const retention = 5 * time.Minute

var defaultTracker Tracker

// RecordSuccess records a served request.
func RecordSuccess() {
	defaultTracker.RecordSuccess()
}

// RecordError records a request that failed on an upstream dependency.
func RecordError() {
	defaultTracker.RecordError()
}

// RecordDenied records a rate-limit denial.
func RecordDenied() {
	defaultTracker.RecordDenied()
}

// RequestCount returns all outcomes (success + error + denied) in the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the denials in the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (errors, successes+errors) in the window. Denials are
// excluded from the rate.
func ErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains the outcome timestamp windows.
type Tracker struct {
	mu           sync.Mutex
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
}

func (t *Tracker) RecordSuccess() { t.record(&t.successTimes) }
func (t *Tracker) RecordError()   { t.record(&t.errorTimes) }
func (t *Tracker) RecordDenied()  { t.record(&t.deniedTimes) }

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// RequestCount returns all outcomes in the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	return countSince(t.successTimes, cutoff) +
		countSince(t.errorTimes, cutoff) +
		countSince(t.deniedTimes, cutoff)
}

// DenialCount returns the denials in the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.deniedTimes, time.Now().Add(-window))
}

// ErrorRate returns (errors, successes+errors) in the window.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	errCount := countSince(t.errorTimes, cutoff)
	return errCount, errCount + countSince(t.successTimes, cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
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

// pruneLocked drops timestamps older than the retention bound. Timestamps
// are appended in order, so the prefix scan is enough.
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
	prune(&t.deniedTimes)
}
