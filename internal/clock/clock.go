// Package clock abstracts time and pacing so tests never sleep.
package clock

import (
	"math/rand"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Sleeper blocks the calling goroutine. Pacing delays are deliberate
// blocking waits, not cancellable mid-sleep.
type Sleeper interface {
	Sleep(d time.Duration)
}

// System implements Clock and Sleeper with the real clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Sleep blocks for d.
func (System) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// RandomSeconds returns a uniformly random duration in [lo, hi] whole
// seconds, matching the fixed-window pacing the upstream tolerates.
func RandomSeconds(lo, hi int) time.Duration {
	if hi < lo {
		lo, hi = hi, lo
	}
	n := lo + rand.Intn(hi-lo+1)
	return time.Duration(n) * time.Second
}

// RandomInterval returns a page-interval length in [lo, hi].
func RandomInterval(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + rand.Intn(hi-lo+1)
}
