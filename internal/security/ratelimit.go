package security

import (
	"sync"
	"time"
)

// defaultMaxWindows caps how many keys are tracked before stale ones are
// dropped.
const defaultMaxWindows = 10000

// RateLimiter admits at most rate requests per key in each fixed window of
// length interval. Keys are session ids; the limiter keeps one chatty client
// from draining the paid search and LLM quotas.
type RateLimiter struct {
	mu         sync.Mutex
	rate       int
	interval   time.Duration
	windows    map[string]*window
	maxWindows int
	now        func() time.Time
}

type window struct {
	start time.Time
	used  int
}

// NewRateLimiter allows rate requests per interval and key. A rate of zero or
// less disables limiting.
func NewRateLimiter(rate int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		interval:   interval,
		windows:    make(map[string]*window),
		maxWindows: defaultMaxWindows,
		now:        time.Now,
	}
}

// Allow consumes one request for key and reports whether it fits the window.
// A nil limiter allows everything.
func (rl *RateLimiter) Allow(key string) bool {
	if rl == nil || rl.rate <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok {
		if len(rl.windows) >= rl.maxWindows {
			rl.evictStale(now)
		}
		w = &window{start: now}
		rl.windows[key] = w
	} else if now.Sub(w.start) >= rl.interval {
		w.start, w.used = now, 0
	}

	if w.used >= rl.rate {
		return false
	}
	w.used++
	return true
}

// RetryAfter is the time left until key's window resets.
func (rl *RateLimiter) RetryAfter(key string) time.Duration {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok {
		return 0
	}
	if wait := rl.interval - rl.now().Sub(w.start); wait > 0 {
		return wait
	}
	return 0
}

func (rl *RateLimiter) evictStale(now time.Time) {
	cutoff := now.Add(-2 * rl.interval)
	for key, w := range rl.windows {
		if w.start.Before(cutoff) {
			delete(rl.windows, key)
		}
	}
}
