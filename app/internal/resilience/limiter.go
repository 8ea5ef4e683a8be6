package resilience

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	DefaultRateLimit  = 20
	DefaultRateWindow = 60 * time.Second

	defaultTrackedCallers = 10_000
)

// RateLimiter admits at most limit requests per caller within a sliding
// window. Windows of the least recently seen callers are evicted once
// maxCallers are tracked.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows *lru.Cache
}

// NewRateLimiter creates a limiter. Non-positive arguments use the defaults.
func NewRateLimiter(limit int, window time.Duration, maxCallers int) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if window <= 0 {
		window = DefaultRateWindow
	}
	if maxCallers <= 0 {
		maxCallers = defaultTrackedCallers
	}
	windows, err := lru.New(maxCallers)
	if err != nil {
		panic(err)
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: windows,
	}
}

// Allow records a request for caller and reports whether it is admitted.
// Rejected requests are not recorded.
func (r *RateLimiter) Allow(caller string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := r.prune(caller, now)
	if len(recent) >= r.limit {
		r.windows.Add(caller, recent)
		return false
	}
	r.windows.Add(caller, append(recent, now))
	return true
}

// Remaining reports how many requests caller may still make in the window.
func (r *RateLimiter) Remaining(caller string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return max(0, r.limit-len(r.prune(caller, r.now())))
}

func (r *RateLimiter) prune(caller string, now time.Time) []time.Time {
	v, ok := r.windows.Get(caller)
	if !ok {
		return nil
	}
	cutoff := now.Add(-r.window)
	stamps := v.([]time.Time)
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
