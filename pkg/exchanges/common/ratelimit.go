package common

import (
	"log"
	"strconv"
	"sync"
	"time"
)

// UsageTracker follows the request-weight accounting an exchange reports in
// its response headers. It does not gate requests itself; callers consult
// NearLimit before issuing non-essential polls.
type UsageTracker struct {
	mu        sync.RWMutex
	used      int
	limit     int
	window    time.Duration
	lastReset time.Time
}

// NewUsageTracker creates a tracker for a weight budget per window
// (Binance futures: 2400/min).
func NewUsageTracker(limit int, window time.Duration) *UsageTracker {
	return &UsageTracker{
		limit:     limit,
		window:    window,
		lastReset: time.Now(),
	}
}

// Observe records the used weight reported by a response header. Empty or
// malformed values are ignored.
func (t *UsageTracker) Observe(headerValue string) {
	if headerValue == "" {
		return
	}
	used, err := strconv.Atoi(headerValue)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Since(t.lastReset) >= t.window {
		t.lastReset = time.Now()
	}
	t.used = used

	if pct := float64(used) / float64(t.limit) * 100; pct >= 80 {
		log.Printf("rate limit warning: %d/%d (%.1f%%)", used, t.limit, pct)
	}
}

// NearLimit reports whether usage is above 90% of the budget.
func (t *UsageTracker) NearLimit() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if time.Since(t.lastReset) >= t.window {
		return false
	}
	return float64(t.used) >= float64(t.limit)*0.9
}
