package identity

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// recoveryLimiter throttles reset and verification requests per
// (tenant, email) pair so the recovery flow cannot be used to hammer the
// mail pipeline. Idle limiters are swept by the janitor.
type recoveryLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newRecoveryLimiter(cfg PasswordResetConfig) *recoveryLimiter {
	return &recoveryLimiter{
		limit:    rate.Limit(cfg.RequestsPerMin / 60.0),
		burst:    cfg.RequestBurst,
		limiters: make(map[string]*limiterEntry),
	}
}

// Allow reports whether a request for the key may proceed now.
func (l *recoveryLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()
	return entry.lim.Allow()
}

// Sweep removes limiters idle for longer than keepFor.
func (l *recoveryLimiter) Sweep(now time.Time, keepFor time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > keepFor {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}
