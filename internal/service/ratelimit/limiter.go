// Package ratelimit throttles retraining per product.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ProductLimiter keeps one token bucket per product: a product may retrain
// once per interval, with a small burst for the first events after a quiet
// period.
type ProductLimiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	every    rate.Limit
	burst    int
	idle     time.Duration
	maxKeys  int
	now      func() time.Time
}

// New returns a limiter allowing one event per interval per product.
func New(interval time.Duration, burst int) *ProductLimiter {
	if burst < 1 {
		burst = 1
	}
	idle := 10 * interval
	if idle < time.Hour {
		idle = time.Hour
	}
	return &ProductLimiter{
		limiters: make(map[string]*entry),
		every:    rate.Every(interval),
		burst:    burst,
		idle:     idle,
		maxKeys:  10_000,
		now:      time.Now,
	}
}

// Allow consumes a token for productID if one is available.
func (l *ProductLimiter) Allow(productID string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.limiters[productID]
	if !ok {
		if len(l.limiters) >= l.maxKeys {
			l.pruneLocked(now)
		}
		e = &entry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[productID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Len is the number of products currently tracked.
func (l *ProductLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// pruneLocked drops buckets idle long enough to have refilled completely.
func (l *ProductLimiter) pruneLocked(now time.Time) {
	for id, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, id)
		}
	}
}
