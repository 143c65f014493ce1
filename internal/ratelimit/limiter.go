// Package ratelimit throttles anonymous write traffic per visitor or client key.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepInterval = time.Hour

// Limiter hands out one token bucket per key. Buckets are dropped every hour;
// an idle key starts again with a full burst.
type Limiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	buckets   map[string]*rate.Limiter
	lastSweep time.Time
	now       func() time.Time
}

// New allows perMinute events per key with a burst of the same size.
// A non-positive perMinute disables limiting.
func New(perMinute int) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*rate.Limiter),
		now:     time.Now,
	}
	if perMinute <= 0 {
		l.limit = rate.Inf
		l.burst = 1
	} else {
		l.limit = rate.Every(time.Minute / time.Duration(perMinute))
		l.burst = perMinute
	}
	l.lastSweep = l.now()
	return l
}

// Allow reports whether one more event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).AllowN(l.now(), 1)
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > sweepInterval {
		l.buckets = make(map[string]*rate.Limiter)
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
