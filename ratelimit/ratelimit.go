// Package ratelimit provides per-identity token-bucket limiting for login
// attempts. Identities are typically "email|ip" pairs so one caller cannot
// starve another.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultIdleEviction = 30 * time.Minute

// Limiter hands out a token bucket per identity and evicts buckets that have
// been idle long enough to refill completely.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perMinute int
	burst     int
	idleAfter time.Duration
	nowFunc   func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type LimiterOption func(*Limiter)

func WithIdleEviction(idleAfter time.Duration) LimiterOption {
	return func(l *Limiter) { l.idleAfter = idleAfter }
}

func WithNowFunc(now func() time.Time) LimiterOption {
	return func(l *Limiter) { l.nowFunc = now }
}

// New creates a limiter allowing perMinute sustained attempts with the given
// burst per identity.
func New(perMinute, burst int, options ...LimiterOption) *Limiter {
	l := &Limiter{
		buckets:   make(map[string]*bucket),
		perMinute: perMinute,
		burst:     burst,
		idleAfter: defaultIdleEviction,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Allow consumes one attempt for the identity, reporting whether it is within
// the limit.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b, ok := l.buckets[identity]
	if !ok {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst),
		}
		l.buckets[identity] = b
	}
	b.lastSeen = now

	if len(l.buckets) > 1024 {
		l.evictIdleLocked(now)
	}

	return b.limiter.AllowN(now, 1)
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) evictIdleLocked(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idleAfter {
			delete(l.buckets, id)
		}
	}
}
