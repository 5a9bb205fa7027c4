// Package ratelimit provides the token buckets that gate Gemini calls and
// inbound HTTP traffic.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket allows perMinute acquisitions per minute with a burst of the same
// size. It is safe for concurrent use and meant to be shared process-wide.
type TokenBucket struct {
	limiter *rate.Limiter
	timeout time.Duration
}

// NewTokenBucket creates a bucket that refills one token every minute/perMinute.
// TryAcquire waits at most timeout for a token; a zero timeout never waits.
func NewTokenBucket(perMinute int, timeout time.Duration) *TokenBucket {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		timeout: timeout,
	}
}

// TryAcquire takes one token, waiting up to the configured timeout. It returns
// false when no token becomes available in time or ctx is cancelled first.
func (b *TokenBucket) TryAcquire(ctx context.Context) bool {
	if b.timeout <= 0 {
		return b.limiter.Allow()
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	// Wait fails fast when the next token lies beyond the deadline.
	return b.limiter.Wait(ctx) == nil
}

// KeyedLimiter keeps an independent bucket per key (for example a client IP).
type KeyedLimiter struct {
	mu      sync.Mutex
	buckets map[string]*keyedBucket
	rate    rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

type keyedBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter allows rps requests per second with the given burst per key.
// Buckets unused for idle are dropped by Sweep.
func NewKeyedLimiter(rps float64, burst int, idle time.Duration) *KeyedLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &KeyedLimiter{
		buckets: make(map[string]*keyedBucket),
		rate:    rate.Limit(rps),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Allow reports whether a request for key is within the limit.
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	b, ok := k.buckets[key]
	if !ok {
		b = &keyedBucket{limiter: rate.NewLimiter(k.rate, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the configured idle period.
func (k *KeyedLimiter) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-k.idle)
	removed := 0
	for key, b := range k.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(k.buckets, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (k *KeyedLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Sweep()
		}
	}
}
