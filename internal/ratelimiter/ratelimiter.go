// Package ratelimiter provides token bucket limiters keyed by client.
package ratelimiter

import (
	"sync"

	"golang.org/x/time/rate"
)

// unlimitedRate stands in for rate.Inf, whose burst handling differs.
const unlimitedRate = 1_000_000_000

// RateLimiter is a single token bucket.
//
// The bucket holds up to burst tokens and refills at packetsPerSecond. Each
// Allow consumes one token. A zero rate disables limiting.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

func New(packetsPerSecond, burst uint) *RateLimiter {
	if packetsPerSecond == 0 {
		packetsPerSecond = unlimitedRate
		burst = unlimitedRate
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(packetsPerSecond), int(burst))}
}

// Allow consumes one token, reporting false when the bucket is empty.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Tokens returns the tokens currently available. Monitoring only.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// Keyed holds one RateLimiter per key, created on first use.
type Keyed struct {
	packetsPerSecond uint
	burst            uint

	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

func NewKeyed(packetsPerSecond, burst uint) *Keyed {
	return &Keyed{
		packetsPerSecond: packetsPerSecond,
		burst:            burst,
		limiters:         make(map[string]*RateLimiter),
	}
}

// Allow consumes one token from key's bucket.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = New(k.packetsPerSecond, k.burst)
		k.limiters[key] = l
	}
	k.mu.Unlock()

	return l.Allow()
}

// Remove forgets key's bucket.
func (k *Keyed) Remove(key string) {
	k.mu.Lock()
	delete(k.limiters, key)
	k.mu.Unlock()
}

// Reset forgets every bucket.
func (k *Keyed) Reset() {
	k.mu.Lock()
	k.limiters = make(map[string]*RateLimiter)
	k.mu.Unlock()
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
