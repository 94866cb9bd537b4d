// tokenbucket.go: Token bucket algorithm implementation
package ratelimit

import (
	"math"
	"time"
)

// TokenBucket is a token bucket driven by explicit timestamps. It is not
// safe for concurrent use; Limiter serializes access.
type TokenBucket struct {
	capacity   float64   // max tokens
	tokens     float64   // current tokens (float for partial refill)
	rate       float64   // tokens per second
	lastRefill time.Time // last refill timestamp
}

// NewTokenBucket creates a full bucket with the given capacity and refill rate (tokens per second).
func NewTokenBucket(capacity int, rate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		rate:       rate,
		lastRefill: now,
	}
}

// Take attempts to consume a token. When the bucket is empty it returns
// false and the time until the next token is available.
func (tb *TokenBucket) Take(now time.Time) (bool, time.Duration) {
	tb.refill(now)
	if tb.tokens >= 1 {
		tb.tokens--
		return true, 0
	}
	missing := 1 - tb.tokens
	wait := time.Duration(math.Ceil(missing / tb.rate * float64(time.Second)))
	return false, wait
}

// Remaining returns the number of whole tokens left.
func (tb *TokenBucket) Remaining(now time.Time) int {
	tb.refill(now)
	return int(tb.tokens)
}

// Resize updates rate and capacity, keeping the tokens already earned.
func (tb *TokenBucket) Resize(capacity int, rate float64, now time.Time) {
	tb.refill(now)
	tb.capacity = float64(capacity)
	tb.rate = rate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.rate)
	tb.lastRefill = now
}
