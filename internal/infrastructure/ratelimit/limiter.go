// Package ratelimit throttles API clients with per-key token buckets.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"go.uber.org/zap"
)

type bucketEntry struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	cfg     config.RateLimitConfig
	buckets map[string]*bucketEntry
	clock   clock.Clock
	logger  *zap.Logger
}

// NewLimiter creates a limiter from cfg.
func NewLimiter(cfg config.RateLimitConfig, clk clock.Clock, logger *zap.Logger) *Limiter {
	return &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucketEntry),
		clock:   clk,
		logger:  logger.Named("ratelimit"),
	}
}

// Allow consumes a token for key. When the key is throttled it returns
// false and how long the caller should wait.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.buckets[key]
	if !ok {
		entry = &bucketEntry{bucket: NewTokenBucket(l.cfg.Burst, l.cfg.Rate, now)}
		l.buckets[key] = entry
	}
	entry.lastSeen = now
	return entry.bucket.Take(now)
}

// Limit returns the configured burst size.
func (l *Limiter) Limit() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg.Burst
}

// Reconfigure applies new limits to every existing bucket.
func (l *Limiter) Reconfigure(cfg config.RateLimitConfig) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cfg = cfg
	for _, entry := range l.buckets {
		entry.bucket.Resize(cfg.Burst, cfg.Rate, now)
	}
}

// Sweep drops buckets idle for longer than the configured TTL and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, entry := range l.buckets {
		if now.Sub(entry.lastSeen) > l.cfg.IdleTTL {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Run sweeps idle buckets every interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("Evicted idle rate limit buckets", zap.Int("count", n))
			}
		}
	}
}
