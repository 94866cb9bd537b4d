package ratelimit

import (
	"testing"
	"time"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/Aidin1998/kycengine/pkg/clock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestTokenBucketRefills(t *testing.T) {
	tb := NewTokenBucket(2, 4, epoch)

	for i := 0; i < 2; i++ {
		ok, _ := tb.Take(epoch)
		assert.True(t, ok)
	}
	ok, wait := tb.Take(epoch)
	assert.False(t, ok)
	assert.Equal(t, 250*time.Millisecond, wait)

	ok, _ = tb.Take(epoch.Add(250 * time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 2, tb.Remaining(epoch.Add(time.Hour)), "refill is capped at capacity")
}

func TestTokenBucketResize(t *testing.T) {
	tb := NewTokenBucket(10, 1, epoch)
	tb.Resize(3, 1, epoch)
	assert.Equal(t, 3, tb.Remaining(epoch))
}

func newLimiter(t *testing.T, clk clock.Clock) *Limiter {
	return NewLimiter(config.RateLimitConfig{
		Enabled: true,
		Rate:    1,
		Burst:   1,
		IdleTTL: time.Minute,
	}, clk, zaptest.NewLogger(t))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	clk := clock.NewMock(epoch)
	l := newLimiter(t, clk)

	ok, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, wait := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok)
	assert.Equal(t, 2, l.Len())
}

func TestLimiterReconfigure(t *testing.T) {
	clk := clock.NewMock(epoch)
	l := newLimiter(t, clk)

	l.Allow("10.0.0.1")
	l.Reconfigure(config.RateLimitConfig{Rate: 10, Burst: 5, IdleTTL: time.Minute})
	assert.Equal(t, 5, l.Limit())

	clk.Advance(time.Second)
	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("10.0.0.1")
		assert.True(t, ok, "request %d", i)
	}
	ok, _ := l.Allow("10.0.0.1")
	assert.False(t, ok)
}

func TestLimiterSweep(t *testing.T) {
	clk := clock.NewMock(epoch)
	l := newLimiter(t, clk)

	l.Allow("idle")
	clk.Advance(45 * time.Second)
	l.Allow("active")
	clk.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}
