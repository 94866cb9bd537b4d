package messaging

import (
	"context"
	"time"

	"github.com/Aidin1998/kycengine/common/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings tunes the circuit breaker around a producer
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultBreakerSettings trips after half of at least five requests fail
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:         "kafka",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// BreakerProducer stops calling a failing broker until the breaker half-opens
type BreakerProducer struct {
	next Producer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerProducer wraps next with a circuit breaker
func NewBreakerProducer(next Producer, st BreakerSettings, logger *zap.Logger) *BreakerProducer {
	gs := gobreaker.Settings{
		Name:        st.Name,
		MaxRequests: st.MaxRequests,
		Interval:    st.Interval,
		Timeout:     st.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= st.MinRequests && ratio >= st.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerProducer{next: next, cb: gobreaker.NewCircuitBreaker(gs)}
}

// Publish forwards to the wrapped producer. An open breaker yields
// errors.Unavailable without touching the broker.
func (b *BreakerProducer) Publish(ctx context.Context, topic Topic, key string, message any) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Publish(ctx, topic, key, message)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Unavailable.Explain("event publishing suspended: %v", err)
	}
	return err
}

// State reports the breaker state
func (b *BreakerProducer) State() gobreaker.State { return b.cb.State() }

func (b *BreakerProducer) Close() error { return b.next.Close() }
