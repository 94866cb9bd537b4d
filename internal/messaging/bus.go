package messaging

import (
	"context"

	"github.com/Aidin1998/kycengine/pkg/metrics"
	"go.uber.org/zap"
)

// MessageBus publishes typed domain events through a Producer
type MessageBus struct {
	producer Producer
	logger   *zap.Logger
}

// NewMessageBus creates a new message bus instance
func NewMessageBus(producer Producer, logger *zap.Logger) *MessageBus {
	return &MessageBus{producer: producer, logger: logger.Named("bus")}
}

// PublishOnboardingCompleted publishes the outcome of an onboarding run,
// keyed by customer so a customer's events stay ordered.
func (mb *MessageBus) PublishOnboardingCompleted(ctx context.Context, event *OnboardingCompletedMessage) error {
	mb.logger.Debug("Publishing onboarding event",
		zap.String("customer_id", event.CustomerID.String()),
		zap.String("final_status", event.FinalStatus))

	return mb.publish(ctx, event.Type, event.CustomerID.String(), event)
}

// PublishBatchCompleted publishes a periodic job summary
func (mb *MessageBus) PublishBatchCompleted(ctx context.Context, event *BatchCompletedMessage) error {
	return mb.publish(ctx, event.Type, event.MessageID, event)
}

func (mb *MessageBus) publish(ctx context.Context, t MessageType, key string, event any) error {
	topic := GetTopic(t)
	if err := mb.producer.Publish(ctx, topic, key, event); err != nil {
		metrics.EventsPublished.WithLabelValues(string(topic), "error").Inc()
		return err
	}
	metrics.EventsPublished.WithLabelValues(string(topic), "ok").Inc()
	return nil
}

// Close closes the underlying producer
func (mb *MessageBus) Close() error {
	return mb.producer.Close()
}
