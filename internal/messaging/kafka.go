package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Aidin1998/kycengine/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer interface defines message publishing operations
type Producer interface {
	Publish(ctx context.Context, topic Topic, key string, message any) error
	Close() error
}

// KafkaProducer implements Producer interface with one writer per topic
type KafkaProducer struct {
	config  config.KafkaConfig
	writers map[Topic]*kafka.Writer
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewKafkaProducer creates a new Kafka producer. Writers connect lazily.
func NewKafkaProducer(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer requires at least one broker")
	}
	return &KafkaProducer{
		config:  cfg,
		writers: make(map[Topic]*kafka.Writer),
		logger:  logger.Named("kafka"),
	}, nil
}

// topicName applies the configured prefix, e.g. kyc.onboarding-events
func (p *KafkaProducer) topicName(topic Topic) string {
	if p.config.TopicPrefix == "" {
		return string(topic)
	}
	return p.config.TopicPrefix + "." + string(topic)
}

// getWriter returns or creates a writer for the specified topic
func (p *KafkaProducer) getWriter(topic Topic) *kafka.Writer {
	p.mu.RLock()
	writer, exists := p.writers[topic]
	p.mu.RUnlock()

	if exists {
		return writer
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check pattern
	if writer, exists := p.writers[topic]; exists {
		return writer
	}

	writer = &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        p.topicName(topic),
		Balancer:     &kafka.Hash{},
		BatchTimeout: p.config.BatchTimeout,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		Compression:  kafka.Snappy,
	}

	p.writers[topic] = writer
	return writer
}

// Publish publishes a single JSON message keyed by key
func (p *KafkaProducer) Publish(ctx context.Context, topic Topic, key string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	kafkaMsg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	return p.getWriter(topic).WriteMessages(ctx, kafkaMsg)
}

// Close closes the producer and all its writers
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for _, writer := range p.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
			p.logger.Error("Failed to close writer", zap.Error(err))
		}
	}
	return lastErr
}

// NopProducer drops every message. Used when Kafka is disabled.
type NopProducer struct{}

func (NopProducer) Publish(context.Context, Topic, string, any) error { return nil }

func (NopProducer) Close() error { return nil }
