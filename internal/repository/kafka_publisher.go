package repository

import (
	"context"
	"fmt"

	"MarketPulse/internal/domain/models"
	pkgkafka "MarketPulse/pkg/kafka"
)

// MessageWriter is the subset of the Kafka producer the publisher needs.
type MessageWriter interface {
	Publish(ctx context.Context, topic string, key []byte, value any) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaForecastPublisher emits forecast events keyed by product so every
// product's events stay ordered within a partition.
type KafkaForecastPublisher struct {
	producer MessageWriter
	topic    string
}

func NewKafkaForecastPublisher(p MessageWriter, topic string) *KafkaForecastPublisher {
	return &KafkaForecastPublisher{producer: p, topic: topic}
}

func (k *KafkaForecastPublisher) Publish(ctx context.Context, ev models.ForecastEvent) error {
	if err := k.producer.Publish(ctx, k.topic, []byte(ev.ProductID), ev); err != nil {
		return fmt.Errorf("publish forecast: %w", err)
	}
	return nil
}

// PublishBatch writes all events in one producer call.
func (k *KafkaForecastPublisher) PublishBatch(ctx context.Context, evs []models.ForecastEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(evs))
	for i, ev := range evs {
		msgs[i] = pkgkafka.Message{Key: []byte(ev.ProductID), Value: ev}
	}
	if err := k.producer.PublishBatch(ctx, k.topic, msgs); err != nil {
		return fmt.Errorf("publish %d forecasts: %w", len(evs), err)
	}
	return nil
}

func (k *KafkaForecastPublisher) Close() error {
	return k.producer.Close()
}
