package repository

import (
	"context"
	"fmt"
	"log/slog"

	"ozzus/bell-gateway/internal/domain"
	"ozzus/bell-gateway/internal/repository/kafka"
)

// EventRepository публикует события срабатывания звонков
type EventRepository interface {
	PublishRing(ctx context.Context, event domain.RingEvent) error
}

type KafkaEventRepository struct {
	producer *kafka.Producer
	log      *slog.Logger
}

func NewKafkaEventRepository(producer *kafka.Producer, log *slog.Logger) EventRepository {
	return &KafkaEventRepository{
		producer: producer,
		log:      log,
	}
}

func (r *KafkaEventRepository) PublishRing(ctx context.Context, event domain.RingEvent) error {
	if err := r.producer.PublishEvent(ctx, event.ID, event); err != nil {
		return fmt.Errorf("failed to publish ring event: %w", err)
	}

	r.log.Debug("ring event published",
		"event_id", event.ID,
		"topic", r.producer.Topic(),
		"source", event.Source,
	)
	return nil
}

// NoopEventRepository is used when no Kafka brokers are configured.
type NoopEventRepository struct{}

func (NoopEventRepository) PublishRing(context.Context, domain.RingEvent) error {
	return nil
}
