package service

import (
	"context"

	"campsite/pkg/kafka"
	"campsite/pkg/logger"
	"campsite/pkg/model"
)

const eventSchemaVersion = "1"

// EventPublisher announces committed changes to the active set.
type EventPublisher interface {
	Publish(ctx context.Context, event model.ReservationEvent) error
	Close() error
}

type kafkaEventPublisher struct {
	producer *kafka.Producer
	source   string
}

// NewKafkaEventPublisher publishes events keyed by reservation id, so the
// history of one reservation stays ordered within its partition.
func NewKafkaEventPublisher(producer *kafka.Producer, source string) EventPublisher {
	return &kafkaEventPublisher{producer: producer, source: source}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, event model.ReservationEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.ReservationID).
		WithEventID(event.EventID).
		WithEventType(event.Type).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(p.source).
		WithCorrelationID(logger.RequestIDFrom(ctx)).
		WithTimestamp(event.OccurredAt).
		WithValue(event).
		Build()
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *kafkaEventPublisher) Close() error {
	return p.producer.Close()
}

type noopEventPublisher struct{}

// NewNoopEventPublisher is used when no Kafka brokers are configured.
func NewNoopEventPublisher() EventPublisher {
	return noopEventPublisher{}
}

func (noopEventPublisher) Publish(context.Context, model.ReservationEvent) error { return nil }

func (noopEventPublisher) Close() error { return nil }
