package events

import (
	"context"

	"roombook/pkg/kafka"
	"roombook/pkg/logger"
)

// Topics carrying entity lifecycle events.
const (
	TopicReservations    = "roombook.reservations"
	TopicReservationsDLQ = "roombook.reservations.dlq"
)

// Event types published by the services.
const (
	TypeReservationAdmitted = "reservation.admitted"
	TypeReservationUpdated  = "reservation.updated"
	TypeReservationRemoved  = "reservation.removed"
	TypeRoomAssigned        = "room.assigned"
)

const schemaVersion = "1"

type producerAPI interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// Publisher emits lifecycle events after successful commits. A nil Publisher
// is a no-op so services run unchanged when eventing is disabled.
type Publisher struct {
	producer producerAPI
	log      *logger.Logger
	source   string
}

func NewPublisher(producer *kafka.Producer, log *logger.Logger, source string) *Publisher {
	return &Publisher{
		producer: producer,
		log:      log,
		source:   source,
	}
}

// Publish emits one event keyed by the given partition key. Publish failures
// are logged and swallowed; an admitted reservation is never rolled back
// because the event could not be written.
func (p *Publisher) Publish(ctx context.Context, eventType, key string, payload any) {
	if p == nil || p.producer == nil {
		return
	}

	msg := kafka.NewMessage().
		WithKey(key).
		WithEventType(eventType).
		WithSchemaVersion(schemaVersion).
		WithSource(p.source).
		WithValue(payload).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		p.log.Warn("Failed to publish event",
			"event_type", eventType,
			"key", key,
			"error", err,
		)
		return
	}

	p.log.Debug("Event published",
		"event_type", eventType,
		"key", key,
		"event_id", msg.GetEventID(),
	)
}
