package action

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Zereker/reservation/internal/domain"
	"github.com/Zereker/reservation/pkg/log"
	"github.com/Zereker/reservation/pkg/mq"
)

// EventPublisher delivers reservation events to a message queue.
// Delivery is best effort: failures are logged and swallowed.
type EventPublisher struct {
	logger *slog.Logger
	queue  mq.MessageQueue
	prefix string
	clock  domain.Clock
}

// NewEventPublisher publishes to "<prefix>.created" and "<prefix>.cancelled".
func NewEventPublisher(queue mq.MessageQueue, prefix string, clock domain.Clock) *EventPublisher {
	if prefix == "" {
		prefix = "reservation"
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	return &EventPublisher{
		logger: log.Logger("events"),
		queue:  queue,
		prefix: prefix,
		clock:  clock,
	}
}

// Topic returns the topic for an event type.
func (p *EventPublisher) Topic(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish sends an event for res. Events for the same room share a
// partition key where the queue supports one.
func (p *EventPublisher) Publish(eventType string, res domain.Reservation) {
	if p == nil || p.queue == nil {
		return
	}

	event := domain.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		OccurredAt:  p.clock.Now().UTC(),
		Reservation: res,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event failed", "type", eventType, "error", err)
		return
	}

	topic := p.Topic(eventType)
	if keyed, ok := p.queue.(mq.KeyedPublisher); ok {
		err = keyed.PublishWithKey(topic, res.RoomID, data)
	} else {
		err = p.queue.Publish(topic, data)
	}
	if err != nil {
		p.logger.Warn("publish event failed",
			"topic", topic,
			"room_id", res.RoomID,
			"id", res.ID,
			"error", err,
		)
		return
	}

	p.logger.Debug("event published", "topic", topic, "event_id", event.ID)
}
