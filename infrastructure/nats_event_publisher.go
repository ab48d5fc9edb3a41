package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"colorgame/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const sourceService = "colorgame"

// EventEnvelope wraps every payload published to NATS
type EventEnvelope struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"sourceService"`
	Payload       json.RawMessage `json:"payload"`
}

// PublishRecorder counts published messages by event type
type PublishRecorder interface {
	RecordNATSMessagePublished(eventType string)
}

// NATSEventPublisher relays committed domain events from the in-process bus to NATS
type NATSEventPublisher struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	recorder      PublishRecorder
}

// NewNATSEventPublisher creates a new NATS event publisher. recorder may be nil.
func NewNATSEventPublisher(publisher MessagePublisher, subjectMapper *EventSubjectMapper, recorder PublishRecorder) *NATSEventPublisher {
	return &NATSEventPublisher{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		recorder:      recorder,
	}
}

// SubscribeTo relays every domain event type emitted on bus
func (p *NATSEventPublisher) SubscribeTo(bus *events.Bus) {
	for _, eventType := range events.AllEventTypes() {
		bus.Subscribe(eventType, func(ctx context.Context, event events.Event) {
			if err := p.Publish(ctx, event); err != nil {
				log.WithFields(log.Fields{
					"eventType": event.Type(),
					"error":     err,
				}).Error("Failed to relay event to NATS")
			}
		})
	}
}

// Publish publishes an event to NATS using the appropriate subject
func (p *NATSEventPublisher) Publish(ctx context.Context, event events.Event) error {
	subject := p.subjectMapper.MapEventToSubject(event)
	return p.publishPayload(ctx, subject, string(event.Type()), event)
}

func (p *NATSEventPublisher) publishPayload(ctx context.Context, subject, eventType string, payload any) error {
	data, err := marshalEnvelope(eventType, payload)
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}
	if p.recorder != nil {
		p.recorder.RecordNATSMessagePublished(eventType)
	}

	log.WithFields(log.Fields{
		"eventType": eventType,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")
	return nil
}

func marshalEnvelope(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		SourceService: sourceService,
		Payload:       body,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}
