package infrastructure

import (
	"fmt"
	"strings"

	"colorgame/events"
	"colorgame/models"
)

// EventSubjectMapper maps domain events and lifecycle messages to NATS subjects
// under a common prefix
type EventSubjectMapper struct {
	prefix string
}

// NewEventSubjectMapper creates a mapper for prefix, e.g. "colorgame"
func NewEventSubjectMapper(prefix string) *EventSubjectMapper {
	return &EventSubjectMapper{prefix: strings.Trim(prefix, ".")}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeBetPlaced:
		return m.subject("bet.placed")
	case events.EventTypeBetSettled:
		return m.subject("bet.settled")
	case events.EventTypeBalanceChange:
		return m.subject("balance.changed")
	case events.EventTypeRoundSettled:
		return m.subject("round.settled")
	case events.EventTypeUserCreated:
		return m.subject("user.created")
	default:
		return m.subject(fmt.Sprintf("unknown.%s", event.Type()))
	}
}

// MapLifecycleToSubject returns the subject for a lifecycle broadcast. The
// attach-time gameState is per-observer and has no subject.
func (m *EventSubjectMapper) MapLifecycleToSubject(messageType models.LifecycleMessage) (string, bool) {
	switch messageType {
	case models.MessagePeriodStart:
		return m.subject("period.start"), true
	case models.MessagePeriodEnd:
		return m.subject("period.end"), true
	default:
		return "", false
	}
}

// StreamName is the JetStream stream holding every subject under the prefix
func (m *EventSubjectMapper) StreamName() string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(m.prefix))
	return name + "_EVENTS"
}

// GetAllSubjects returns the subject filter for the stream
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{m.subject(">")}
}

func (m *EventSubjectMapper) subject(suffix string) string {
	return m.prefix + "." + suffix
}
