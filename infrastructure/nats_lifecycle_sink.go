package infrastructure

import (
	"context"
	"time"

	"colorgame/broadcast"

	log "github.com/sirupsen/logrus"
)

const lifecyclePublishTimeout = 5 * time.Second

// NATSLifecycleSink is a hub sink that republishes periodStart and periodEnd
// on NATS. It queues like any other observer, so a slow broker never blocks
// the coordinator.
type NATSLifecycleSink struct {
	*broadcast.Outbox
	events *NATSEventPublisher
	done   chan struct{}
}

// NewNATSLifecycleSink creates the sink and starts its publish loop
func NewNATSLifecycleSink(publisher *NATSEventPublisher, bufferSize int) *NATSLifecycleSink {
	s := &NATSLifecycleSink{
		Outbox: broadcast.NewOutbox(bufferSize),
		events: publisher,
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// ID identifies the sink in hub logs
func (s *NATSLifecycleSink) ID() string {
	return "nats-lifecycle"
}

// Done is closed once the sink has drained after Close
func (s *NATSLifecycleSink) Done() <-chan struct{} {
	return s.done
}

func (s *NATSLifecycleSink) run() {
	defer close(s.done)

	for msg := range s.Messages() {
		subject, ok := s.events.subjectMapper.MapLifecycleToSubject(msg.Type)
		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), lifecyclePublishTimeout)
		err := s.events.publishPayload(ctx, subject, string(msg.Type), msg)
		cancel()
		if err != nil {
			fields := log.Fields{
				"type":  msg.Type,
				"error": err,
			}
			if msg.Period != nil {
				fields["period_id"] = msg.Period.ID
			}
			log.WithFields(fields).Error("Failed to publish lifecycle message")
		}
	}
}
