// Package broadcast fans round lifecycle notifications out to attached sinks.
// Delivery is fire-and-forget: a sink that cannot take a message right away
// misses it and the round keeps going.
package broadcast

import (
	"sync"

	"colorgame/models"

	log "github.com/sirupsen/logrus"
)

// Message is the payload delivered to sinks and written to websocket clients
type Message struct {
	Type   models.LifecycleMessage `json:"type"`
	Period *models.Round           `json:"period"`
}

// Sink receives lifecycle messages. Deliver must not block; it returns false
// when the message was dropped.
type Sink interface {
	ID() string
	Deliver(msg Message) bool
	Close()
}

// Hub is the registry of attached sinks
type Hub struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	snapshot func() *models.Round
}

// NewHub creates a hub. snapshot supplies the round sent as gameState to
// newly attached sinks; it may return nil before the first round opens.
func NewHub(snapshot func() *models.Round) *Hub {
	return &Hub{
		sinks:    make(map[string]Sink),
		snapshot: snapshot,
	}
}

// Attach registers a sink and delivers the current gameState to it before any
// later broadcast can reach it.
func (h *Hub) Attach(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sinks[s.ID()] = s

	var current *models.Round
	if h.snapshot != nil {
		current = h.snapshot()
	}
	if !s.Deliver(Message{Type: models.MessageGameState, Period: current}) {
		log.WithField("sink_id", s.ID()).Debug("Sink not ready for gameState, skipped")
	}

	log.WithFields(log.Fields{
		"sink_id": s.ID(),
		"sinks":   len(h.sinks),
	}).Debug("Sink attached")
}

// Detach removes a sink and closes it. Detaching twice is a no-op.
func (h *Hub) Detach(s Sink) {
	h.mu.Lock()
	_, ok := h.sinks[s.ID()]
	delete(h.sinks, s.ID())
	remaining := len(h.sinks)
	h.mu.Unlock()

	if !ok {
		return
	}
	s.Close()

	log.WithFields(log.Fields{
		"sink_id": s.ID(),
		"sinks":   remaining,
	}).Debug("Sink detached")
}

// Broadcast delivers a lifecycle message to every attached sink, skipping
// sinks that are not ready.
func (h *Hub) Broadcast(messageType models.LifecycleMessage, round *models.Round) {
	msg := Message{Type: messageType, Period: round}

	h.mu.RLock()
	defer h.mu.RUnlock()

	skipped := 0
	for _, s := range h.sinks {
		if !s.Deliver(msg) {
			skipped++
		}
	}

	fields := log.Fields{
		"type":      messageType,
		"delivered": len(h.sinks) - skipped,
		"skipped":   skipped,
	}
	if round != nil {
		fields["period_id"] = round.ID
	}
	log.WithFields(fields).Debug("Broadcast lifecycle message")
}

// Count returns the number of attached sinks
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// Close detaches every sink
func (h *Hub) Close() {
	h.mu.Lock()
	sinks := h.sinks
	h.sinks = make(map[string]Sink)
	h.mu.Unlock()

	for _, s := range sinks {
		s.Close()
	}
}
