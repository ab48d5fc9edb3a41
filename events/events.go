package events

import (
	"context"
	"sync"

	"colorgame/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange EventType = "balance_change"
	EventTypeUserCreated   EventType = "user_created"
	EventTypeBetPlaced     EventType = "bet_placed"
	EventTypeBetSettled    EventType = "bet_settled"
	EventTypeRoundSettled  EventType = "round_settled"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64                  `json:"userId"`
	OldBalance      decimal.Decimal        `json:"oldBalance"`
	NewBalance      decimal.Decimal        `json:"newBalance"`
	TransactionType models.TransactionType `json:"transactionType"`
	ChangeAmount    decimal.Decimal        `json:"changeAmount"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent represents a new user creation
type UserCreatedEvent struct {
	UserID         int64           `json:"userId"`
	Username       string          `json:"username"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// BetPlacedEvent represents a bet accepted into an open round
type BetPlacedEvent struct {
	BetID    int64           `json:"betId"`
	UserID   int64           `json:"userId"`
	PeriodID string          `json:"periodId"`
	BetType  models.BetType  `json:"type"`
	Value    string          `json:"value"`
	Amount   decimal.Decimal `json:"amount"`
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

// BetSettledEvent represents a bet that received its result
type BetSettledEvent struct {
	BetID    int64            `json:"betId"`
	UserID   int64            `json:"userId"`
	PeriodID string           `json:"periodId"`
	Result   models.BetResult `json:"result"`
	Payout   decimal.Decimal  `json:"payout"`
}

func (e BetSettledEvent) Type() EventType {
	return EventTypeBetSettled
}

// RoundSettledEvent represents a round whose outcome and bets were settled
type RoundSettledEvent struct {
	PeriodID     string          `json:"periodId"`
	Outcome      models.Outcome  `json:"outcome"`
	BetCount     int             `json:"betCount"`
	Winners      int             `json:"winners"`
	TotalStaked  decimal.Decimal `json:"totalStaked"`
	TotalPaidOut decimal.Decimal `json:"totalPaidOut"`
}

func (e RoundSettledEvent) Type() EventType {
	return EventTypeRoundSettled
}

// AllEventTypes lists every event type emitted by the services
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeUserCreated,
		EventTypeBetPlaced,
		EventTypeBetSettled,
		EventTypeRoundSettled,
	}
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// Emit publishes an event to all registered handlers. Handlers run on their
// own goroutines; a panicking handler is logged and does not affect others.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events published inside a unit of work until the
// work commits. Flush forwards them to the underlying bus.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Queued event on transactional bus")
	b.pending = append(b.pending, e)
}

// Pending returns the number of queued events
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}

// Flush is called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Emission outlives the request that committed, so detach from its context.
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		if b.real != nil {
			b.real.Emit(eventCtx, ev)
		}
	}
	log.WithField("eventCount", len(b.pending)).Debug("Flushed transactional bus")
	b.pending = nil
	return nil
}

// Discard drops queued events after a rollback.
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
