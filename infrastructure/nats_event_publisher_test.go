package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"colorgame/broadcast"
	"colorgame/events"
	"colorgame/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return nil
}

func (f *fakePublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordNATSMessagePublished(eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[eventType]++
}

func TestEventSubjectMapper(t *testing.T) {
	m := NewEventSubjectMapper("colorgame.")

	tests := []struct {
		event   events.Event
		subject string
	}{
		{events.BetPlacedEvent{}, "colorgame.bet.placed"},
		{events.BetSettledEvent{}, "colorgame.bet.settled"},
		{events.BalanceChangeEvent{}, "colorgame.balance.changed"},
		{events.RoundSettledEvent{}, "colorgame.round.settled"},
		{events.UserCreatedEvent{}, "colorgame.user.created"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.subject, m.MapEventToSubject(tt.event))
	}

	subject, ok := m.MapLifecycleToSubject(models.MessagePeriodStart)
	assert.True(t, ok)
	assert.Equal(t, "colorgame.period.start", subject)

	subject, ok = m.MapLifecycleToSubject(models.MessagePeriodEnd)
	assert.True(t, ok)
	assert.Equal(t, "colorgame.period.end", subject)

	_, ok = m.MapLifecycleToSubject(models.MessageGameState)
	assert.False(t, ok)

	assert.Equal(t, "COLORGAME_EVENTS", m.StreamName())
	assert.Equal(t, []string{"colorgame.>"}, m.GetAllSubjects())
	assert.Equal(t, "STAGING_GAME_EVENTS", NewEventSubjectMapper("staging.game").StreamName())
}

func TestNATSEventPublisher_PublishWrapsEnvelope(t *testing.T) {
	fake := &fakePublisher{}
	recorder := &countingRecorder{}
	p := NewNATSEventPublisher(fake, NewEventSubjectMapper("colorgame"), recorder)

	event := events.BetPlacedEvent{
		BetID:    3,
		UserID:   7,
		PeriodID: "20240309600",
		BetType:  models.BetTypeNumber,
		Value:    "7",
		Amount:   decimal.NewFromInt(5),
	}
	require.NoError(t, p.Publish(context.Background(), event))

	msgs := fake.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "colorgame.bet.placed", msgs[0].subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msgs[0].data, &envelope))
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, string(events.EventTypeBetPlaced), envelope.EventType)
	assert.Equal(t, "colorgame", envelope.SourceService)

	var payload events.BetPlacedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, event.PeriodID, payload.PeriodID)
	assert.True(t, event.Amount.Equal(payload.Amount))

	assert.Equal(t, 1, recorder.counts[string(events.EventTypeBetPlaced)])
}

func TestNATSEventPublisher_PublishError(t *testing.T) {
	fake := &fakePublisher{err: errors.New("no responders")}
	recorder := &countingRecorder{}
	p := NewNATSEventPublisher(fake, NewEventSubjectMapper("colorgame"), recorder)

	err := p.Publish(context.Background(), events.UserCreatedEvent{UserID: 1})
	assert.ErrorContains(t, err, "no responders")
	assert.Empty(t, recorder.counts)
}

func TestNATSEventPublisher_RelaysBusEvents(t *testing.T) {
	fake := &fakePublisher{}
	bus := events.NewBus()
	NewNATSEventPublisher(fake, NewEventSubjectMapper("colorgame"), nil).SubscribeTo(bus)

	bus.Emit(context.Background(), events.BalanceChangeEvent{UserID: 2, TransactionType: models.TransactionTypeDeposit})

	require.Eventually(t, func() bool { return len(fake.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "colorgame.balance.changed", fake.snapshot()[0].subject)
}

func TestNATSLifecycleSink_PublishesTransitionsOnly(t *testing.T) {
	fake := &fakePublisher{}
	p := NewNATSEventPublisher(fake, NewEventSubjectMapper("colorgame"), nil)

	round := &models.Round{
		ID:        "20240309600",
		StartTime: time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 3, 9, 10, 3, 0, 0, time.UTC),
		IsActive:  true,
	}
	hub := broadcast.NewHub(func() *models.Round { return round })
	sink := NewNATSLifecycleSink(p, 4)

	hub.Attach(sink) // gameState is not republished
	hub.Broadcast(models.MessagePeriodStart, round)

	require.Eventually(t, func() bool { return len(fake.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	msg := fake.snapshot()[0]
	assert.Equal(t, "colorgame.period.start", msg.subject)

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(msg.data, &envelope))
	assert.Equal(t, string(models.MessagePeriodStart), envelope.EventType)
	assert.Contains(t, string(envelope.Payload), `"id":"20240309600"`)

	hub.Detach(sink)
	select {
	case <-sink.Done():
	case <-time.After(time.Second):
		t.Fatal("sink did not stop after detach")
	}
}
