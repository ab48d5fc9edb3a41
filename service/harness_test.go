package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"colorgame/events"
	"colorgame/models"
	"colorgame/repository/memory"
	"colorgame/service"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// T0 is the start of the first round in lifecycle tests
var T0 = time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)

type harness struct {
	clock   *clock.Mock
	store   *memory.Store
	factory *flakyFactory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(T0)
	store := memory.NewStore(clk)
	return &harness{
		clock:   clk,
		store:   store,
		factory: &flakyFactory{inner: memory.NewUnitOfWorkFactory(store, events.NewBus())},
	}
}

// openRound creates an active round directly in the store
func (h *harness) openRound(t *testing.T, start time.Time, d time.Duration) *models.Round {
	t.Helper()
	var round *models.Round
	h.inWork(t, func(uow service.UnitOfWork) {
		var err error
		round, err = uow.RoundRepository().Create(context.Background(), start, start.Add(d))
		require.NoError(t, err)
	})
	return round
}

func (h *harness) inWork(t *testing.T, fn func(uow service.UnitOfWork)) {
	t.Helper()
	uow := h.factory.Create()
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()
	fn(uow)
	require.NoError(t, uow.Commit())
}

func (h *harness) user(t *testing.T, id int64) *models.User {
	t.Helper()
	var user *models.User
	h.inWork(t, func(uow service.UnitOfWork) {
		var err error
		user, err = uow.UserRepository().GetByID(context.Background(), id)
		require.NoError(t, err)
	})
	require.NotNil(t, user)
	return user
}

// flakyFactory fails Begin while failing is set. When hold is set a failing
// Begin signals entered and waits for hold to close before returning.
type flakyFactory struct {
	inner    service.UnitOfWorkFactory
	failing  atomic.Bool
	failures atomic.Int32
	hold     chan struct{}
	entered  chan struct{}
}

func (f *flakyFactory) Create() service.UnitOfWork {
	return &flakyUnitOfWork{UnitOfWork: f.inner.Create(), factory: f}
}

type flakyUnitOfWork struct {
	service.UnitOfWork
	factory *flakyFactory
}

func (u *flakyUnitOfWork) Begin(ctx context.Context) error {
	if u.factory.failing.Load() {
		u.factory.failures.Add(1)
		if u.factory.hold != nil {
			u.factory.entered <- struct{}{}
			<-u.factory.hold
		}
		return errors.New("connection refused")
	}
	return u.UnitOfWork.Begin(ctx)
}

type notification struct {
	Type   models.LifecycleMessage
	Period *models.Round
}

// recordingObserver collects lifecycle notifications
type recordingObserver struct {
	mu       sync.Mutex
	received []notification
}

func (o *recordingObserver) Broadcast(messageType models.LifecycleMessage, round *models.Round) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.received = append(o.received, notification{Type: messageType, Period: round})
}

func (o *recordingObserver) ofType(messageType models.LifecycleMessage) []notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []notification
	for _, n := range o.received {
		if n.Type == messageType {
			out = append(out, n)
		}
	}
	return out
}
