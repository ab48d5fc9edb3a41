package service_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"colorgame/models"
	"colorgame/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func newCoordinator(h *harness, cfg service.LifecycleConfig) (*service.RoundCoordinator, *recordingObserver) {
	coordinator := service.NewRoundCoordinator(
		h.factory,
		service.NewOutcomeGenerator(rand.New(rand.NewPCG(1, 2))),
		service.NewSettlementService(),
		h.clock,
		cfg,
		nil,
	)
	observer := &recordingObserver{}
	coordinator.AddObserver(observer)
	return coordinator, observer
}

func settled(c *service.RoundCoordinator) func() bool {
	return func() bool {
		round := c.Snapshot()
		return round != nil && round.IsSettled()
	}
}

func TestRoundCoordinator_FullCycle(t *testing.T) {
	h := newHarness(t)
	coordinator, observer := newCoordinator(h, service.DefaultLifecycleConfig())
	ctx := context.Background()

	require.NoError(t, coordinator.Start(ctx))
	defer coordinator.Stop()

	first := coordinator.Snapshot()
	require.NotNil(t, first)
	assert.Equal(t, "20240309600", first.ID)
	assert.Equal(t, T0.Add(180*time.Second), first.EndTime)
	assert.Len(t, observer.ofType(models.MessagePeriodStart), 1)

	state := coordinator.State()
	assert.Equal(t, models.PhaseOpen, state.Phase)
	assert.Equal(t, int64(180000), state.RemainingMs)

	h.clock.Add(160 * time.Second)
	assert.Equal(t, models.PhaseLocked, coordinator.State().Phase)

	h.clock.Add(20 * time.Second)
	require.Eventually(t, settled(coordinator), waitFor, 5*time.Millisecond)

	closed := coordinator.Snapshot()
	assert.Equal(t, first.ID, closed.ID)
	assert.False(t, closed.IsActive)
	assert.Equal(t, service.DeriveColors(*closed.Number), closed.Color)
	assert.Equal(t, models.PhaseCooldown, coordinator.State().Phase)
	require.Eventually(t, func() bool { return len(observer.ofType(models.MessagePeriodEnd)) == 1 }, waitFor, 5*time.Millisecond)

	h.clock.Add(30 * time.Second)
	require.Eventually(t, func() bool {
		round := coordinator.Snapshot()
		return round != nil && round.IsActive
	}, waitFor, 5*time.Millisecond)

	second := coordinator.Snapshot()
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, T0.Add(210*time.Second), second.StartTime)
	assert.Len(t, observer.ofType(models.MessagePeriodStart), 2)

	history, err := coordinator.GetHistory(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
}

func TestRoundCoordinator_CloseRoundIsIdempotent(t *testing.T) {
	h := newHarness(t)
	coordinator, observer := newCoordinator(h, service.DefaultLifecycleConfig())
	ctx := context.Background()

	require.NoError(t, coordinator.Start(ctx))
	defer coordinator.Stop()
	roundID := coordinator.Snapshot().ID

	summary, err := coordinator.CloseRound(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, roundID, summary.PeriodID)

	again, err := coordinator.CloseRound(ctx, roundID)
	assert.Nil(t, again)
	assert.True(t, errors.Is(err, service.ErrDuplicateSettlement))

	_, err = coordinator.CloseRound(ctx, "19700101")
	assert.True(t, errors.Is(err, service.ErrRoundNotFound))

	assert.Len(t, observer.ofType(models.MessagePeriodEnd), 1)

	// the close timer for the settled round must not produce a second periodEnd
	h.clock.Add(180 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, observer.ofType(models.MessagePeriodEnd), 1)
}

func TestRoundCoordinator_EarlyCloseRejectsLateBets(t *testing.T) {
	h := newHarness(t)
	coordinator, _ := newCoordinator(h, service.DefaultLifecycleConfig())
	ctx := context.Background()

	_, err := service.NewUserService(h.factory, decimal.NewFromInt(100)).GetOrCreateUser(ctx, 1, "player-1")
	require.NoError(t, err)
	betting := service.NewBettingService(h.factory, h.clock, 30*time.Second, nil)

	require.NoError(t, coordinator.Start(ctx))
	defer coordinator.Stop()

	_, err = coordinator.CloseRound(ctx, coordinator.Snapshot().ID)
	require.NoError(t, err)

	_, err = betting.PlaceBet(ctx, service.PlaceBetRequest{UserID: 1, Type: models.BetTypeColor, Value: "red", Amount: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, service.ErrBettingClosed))
}

func TestRoundCoordinator_BalanceConservation(t *testing.T) {
	h := newHarness(t)
	coordinator, _ := newCoordinator(h, service.DefaultLifecycleConfig())
	ctx := context.Background()

	users := service.NewUserService(h.factory, decimal.NewFromInt(1000))
	betting := service.NewBettingService(h.factory, h.clock, 30*time.Second, nil)
	for _, id := range []int64{1, 2} {
		_, err := users.GetOrCreateUser(ctx, id, "player")
		require.NoError(t, err)
	}

	require.NoError(t, coordinator.Start(ctx))
	defer coordinator.Stop()

	requests := []service.PlaceBetRequest{
		{UserID: 1, Type: models.BetTypeColor, Value: "green", Amount: decimal.NewFromInt(10)},
		{UserID: 1, Type: models.BetTypeColor, Value: "red", Amount: decimal.NewFromInt(10)},
		{UserID: 1, Type: models.BetTypeColor, Value: "violet", Amount: decimal.RequireFromString("2.50")},
		{UserID: 2, Type: models.BetTypeNumber, Value: "0", Amount: decimal.NewFromInt(3)},
		{UserID: 2, Type: models.BetTypeNumber, Value: "5", Amount: decimal.NewFromInt(4)},
		{UserID: 2, Type: models.BetTypeNumber, Value: "8", Amount: decimal.NewFromInt(5)},
	}
	var bets []*models.Bet
	for _, req := range requests {
		bet, err := betting.PlaceBet(ctx, req)
		require.NoError(t, err)
		bets = append(bets, bet)
	}

	h.clock.Add(180 * time.Second)
	require.Eventually(t, settled(coordinator), waitFor, 5*time.Millisecond)
	outcome := coordinator.Snapshot().Outcome()
	require.NotNil(t, outcome)

	expected := map[int64]decimal.Decimal{1: decimal.NewFromInt(1000), 2: decimal.NewFromInt(1000)}
	for _, bet := range bets {
		_, payout := service.EvaluateBet(bet, *outcome)
		expected[bet.UserID] = expected[bet.UserID].Sub(bet.Amount).Add(payout)
	}

	for id, want := range expected {
		user := h.user(t, id)
		assert.True(t, want.Equal(user.Balance), "user %d: want %s got %s", id, want, user.Balance)

		h.inWork(t, func(uow service.UnitOfWork) {
			history, err := uow.BalanceHistoryRepository().GetByUser(ctx, id, 0)
			require.NoError(t, err)
			sum := decimal.Zero
			for _, entry := range history {
				sum = sum.Add(entry.ChangeAmount)
			}
			assert.True(t, sum.Equal(user.Balance), "history for user %d sums to %s", id, sum)
		})
	}

	settledBets, err := betting.GetBetHistory(ctx, 1, 1, 10)
	require.NoError(t, err)
	for _, bet := range settledBets {
		assert.True(t, bet.IsSettled())
	}
}

func TestRoundCoordinator_ResumesPastDueRound(t *testing.T) {
	h := newHarness(t)
	stale := h.openRound(t, T0.Add(-5*time.Minute), 180*time.Second)

	coordinator, observer := newCoordinator(h, service.DefaultLifecycleConfig())
	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()

	assert.Equal(t, stale.ID, coordinator.Snapshot().ID)
	assert.Equal(t, models.PhaseSettling, coordinator.State().Phase)
	assert.Empty(t, observer.ofType(models.MessagePeriodStart))

	h.clock.Add(0)
	require.Eventually(t, settled(coordinator), waitFor, 5*time.Millisecond)
	assert.Equal(t, stale.ID, coordinator.Snapshot().ID)
}

func TestRoundCoordinator_RetriesFailedClose(t *testing.T) {
	h := newHarness(t)
	cfg := service.DefaultLifecycleConfig()
	cfg.SettlementRetryInterval = 10 * time.Second
	coordinator, _ := newCoordinator(h, cfg)

	require.NoError(t, coordinator.Start(context.Background()))
	defer coordinator.Stop()
	roundID := coordinator.Snapshot().ID

	h.factory.failing.Store(true)
	h.clock.Add(180 * time.Second)
	require.Eventually(t, func() bool { return h.factory.failures.Load() > 0 }, waitFor, 5*time.Millisecond)

	// let the failed attempt finish re-arming before the store recovers
	time.Sleep(20 * time.Millisecond)
	assert.False(t, coordinator.Snapshot().IsSettled())
	h.factory.failing.Store(false)

	h.clock.Add(10 * time.Second)
	require.Eventually(t, settled(coordinator), waitFor, 5*time.Millisecond)
	assert.Equal(t, roundID, coordinator.Snapshot().ID)
}

func TestRoundCoordinator_NoRetryLeavesRoundUnsettled(t *testing.T) {
	h := newHarness(t)
	coordinator, _ := newCoordinator(h, service.DefaultLifecycleConfig())
	ctx := context.Background()

	require.NoError(t, coordinator.Start(ctx))
	defer coordinator.Stop()
	roundID := coordinator.Snapshot().ID

	h.factory.failing.Store(true)
	h.clock.Add(180 * time.Second)
	require.Eventually(t, func() bool { return h.factory.failures.Load() > 0 }, waitFor, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	h.factory.failing.Store(false)

	h.clock.Add(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, coordinator.Snapshot().IsSettled())

	// an operator re-drives the close
	_, err := coordinator.CloseRound(ctx, roundID)
	require.NoError(t, err)
	assert.True(t, coordinator.Snapshot().IsSettled())
}

func concurrentBet(userID int64, i int) service.PlaceBetRequest {
	if i%2 == 0 {
		colors := []string{"red", "green", "violet"}
		return service.PlaceBetRequest{UserID: userID, Type: models.BetTypeColor, Value: colors[i%3], Amount: decimal.NewFromInt(1)}
	}
	return service.PlaceBetRequest{UserID: userID, Type: models.BetTypeNumber, Value: strconv.Itoa(i % 10), Amount: decimal.NewFromInt(2)}
}

func TestRoundCoordinator_ConcurrentCloseAndBets(t *testing.T) {
	h := newHarness(t)
	coordinator, observer := newCoordinator(h, service.DefaultLifecycleConfig())
	ctx := context.Background()

	const players = 20
	const betsEach = 10
	initial := decimal.NewFromInt(1000)

	users := service.NewUserService(h.factory, initial)
	betting := service.NewBettingService(h.factory, h.clock, 30*time.Second, nil)
	for id := int64(1); id <= players; id++ {
		_, err := users.GetOrCreateUser(ctx, id, "player")
		require.NoError(t, err)
	}

	require.NoError(t, coordinator.Start(ctx))
	defer coordinator.Stop()
	roundID := coordinator.Snapshot().ID

	var (
		mu       sync.Mutex
		accepted []*models.Bet
		closes   atomic.Int32
		wg       sync.WaitGroup
	)
	for id := int64(1); id <= players; id++ {
		bet, err := betting.PlaceBet(ctx, concurrentBet(id, 0))
		require.NoError(t, err)
		accepted = append(accepted, bet)
	}

	start := make(chan struct{})
	for id := int64(1); id <= players; id++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			for i := 1; i <= betsEach; i++ {
				bet, err := betting.PlaceBet(ctx, concurrentBet(id, i))
				if err != nil {
					assert.ErrorIs(t, err, service.ErrBettingClosed)
					continue
				}
				mu.Lock()
				accepted = append(accepted, bet)
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			_, err := coordinator.CloseRound(ctx, roundID)
			if err != nil {
				assert.ErrorIs(t, err, service.ErrDuplicateSettlement)
				return
			}
			closes.Add(1)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), closes.Load())
	assert.Len(t, observer.ofType(models.MessagePeriodEnd), 1)

	closed := coordinator.Snapshot()
	require.Equal(t, roundID, closed.ID)
	outcome := closed.Outcome()
	require.NotNil(t, outcome)

	h.inWork(t, func(uow service.UnitOfWork) {
		bets, err := uow.BetRepository().GetByRound(ctx, roundID)
		require.NoError(t, err)
		assert.Len(t, bets, len(accepted))
		for _, bet := range bets {
			assert.True(t, bet.IsSettled(), "bet %d left unsettled", bet.ID)
		}
	})

	expected := make(map[int64]decimal.Decimal, players)
	for id := int64(1); id <= players; id++ {
		expected[id] = initial
	}
	for _, bet := range accepted {
		assert.Equal(t, roundID, bet.PeriodID)
		_, payout := service.EvaluateBet(bet, *outcome)
		expected[bet.UserID] = expected[bet.UserID].Sub(bet.Amount).Add(payout)
	}

	wantTotal, gotTotal := decimal.Zero, decimal.Zero
	for id, want := range expected {
		got := h.user(t, id).Balance
		assert.True(t, want.Equal(got), "user %d: want %s got %s", id, want, got)
		wantTotal = wantTotal.Add(want)
		gotTotal = gotTotal.Add(got)
	}
	assert.True(t, wantTotal.Equal(gotTotal), "total: want %s got %s", wantTotal, gotTotal)
}

func TestRoundCoordinator_OperatorCloseDuringFailedTimerClose(t *testing.T) {
	h := newHarness(t)
	cfg := service.DefaultLifecycleConfig()
	cfg.SettlementRetryInterval = 10 * time.Second
	coordinator, observer := newCoordinator(h, cfg)
	ctx := context.Background()

	require.NoError(t, coordinator.Start(ctx))
	defer coordinator.Stop()
	roundID := coordinator.Snapshot().ID

	h.factory.hold = make(chan struct{})
	h.factory.entered = make(chan struct{}, 1)
	h.factory.failing.Store(true)
	h.clock.Add(180 * time.Second)

	select {
	case <-h.factory.entered:
	case <-time.After(waitFor):
		t.Fatal("close timer did not reach the store")
	}

	// the operator close queues behind the failing timer close
	done := make(chan error, 1)
	go func() {
		_, err := coordinator.CloseRound(ctx, roundID)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	h.factory.failing.Store(false)
	close(h.factory.hold)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("operator close did not finish")
	}
	assert.Len(t, observer.ofType(models.MessagePeriodEnd), 1)

	// the cooldown armed by the operator close still opens the next round
	h.clock.Add(30 * time.Second)
	require.Eventually(t, func() bool {
		round := coordinator.Snapshot()
		return round != nil && round.IsActive && round.ID != roundID
	}, waitFor, 5*time.Millisecond)
	assert.Len(t, observer.ofType(models.MessagePeriodStart), 2)
}
