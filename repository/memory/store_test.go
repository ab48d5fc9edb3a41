package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"colorgame/events"
	"colorgame/models"
	"colorgame/service"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T) (service.UnitOfWorkFactory, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	return NewUnitOfWorkFactory(NewStore(clk), events.NewBus()), clk
}

func inWork(t *testing.T, factory service.UnitOfWorkFactory, fn func(uow service.UnitOfWork)) {
	t.Helper()
	uow := factory.Create()
	require.NoError(t, uow.Begin(context.Background()))
	defer uow.Rollback()
	fn(uow)
	require.NoError(t, uow.Commit())
}

func TestUnitOfWork_RollbackRevertsAllChanges(t *testing.T) {
	factory, clk := newTestFactory(t)
	ctx := context.Background()

	inWork(t, factory, func(uow service.UnitOfWork) {
		_, err := uow.UserRepository().Create(ctx, 1, "alice", decimal.NewFromInt(100))
		require.NoError(t, err)
	})

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	round, err := uow.RoundRepository().Create(ctx, clk.Now(), clk.Now().Add(3*time.Minute))
	require.NoError(t, err)
	require.NoError(t, uow.BetRepository().Create(ctx, &models.Bet{UserID: 1, PeriodID: round.ID, Type: models.BetTypeColor, Value: "red", Amount: decimal.NewFromInt(10)}))
	_, err = uow.UserRepository().AdjustBalance(ctx, 1, decimal.NewFromInt(-10))
	require.NoError(t, err)
	require.NoError(t, uow.TransactionRepository().Create(ctx, &models.Transaction{UserID: 1, Type: models.TransactionKindDeposit, Amount: decimal.NewFromInt(1)}))
	require.NoError(t, uow.Rollback())

	inWork(t, factory, func(uow service.UnitOfWork) {
		active, err := uow.RoundRepository().GetActive(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		user, err := uow.UserRepository().GetByID(ctx, 1)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(100).Equal(user.Balance))

		bets, err := uow.BetRepository().GetByUser(ctx, 1, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, bets)

		txs, err := uow.TransactionRepository().GetByUser(ctx, 1, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestUserRepository_AdjustBalance(t *testing.T) {
	factory, _ := newTestFactory(t)
	ctx := context.Background()

	inWork(t, factory, func(uow service.UnitOfWork) {
		users := uow.UserRepository()
		_, err := users.Create(ctx, 7, "bob", decimal.NewFromInt(50))
		require.NoError(t, err)

		again, err := users.Create(ctx, 7, "bob", decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.Nil(t, again)

		user, err := users.AdjustBalance(ctx, 7, decimal.RequireFromString("-49.99"))
		require.NoError(t, err)
		assert.Equal(t, "0.01", user.Balance.StringFixed(2))

		_, err = users.AdjustBalance(ctx, 7, decimal.RequireFromString("-0.02"))
		assert.True(t, errors.Is(err, service.ErrInsufficientBalance))

		user, err = users.GetByID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "0.01", user.Balance.StringFixed(2))

		_, err = users.AdjustBalance(ctx, 99, decimal.NewFromInt(1))
		assert.True(t, errors.Is(err, service.ErrUserNotFound))
	})
}

func TestRoundRepository_SetOutcomeOnce(t *testing.T) {
	factory, clk := newTestFactory(t)
	ctx := context.Background()
	outcome := models.Outcome{Number: 4, Colors: models.ColorSet{models.ColorGreen}, Price: decimal.RequireFromString("101.25")}

	var roundID string
	inWork(t, factory, func(uow service.UnitOfWork) {
		round, err := uow.RoundRepository().Create(ctx, clk.Now(), clk.Now().Add(3*time.Minute))
		require.NoError(t, err)
		roundID = round.ID

		_, err = uow.RoundRepository().Create(ctx, clk.Now().Add(3*time.Minute), clk.Now().Add(6*time.Minute))
		assert.Error(t, err, "only one round may be active")
	})

	inWork(t, factory, func(uow service.UnitOfWork) {
		settled, err := uow.RoundRepository().SetOutcome(ctx, roundID, outcome)
		require.NoError(t, err)
		assert.False(t, settled.IsActive)
		assert.Equal(t, 4, *settled.Number)

		_, err = uow.RoundRepository().SetOutcome(ctx, roundID, outcome)
		assert.True(t, errors.Is(err, service.ErrDuplicateSettlement))

		_, err = uow.RoundRepository().SetOutcome(ctx, "missing", outcome)
		assert.True(t, errors.Is(err, service.ErrRoundNotFound))

		active, err := uow.RoundRepository().GetActive(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)
	})
}

func TestRoundRepository_HistoryNewestFirst(t *testing.T) {
	factory, clk := newTestFactory(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		start := clk.Now().Add(time.Duration(i) * 4 * time.Minute)
		inWork(t, factory, func(uow service.UnitOfWork) {
			round, err := uow.RoundRepository().Create(ctx, start, start.Add(3*time.Minute))
			require.NoError(t, err)
			_, err = uow.RoundRepository().SetOutcome(ctx, round.ID, models.Outcome{Number: i, Colors: service.DeriveColors(i)})
			require.NoError(t, err)
			ids = append(ids, round.ID)
		})
	}

	inWork(t, factory, func(uow service.UnitOfWork) {
		history, err := uow.RoundRepository().GetHistory(ctx, 2, 0)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, ids[2], history[0].ID)
		assert.Equal(t, ids[1], history[1].ID)

		history, err = uow.RoundRepository().GetHistory(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, ids[0], history[0].ID)
	})
}

func TestBetRepository_SetResultOnce(t *testing.T) {
	factory, _ := newTestFactory(t)
	ctx := context.Background()

	inWork(t, factory, func(uow service.UnitOfWork) {
		bet := &models.Bet{UserID: 1, PeriodID: "202403090", Type: models.BetTypeNumber, Value: "7", Amount: decimal.NewFromInt(5)}
		require.NoError(t, uow.BetRepository().Create(ctx, bet))
		assert.NotZero(t, bet.ID)

		require.NoError(t, uow.BetRepository().SetResult(ctx, bet.ID, models.BetResultLoss, decimal.Zero))
		err := uow.BetRepository().SetResult(ctx, bet.ID, models.BetResultWin, decimal.NewFromInt(45))
		assert.True(t, errors.Is(err, service.ErrDuplicateSettlement))

		bets, err := uow.BetRepository().GetByRound(ctx, "202403090")
		require.NoError(t, err)
		require.Len(t, bets, 1)
		assert.Equal(t, models.BetResultLoss, *bets[0].Result)
	})
}

func TestUnitOfWork_BeginHonoursContext(t *testing.T) {
	factory, _ := newTestFactory(t)

	holder := factory.Create()
	require.NoError(t, holder.Begin(context.Background()))
	defer holder.Rollback()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := factory.Create().Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
