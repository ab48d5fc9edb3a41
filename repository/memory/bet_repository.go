package memory

import (
	"context"
	"fmt"

	"colorgame/models"
	"colorgame/service"

	"github.com/shopspring/decimal"
)

type betRepository struct {
	uow *unitOfWork
}

func (r *betRepository) Create(ctx context.Context, bet *models.Bet) error {
	s := r.uow.store

	s.nextBetID++
	bet.ID = s.nextBetID
	bet.CreatedAt = s.clock.Now().UTC()

	stored := cloneBet(bet)
	s.bets[bet.ID] = stored
	s.betsByRound[bet.PeriodID] = append(s.betsByRound[bet.PeriodID], bet.ID)
	s.betsByUser[bet.UserID] = append(s.betsByUser[bet.UserID], bet.ID)

	id, periodID, userID := bet.ID, bet.PeriodID, bet.UserID
	r.uow.record(func() {
		delete(s.bets, id)
		s.betsByRound[periodID] = s.betsByRound[periodID][:len(s.betsByRound[periodID])-1]
		s.betsByUser[userID] = s.betsByUser[userID][:len(s.betsByUser[userID])-1]
		s.nextBetID--
	})
	return nil
}

func (r *betRepository) GetByRound(ctx context.Context, periodID string) ([]*models.Bet, error) {
	s := r.uow.store
	ids := s.betsByRound[periodID]
	out := make([]*models.Bet, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneBet(s.bets[id]))
	}
	return out, nil
}

func (r *betRepository) SetResult(ctx context.Context, betID int64, result models.BetResult, payout decimal.Decimal) error {
	s := r.uow.store
	bet, ok := s.bets[betID]
	if !ok {
		return fmt.Errorf("bet %d not found", betID)
	}
	if bet.IsSettled() {
		return fmt.Errorf("bet %d: %w", betID, service.ErrDuplicateSettlement)
	}

	previous := cloneBet(bet)
	settledAt := s.clock.Now().UTC()
	bet.Result = &result
	bet.Payout = &payout
	bet.SettledAt = &settledAt

	r.uow.record(func() {
		s.bets[betID] = previous
	})
	return nil
}

func (r *betRepository) GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Bet, error) {
	s := r.uow.store
	ids := s.betsByUser[userID]

	// ids are in insertion order; walk backwards for newest first
	from, to := page(len(ids), limit, offset)
	out := make([]*models.Bet, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, cloneBet(s.bets[ids[len(ids)-1-i]]))
	}
	return out, nil
}
