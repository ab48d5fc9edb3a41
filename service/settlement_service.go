package service

import (
	"context"
	"fmt"
	"strconv"

	"colorgame/events"
	"colorgame/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// EvaluateBet decides a bet against an outcome. A color bet wins when its
// color is in the drawn set; a number bet wins on an exact match of the
// drawn digit. Winning payouts are stake times the bet's multiplier.
func EvaluateBet(bet *models.Bet, outcome models.Outcome) (models.BetResult, decimal.Decimal) {
	won := false
	switch bet.Type {
	case models.BetTypeColor:
		if c, err := models.ParseColor(bet.Value); err == nil {
			won = outcome.Colors.Contains(c)
		}
	case models.BetTypeNumber:
		won = bet.Value == strconv.Itoa(outcome.Number)
	}

	if !won {
		return models.BetResultLoss, decimal.Zero
	}

	multiplier := bet.Multiplier
	if multiplier == 0 {
		multiplier = models.MultiplierFor(bet.Type)
	}
	return models.BetResultWin, bet.Amount.Mul(decimal.NewFromInt(int64(multiplier)))
}

// SettlementService applies a settled round's outcome to its bets
type SettlementService struct{}

// NewSettlementService creates a new settlement service
func NewSettlementService() *SettlementService {
	return &SettlementService{}
}

// Settle processes every unsettled bet on round inside uow. The round must
// already carry its outcome. Round fields are never written here.
func (s *SettlementService) Settle(ctx context.Context, uow UnitOfWork, round *models.Round) (*models.SettlementSummary, error) {
	outcome := round.Outcome()
	if outcome == nil {
		return nil, fmt.Errorf("cannot settle round %s: %w", round.ID, ErrRoundNotSettled)
	}

	bets, err := uow.BetRepository().GetByRound(ctx, round.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets for round %s: %w", round.ID, err)
	}

	summary := &models.SettlementSummary{
		PeriodID:     round.ID,
		Outcome:      *outcome,
		TotalStaked:  decimal.Zero,
		TotalPaidOut: decimal.Zero,
	}

	for _, bet := range bets {
		if bet.IsSettled() {
			log.WithFields(log.Fields{
				"period_id": round.ID,
				"bet_id":    bet.ID,
			}).Warn("Bet already settled, leaving untouched")
			continue
		}

		result, payout := EvaluateBet(bet, *outcome)
		if err := uow.BetRepository().SetResult(ctx, bet.ID, result, payout); err != nil {
			return nil, fmt.Errorf("failed to record result for bet %d: %w", bet.ID, err)
		}

		if result == models.BetResultWin {
			if err := s.payWinner(ctx, uow, bet, payout); err != nil {
				return nil, err
			}
			summary.Winners++
			summary.TotalPaidOut = summary.TotalPaidOut.Add(payout)
		}

		uow.EventBus().Publish(events.BetSettledEvent{
			BetID:    bet.ID,
			UserID:   bet.UserID,
			PeriodID: round.ID,
			Result:   result,
			Payout:   payout,
		})

		summary.BetCount++
		summary.TotalStaked = summary.TotalStaked.Add(bet.Amount)
	}

	uow.EventBus().Publish(events.RoundSettledEvent{
		PeriodID:     summary.PeriodID,
		Outcome:      summary.Outcome,
		BetCount:     summary.BetCount,
		Winners:      summary.Winners,
		TotalStaked:  summary.TotalStaked,
		TotalPaidOut: summary.TotalPaidOut,
	})

	log.WithFields(log.Fields{
		"period_id": round.ID,
		"bets":      summary.BetCount,
		"winners":   summary.Winners,
		"paid_out":  summary.TotalPaidOut.String(),
	}).Info("Settled round bets")

	return summary, nil
}

func (s *SettlementService) payWinner(ctx context.Context, uow UnitOfWork, bet *models.Bet, payout decimal.Decimal) error {
	relatedID, relatedType := models.Related(bet.ID, models.RelatedTypeBet)
	_, err := applyBalanceChange(ctx, uow, balanceChange{
		userID: bet.UserID,
		delta:  payout,
		txType: models.TransactionTypeBetWin,
		metadata: map[string]any{
			"period_id": bet.PeriodID,
			"bet_type":  string(bet.Type),
			"bet_value": bet.Value,
		},
		relatedID:   relatedID,
		relatedType: relatedType,
	})
	if err != nil {
		return fmt.Errorf("failed to pay out bet %d: %w", bet.ID, err)
	}

	tx := &models.Transaction{
		UserID: bet.UserID,
		Type:   models.TransactionKindWin,
		Amount: payout,
	}
	if err := uow.TransactionRepository().Create(ctx, tx); err != nil {
		return fmt.Errorf("failed to record win transaction for bet %d: %w", bet.ID, err)
	}
	return nil
}
