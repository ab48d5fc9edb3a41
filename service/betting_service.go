package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"colorgame/events"
	"colorgame/models"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

// bettingService implements the BettingService interface
type bettingService struct {
	uowFactory UnitOfWorkFactory
	clock      clock.Clock
	lockWindow time.Duration
	metrics    Metrics
}

// NewBettingService creates a new betting service
func NewBettingService(uowFactory UnitOfWorkFactory, clk clock.Clock, lockWindow time.Duration, metrics Metrics) BettingService {
	return &bettingService{
		uowFactory: uowFactory,
		clock:      clk,
		lockWindow: lockWindow,
		metrics:    metricsOrNoop(metrics),
	}
}

// PlaceBet records a bet on the active round and debits the stake. The lock
// window is checked against the stored end time before the request is
// validated, so any bet inside the window is rejected as closed.
func (s *bettingService) PlaceBet(ctx context.Context, req PlaceBetRequest) (*models.Bet, error) {
	uow := s.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	round, err := uow.RoundRepository().GetActiveForShare(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	if round == nil || round.BettingClosed(s.clock.Now(), s.lockWindow) {
		s.metrics.RecordBetRejected("closed")
		return nil, ErrBettingClosed
	}

	if err := validateBet(req); err != nil {
		s.metrics.RecordBetRejected("invalid")
		return nil, err
	}

	bet := &models.Bet{
		UserID:     req.UserID,
		PeriodID:   round.ID,
		Type:       req.Type,
		Value:      req.Value,
		Amount:     req.Amount,
		Multiplier: models.MultiplierFor(req.Type),
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	relatedID, relatedType := models.Related(bet.ID, models.RelatedTypeBet)
	_, err = applyBalanceChange(ctx, uow, balanceChange{
		userID: req.UserID,
		delta:  req.Amount.Neg(),
		txType: models.TransactionTypeBetStake,
		metadata: map[string]any{
			"period_id": round.ID,
			"bet_type":  string(req.Type),
			"bet_value": req.Value,
		},
		relatedID:   relatedID,
		relatedType: relatedType,
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			s.metrics.RecordBetRejected("insufficient_balance")
		}
		return nil, err
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		BetID:    bet.ID,
		UserID:   bet.UserID,
		PeriodID: bet.PeriodID,
		BetType:  bet.Type,
		Value:    bet.Value,
		Amount:   bet.Amount,
	})

	if err := commitWork(uow); err != nil {
		return nil, err
	}

	s.metrics.RecordBetPlaced(bet.Type)
	log.WithFields(log.Fields{
		"bet_id":    bet.ID,
		"user_id":   bet.UserID,
		"period_id": bet.PeriodID,
		"type":      bet.Type,
		"value":     bet.Value,
		"amount":    bet.Amount.String(),
	}).Debug("Bet placed")

	return bet, nil
}

// GetBetHistory returns a page of the user's bets, newest first
func (s *bettingService) GetBetHistory(ctx context.Context, userID int64, page, limit int) ([]*models.Bet, error) {
	limit, offset := pageBounds(page, limit)

	uow := s.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	bets, err := uow.BetRepository().GetByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get bet history for user %d: %w", userID, err)
	}

	if err := commitWork(uow); err != nil {
		return nil, err
	}
	return bets, nil
}

func validateBet(req PlaceBetRequest) error {
	switch req.Type {
	case models.BetTypeColor:
		if _, err := models.ParseColor(req.Value); err != nil {
			return newValidationError("value", "color must be red, green or violet")
		}
	case models.BetTypeNumber:
		if len(req.Value) != 1 || req.Value[0] < '0' || req.Value[0] > '9' {
			return newValidationError("value", "number must be a single digit 0-9")
		}
	default:
		return newValidationError("type", "must be color or number")
	}

	return validateAmount(req.Amount)
}
