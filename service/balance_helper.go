package service

import (
	"context"
	"errors"
	"fmt"

	"colorgame/events"
	"colorgame/models"

	"github.com/shopspring/decimal"
)

// RecordBalanceChange records a balance history entry and emits appropriate events.
// This is the single entry point for all balance changes in the system.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	if history.TransactionType == models.TransactionTypeInitial {
		if username, ok := history.TransactionMetadata["username"].(string); ok {
			uow.EventBus().Publish(events.UserCreatedEvent{
				UserID:         history.UserID,
				Username:       username,
				InitialBalance: history.BalanceAfter,
			})
		}
	}

	return nil
}

// balanceChange describes one signed adjustment to a user's balance
type balanceChange struct {
	userID      int64
	delta       decimal.Decimal
	txType      models.TransactionType
	metadata    map[string]any
	relatedID   *int64
	relatedType *models.RelatedType
}

// applyBalanceChange adjusts the balance with a single atomic delta and
// records the matching history entry. The before balance is derived from
// the adjusted row, so no read-modify-write happens here.
func applyBalanceChange(ctx context.Context, uow UnitOfWork, change balanceChange) (*models.User, error) {
	user, err := uow.UserRepository().AdjustBalance(ctx, change.userID, change.delta)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to adjust balance for user %d: %w", change.userID, err)
	}

	history := &models.BalanceHistory{
		UserID:              change.userID,
		BalanceBefore:       user.Balance.Sub(change.delta),
		BalanceAfter:        user.Balance,
		ChangeAmount:        change.delta,
		TransactionType:     change.txType,
		TransactionMetadata: change.metadata,
		RelatedID:           change.relatedID,
		RelatedType:         change.relatedType,
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}

	return user, nil
}

// pageBounds converts 1-based page/limit query values into limit/offset
func pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return limit, (page - 1) * limit
}
