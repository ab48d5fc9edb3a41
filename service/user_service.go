package service

import (
	"context"
	"fmt"

	"colorgame/models"

	"github.com/shopspring/decimal"
)

// userService implements the UserService interface
type userService struct {
	uowFactory      UnitOfWorkFactory
	startingBalance decimal.Decimal
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, startingBalance decimal.Decimal) UserService {
	return &userService{
		uowFactory:      uowFactory,
		startingBalance: startingBalance,
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with the starting balance
func (s *userService) GetOrCreateUser(ctx context.Context, userID int64, username string) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if user != nil {
		return user, commitWork(uow)
	}

	user, err = uow.UserRepository().Create(ctx, userID, username, s.startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if user == nil {
		// Lost a race with a concurrent first request for the same id.
		user, err = uow.UserRepository().GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload user: %w", err)
		}
		return user, commitWork(uow)
	}

	history := &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   decimal.Zero,
		BalanceAfter:    s.startingBalance,
		ChangeAmount:    s.startingBalance,
		TransactionType: models.TransactionTypeInitial,
		TransactionMetadata: map[string]any{
			"username": username,
		},
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record initial balance: %w", err)
	}

	if err := commitWork(uow); err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a user
func (s *userService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := commitWork(uow); err != nil {
		return nil, err
	}
	return user, nil
}
