package memory

import (
	"context"
	"fmt"

	"colorgame/models"
	"colorgame/service"

	"github.com/shopspring/decimal"
)

type userRepository struct {
	uow *unitOfWork
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := r.uow.store.users[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(user), nil
}

func (r *userRepository) Create(ctx context.Context, id int64, username string, initialBalance decimal.Decimal) (*models.User, error) {
	s := r.uow.store
	if _, exists := s.users[id]; exists {
		return nil, nil
	}

	now := s.clock.Now().UTC()
	user := &models.User{
		ID:        id,
		Username:  username,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[id] = user
	r.uow.record(func() {
		delete(s.users, id)
	})
	return cloneUser(user), nil
}

func (r *userRepository) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.User, error) {
	s := r.uow.store
	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, service.ErrUserNotFound)
	}

	newBalance := user.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("have %s, need %s: %w", user.Balance, delta.Neg(), service.ErrInsufficientBalance)
	}

	previous := cloneUser(user)
	user.Balance = newBalance
	user.UpdatedAt = s.clock.Now().UTC()
	r.uow.record(func() {
		s.users[id] = previous
	})
	return cloneUser(user), nil
}
