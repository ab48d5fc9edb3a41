package repository

import (
	"context"
	"errors"
	"fmt"

	"colorgame/database"
	"colorgame/models"
	"colorgame/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, balance, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}

	return &user, nil
}

// Create creates a new user with the initial balance. A concurrent insert of
// the same id makes this return nil, nil.
func (r *UserRepository) Create(ctx context.Context, id int64, username string, initialBalance decimal.Decimal) (*models.User, error) {
	query := `
		INSERT INTO users (id, username, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, username, balance, created_at, updated_at
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, id, username, initialBalance).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user %d: %w", id, err)
	}

	return &user, nil
}

// AdjustBalance applies delta atomically, refusing to go below zero
func (r *UserRepository) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.User, error) {
	query := `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING id, username, balance, created_at, updated_at
	`

	var user models.User
	err := r.q.QueryRow(ctx, query, delta, id).Scan(
		&user.ID,
		&user.Username,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to adjust balance for user %d: %w", id, err)
	}

	// Check if user exists or has insufficient balance
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check user: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("user %d: %w", id, service.ErrUserNotFound)
	}
	return nil, fmt.Errorf("have %s, need %s: %w", existing.Balance, delta.Neg(), service.ErrInsufficientBalance)
}
