package repository

import (
	"context"
	"fmt"

	"colorgame/database"
	"colorgame/models"
	"colorgame/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const betColumns = `id, user_id, period_id, type, value, amount, multiplier, result, payout, created_at, settled_at`

// BetRepository implements service.BetRepository
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

// Create inserts a bet and fills in its id and creation time
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (user_id, period_id, type, value, amount, multiplier)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.UserID,
		bet.PeriodID,
		bet.Type,
		bet.Value,
		bet.Amount,
		bet.Multiplier,
	).Scan(&bet.ID, &bet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet for user %d: %w", bet.UserID, err)
	}

	return nil
}

// GetByRound returns every bet placed on a round, oldest first
func (r *BetRepository) GetByRound(ctx context.Context, periodID string) ([]*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE period_id = $1 ORDER BY id`

	rows, err := r.q.Query(ctx, query, periodID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets for round %s: %w", periodID, err)
	}
	return collectBets(rows)
}

// SetResult records a bet's result. The result IS NULL guard keeps a bet
// from being settled twice.
func (r *BetRepository) SetResult(ctx context.Context, betID int64, result models.BetResult, payout decimal.Decimal) error {
	query := `
		UPDATE bets
		SET result = $2, payout = $3, settled_at = NOW()
		WHERE id = $1 AND result IS NULL
	`

	tag, err := r.q.Exec(ctx, query, betID, result, payout)
	if err != nil {
		return fmt.Errorf("failed to set result for bet %d: %w", betID, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bets WHERE id = $1)`, betID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check bet %d: %w", betID, err)
		}
		if !exists {
			return fmt.Errorf("bet %d not found", betID)
		}
		return fmt.Errorf("bet %d: %w", betID, service.ErrDuplicateSettlement)
	}

	return nil
}

// GetByUser returns bets for a user, newest first
func (r *BetRepository) GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.q.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets for user %d: %w", userID, err)
	}
	return collectBets(rows)
}

func collectBets(rows pgx.Rows) ([]*models.Bet, error) {
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		var (
			bet    models.Bet
			result *string
			payout decimal.NullDecimal
		)
		err := rows.Scan(
			&bet.ID,
			&bet.UserID,
			&bet.PeriodID,
			&bet.Type,
			&bet.Value,
			&bet.Amount,
			&bet.Multiplier,
			&result,
			&payout,
			&bet.CreatedAt,
			&bet.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		if result != nil {
			res := models.BetResult(*result)
			bet.Result = &res
		}
		if payout.Valid {
			p := payout.Decimal
			bet.Payout = &p
		}
		bets = append(bets, &bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}

	return bets, nil
}
