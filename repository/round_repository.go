package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"colorgame/database"
	"colorgame/models"
	"colorgame/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const roundColumns = `id, start_time, end_time, number, color, price, is_active, settled_at`

// RoundRepository implements service.RoundRepository on the game_periods table
type RoundRepository struct {
	q queryable
}

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) *RoundRepository {
	return &RoundRepository{q: db.Pool}
}

func newRoundRepositoryWithTx(tx queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

// GetActive returns the active round, or nil if none exists
func (r *RoundRepository) GetActive(ctx context.Context) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM game_periods WHERE is_active`
	round, err := scanRound(r.q.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to get active round: %w", err)
	}
	return round, nil
}

// GetActiveForShare returns the active round holding a shared row lock, which
// blocks a concurrent settlement until the caller's transaction ends.
func (r *RoundRepository) GetActiveForShare(ctx context.Context) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM game_periods WHERE is_active FOR SHARE`
	round, err := scanRound(r.q.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to lock active round: %w", err)
	}
	return round, nil
}

// GetByID retrieves a round by its period id
func (r *RoundRepository) GetByID(ctx context.Context, id string) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM game_periods WHERE id = $1`
	round, err := scanRound(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get round %s: %w", id, err)
	}
	return round, nil
}

// GetByIDForUpdate retrieves a round and locks its row exclusively
func (r *RoundRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM game_periods WHERE id = $1 FOR UPDATE`
	round, err := scanRound(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to lock round %s: %w", id, err)
	}
	return round, nil
}

// Create inserts a new active round. The partial unique index on is_active
// rejects a second active round.
func (r *RoundRepository) Create(ctx context.Context, startTime, endTime time.Time) (*models.Round, error) {
	query := `
		INSERT INTO game_periods (id, start_time, end_time, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING ` + roundColumns

	id := models.PeriodID(startTime)
	round, err := scanRound(r.q.QueryRow(ctx, query, id, startTime.UTC(), endTime.UTC()))
	if err != nil {
		return nil, fmt.Errorf("failed to create round %s: %w", id, err)
	}
	return round, nil
}

// SetOutcome writes the outcome and deactivates the round in one statement.
// The number IS NULL guard makes a second write a no-op.
func (r *RoundRepository) SetOutcome(ctx context.Context, id string, outcome models.Outcome) (*models.Round, error) {
	query := `
		UPDATE game_periods
		SET number = $2, color = $3, price = $4, is_active = FALSE, settled_at = NOW()
		WHERE id = $1 AND number IS NULL
		RETURNING ` + roundColumns

	round, err := scanRound(r.q.QueryRow(ctx, query, id, outcome.Number, outcome.Colors.String(), outcome.Price))
	if err != nil {
		return nil, fmt.Errorf("failed to set outcome for round %s: %w", id, err)
	}
	if round != nil {
		return round, nil
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("round %s: %w", id, service.ErrRoundNotFound)
	}
	return nil, fmt.Errorf("round %s: %w", id, service.ErrDuplicateSettlement)
}

// GetHistory returns settled rounds, newest first
func (r *RoundRepository) GetHistory(ctx context.Context, limit, offset int) ([]*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM game_periods
		WHERE number IS NOT NULL
		ORDER BY start_time DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get round history: %w", err)
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rounds: %w", err)
	}

	return rounds, nil
}

// scanRound scans one game_periods row, returning nil, nil for no rows
func scanRound(row pgx.Row) (*models.Round, error) {
	var (
		round  models.Round
		number *int16
		color  *string
		price  decimal.NullDecimal
	)
	err := row.Scan(
		&round.ID,
		&round.StartTime,
		&round.EndTime,
		&number,
		&color,
		&price,
		&round.IsActive,
		&round.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if number != nil {
		n := int(*number)
		round.Number = &n
	}
	if color != nil {
		if err := round.Color.UnmarshalText([]byte(*color)); err != nil {
			return nil, fmt.Errorf("invalid color %q on round %s: %w", *color, round.ID, err)
		}
	}
	if price.Valid {
		p := price.Decimal
		round.Price = &p
	}
	return &round, nil
}
