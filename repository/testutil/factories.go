package testutil

import (
	"context"
	"testing"
	"time"

	"colorgame/database"
	"colorgame/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// InsertUser inserts a user directly with the given balance
func InsertUser(t *testing.T, db *database.DB, id int64, balance string) {
	t.Helper()
	_, err := db.Exec(context.Background(),
		`INSERT INTO users (id, username, balance) VALUES ($1, $2, $3)`,
		id, "player", decimal.RequireFromString(balance))
	require.NoError(t, err)
}

// InsertRound inserts an active round starting at start
func InsertRound(t *testing.T, db *database.DB, start time.Time) string {
	t.Helper()
	id := models.PeriodID(start)
	_, err := db.Exec(context.Background(),
		`INSERT INTO game_periods (id, start_time, end_time, is_active) VALUES ($1, $2, $3, TRUE)`,
		id, start, start.Add(3*time.Minute))
	require.NoError(t, err)
	return id
}

// CreateTestBet builds an unsaved bet with the placement multiplier applied
func CreateTestBet(userID int64, periodID string, betType models.BetType, value, amount string) *models.Bet {
	return &models.Bet{
		UserID:     userID,
		PeriodID:   periodID,
		Type:       betType,
		Value:      value,
		Amount:     decimal.RequireFromString(amount),
		Multiplier: models.MultiplierFor(betType),
	}
}

// CreateTestBalanceHistory builds an unsaved balance history entry
func CreateTestBalanceHistory(userID int64, transactionType models.TransactionType, before, after string) *models.BalanceHistory {
	b := decimal.RequireFromString(before)
	a := decimal.RequireFromString(after)
	return &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   b,
		BalanceAfter:    a,
		ChangeAmount:    a.Sub(b),
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}
