package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a player with a wallet balance
type User struct {
	ID        int64           `db:"id" json:"id"`
	Username  string          `db:"username" json:"username"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}
