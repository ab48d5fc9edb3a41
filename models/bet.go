package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetType is what a bet predicts
type BetType string

const (
	BetTypeColor  BetType = "color"
	BetTypeNumber BetType = "number"
)

// BetResult is the settled outcome of a bet
type BetResult string

const (
	BetResultWin  BetResult = "win"
	BetResultLoss BetResult = "loss"
)

const (
	ColorMultiplier  = 2
	NumberMultiplier = 9
)

// MultiplierFor returns the payout multiplier fixed at placement
func MultiplierFor(t BetType) int {
	if t == BetTypeNumber {
		return NumberMultiplier
	}
	return ColorMultiplier
}

// Bet represents a wager on a round's outcome
type Bet struct {
	ID         int64            `db:"id" json:"id"`
	UserID     int64            `db:"user_id" json:"userId"`
	PeriodID   string           `db:"period_id" json:"periodId"`
	Type       BetType          `db:"type" json:"type"`
	Value      string           `db:"value" json:"value"`
	Amount     decimal.Decimal  `db:"amount" json:"amount"`
	Multiplier int              `db:"multiplier" json:"multiplier"`
	Result     *BetResult       `db:"result" json:"result,omitempty"`
	Payout     *decimal.Decimal `db:"payout" json:"payout,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
	SettledAt  *time.Time       `db:"settled_at" json:"settledAt,omitempty"`
}

// IsSettled reports whether the bet already carries a result
func (b *Bet) IsSettled() bool {
	return b.Result != nil
}

// SettlementSummary describes a completed settlement pass over a round
type SettlementSummary struct {
	PeriodID     string          `json:"periodId"`
	Outcome      Outcome         `json:"outcome"`
	BetCount     int             `json:"betCount"`
	Winners      int             `json:"winners"`
	TotalStaked  decimal.Decimal `json:"totalStaked"`
	TotalPaidOut decimal.Decimal `json:"totalPaidOut"`
}
