package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of balance change
type TransactionType string

const (
	TransactionTypeInitial    TransactionType = "initial"
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeBetStake   TransactionType = "bet_stake"
	TransactionTypeBetWin     TransactionType = "bet_win"
)

// RelatedType represents what type of entity the related_id refers to
type RelatedType string

const (
	RelatedTypeBet         RelatedType = "bet"
	RelatedTypeTransaction RelatedType = "transaction"
)

// BalanceHistory represents a historical balance change
type BalanceHistory struct {
	ID                  int64           `db:"id" json:"id"`
	UserID              int64           `db:"user_id" json:"userId"`
	BalanceBefore       decimal.Decimal `db:"balance_before" json:"balanceBefore"`
	BalanceAfter        decimal.Decimal `db:"balance_after" json:"balanceAfter"`
	ChangeAmount        decimal.Decimal `db:"change_amount" json:"changeAmount"`
	TransactionType     TransactionType `db:"transaction_type" json:"transactionType"`
	TransactionMetadata map[string]any  `db:"transaction_metadata" json:"metadata,omitempty"`
	RelatedID           *int64          `db:"related_id" json:"relatedId,omitempty"`
	RelatedType         *RelatedType    `db:"related_type" json:"relatedType,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"createdAt"`
}

// Related returns pointers suitable for the RelatedID/RelatedType pair
func Related(id int64, relatedType RelatedType) (*int64, *RelatedType) {
	return &id, &relatedType
}
