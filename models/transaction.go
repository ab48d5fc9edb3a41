package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the wallet ledger entry type
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
	TransactionKindWin        TransactionKind = "win"
	TransactionKindLoss       TransactionKind = "loss"
)

// Valid reports whether k is a known ledger entry type
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindWin, TransactionKindLoss:
		return true
	}
	return false
}

// Transaction is an append-only wallet ledger entry. Amount is always a
// positive magnitude; the direction follows from Type.
type Transaction struct {
	ID        int64           `db:"id" json:"id"`
	UserID    int64           `db:"user_id" json:"userId"`
	Type      TransactionKind `db:"type" json:"type"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
}
