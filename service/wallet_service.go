package service

import (
	"context"
	"fmt"

	"colorgame/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// walletService implements the WalletService interface
type walletService struct {
	uowFactory UnitOfWorkFactory
	metrics    Metrics
}

// NewWalletService creates a new wallet service
func NewWalletService(uowFactory UnitOfWorkFactory, metrics Metrics) WalletService {
	return &walletService{
		uowFactory: uowFactory,
		metrics:    metricsOrNoop(metrics),
	}
}

// Deposit credits the user and appends a deposit transaction
func (s *walletService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error) {
	return s.move(ctx, userID, models.TransactionKindDeposit, amount)
}

// Withdraw debits the user and appends a withdrawal transaction. A withdrawal
// larger than the balance fails with ErrInsufficientBalance.
func (s *walletService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error) {
	return s.move(ctx, userID, models.TransactionKindWithdrawal, amount)
}

func (s *walletService) move(ctx context.Context, userID int64, kind models.TransactionKind, amount decimal.Decimal) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	delta := amount
	historyType := models.TransactionTypeDeposit
	if kind == models.TransactionKindWithdrawal {
		delta = amount.Neg()
		historyType = models.TransactionTypeWithdrawal
	}

	uow := s.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	tx := &models.Transaction{
		UserID: userID,
		Type:   kind,
		Amount: amount,
	}
	if err := uow.TransactionRepository().Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", kind, err)
	}

	relatedID, relatedType := models.Related(tx.ID, models.RelatedTypeTransaction)
	user, err := applyBalanceChange(ctx, uow, balanceChange{
		userID:      userID,
		delta:       delta,
		txType:      historyType,
		relatedID:   relatedID,
		relatedType: relatedType,
	})
	if err != nil {
		return nil, err
	}

	if err := commitWork(uow); err != nil {
		return nil, err
	}

	s.metrics.RecordBalanceTransaction(historyType)
	log.WithFields(log.Fields{
		"user_id":     userID,
		"type":        kind,
		"amount":      amount.String(),
		"new_balance": user.Balance.String(),
	}).Info("Wallet transaction recorded")

	return tx, nil
}

// GetTransactionHistory returns a page of the user's ledger, newest first
func (s *walletService) GetTransactionHistory(ctx context.Context, userID int64, page, limit int) ([]*models.Transaction, error) {
	limit, offset := pageBounds(page, limit)

	uow := s.uowFactory.Create()
	if err := beginWork(ctx, uow); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	txs, err := uow.TransactionRepository().GetByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for user %d: %w", userID, err)
	}

	if err := commitWork(uow); err != nil {
		return nil, err
	}
	return txs, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return newValidationError("amount", "must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return newValidationError("amount", "at most two decimal places")
	}
	return nil
}
