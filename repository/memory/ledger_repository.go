package memory

import (
	"context"
	"maps"

	"colorgame/models"
)

type transactionRepository struct {
	uow *unitOfWork
}

func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	s := r.uow.store

	s.nextTxID++
	tx.ID = s.nextTxID
	tx.CreatedAt = s.clock.Now().UTC()

	stored := *tx
	s.transactions = append(s.transactions, &stored)
	r.uow.record(func() {
		s.transactions = s.transactions[:len(s.transactions)-1]
		s.nextTxID--
	})
	return nil
}

func (r *transactionRepository) GetByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	var matched []*models.Transaction
	txs := r.uow.store.transactions
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].UserID == userID {
			matched = append(matched, txs[i])
		}
	}

	from, to := page(len(matched), limit, offset)
	out := make([]*models.Transaction, 0, to-from)
	for _, tx := range matched[from:to] {
		c := *tx
		out = append(out, &c)
	}
	return out, nil
}

type balanceHistoryRepository struct {
	uow *unitOfWork
}

func (r *balanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	s := r.uow.store

	s.nextHistoryID++
	history.ID = s.nextHistoryID
	history.CreatedAt = s.clock.Now().UTC()

	stored := *history
	stored.TransactionMetadata = maps.Clone(history.TransactionMetadata)
	s.history = append(s.history, &stored)
	r.uow.record(func() {
		s.history = s.history[:len(s.history)-1]
		s.nextHistoryID--
	})
	return nil
}

func (r *balanceHistoryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.BalanceHistory, error) {
	var out []*models.BalanceHistory
	h := r.uow.store.history
	for i := len(h) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if h[i].UserID == userID {
			c := *h[i]
			out = append(out, &c)
		}
	}
	return out, nil
}
