package memory

import (
	"context"
	"fmt"

	"colorgame/events"
	"colorgame/service"
)

// unitOfWork implements service.UnitOfWork over a Store
type unitOfWork struct {
	store            *Store
	ctx              context.Context
	active           bool
	undo             []func()
	transactionalBus *events.TransactionalBus
}

type unitOfWorkFactory struct {
	store    *Store
	eventBus *events.Bus
}

// NewUnitOfWorkFactory creates a factory whose units of work run against store
func NewUnitOfWorkFactory(store *Store, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{store: store, eventBus: eventBus}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		store:            f.store,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin acquires the store exclusively
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return fmt.Errorf("transaction already started")
	}
	if err := u.store.acquire(ctx); err != nil {
		return err
	}
	u.active = true
	u.ctx = ctx
	return nil
}

// Commit keeps all changes, releases the store and flushes queued events
func (u *unitOfWork) Commit() error {
	if !u.active {
		return fmt.Errorf("no transaction to commit")
	}
	u.undo = nil
	u.active = false
	u.store.release()

	u.transactionalBus.Flush(u.ctx)
	return nil
}

// Rollback reverts every change made since Begin
func (u *unitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
	u.active = false
	u.store.release()

	u.transactionalBus.Discard()
	return nil
}

func (u *unitOfWork) record(fn func()) {
	u.undo = append(u.undo, fn)
}

func (u *unitOfWork) mustBeActive() {
	if !u.active {
		panic("unit of work not started - call Begin() first")
	}
}

func (u *unitOfWork) RoundRepository() service.RoundRepository {
	u.mustBeActive()
	return &roundRepository{uow: u}
}

func (u *unitOfWork) BetRepository() service.BetRepository {
	u.mustBeActive()
	return &betRepository{uow: u}
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	u.mustBeActive()
	return &userRepository{uow: u}
}

func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	u.mustBeActive()
	return &transactionRepository{uow: u}
}

func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	u.mustBeActive()
	return &balanceHistoryRepository{uow: u}
}

func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
