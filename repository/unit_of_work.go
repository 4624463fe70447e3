package repository

import (
	"context"
	"fmt"

	"bankroll/database"
	"bankroll/events"
	"bankroll/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the service.UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	accountRepo      service.AccountRepository
	poolRepo         service.PoolRepository
	depositRepo      service.DepositRepository
	withdrawalRepo   service.WithdrawalRepository
	ledgerRepo       service.LedgerEntryRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	// Create repositories with the transaction
	u.accountRepo = newAccountRepositoryWithTx(tx)
	u.poolRepo = newPoolRepositoryWithTx(tx)
	u.depositRepo = newDepositRepositoryWithTx(tx)
	u.withdrawalRepo = newWithdrawalRepositoryWithTx(tx)
	u.ledgerRepo = newLedgerEntryRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.tx = nil

	// Flush pending events after successful commit
	if u.transactionalBus != nil {
		u.transactionalBus.Flush(u.ctx)
	}

	return nil
}

// Rollback rolls back the transaction
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Nothing to rollback
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	u.tx = nil

	// Discard pending events on rollback
	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// PoolRepository returns the pool repository for this unit of work
func (u *unitOfWork) PoolRepository() service.PoolRepository {
	if u.poolRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.poolRepo
}

// DepositRepository returns the deposit repository for this unit of work
func (u *unitOfWork) DepositRepository() service.DepositRepository {
	if u.depositRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.depositRepo
}

// WithdrawalRepository returns the withdrawal repository for this unit of work
func (u *unitOfWork) WithdrawalRepository() service.WithdrawalRepository {
	if u.withdrawalRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.withdrawalRepo
}

// LedgerEntryRepository returns the ledger entry repository for this unit of work
func (u *unitOfWork) LedgerEntryRepository() service.LedgerEntryRepository {
	if u.ledgerRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.ledgerRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	return u.transactionalBus
}
