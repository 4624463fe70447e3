package service

import (
	"context"
	"time"

	"bankroll/events"
	"bankroll/models"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByUserID retrieves an account by its external user identity
	GetByUserID(ctx context.Context, userID int64) (*models.Account, error)

	// GetByUserIDForUpdate retrieves an account and locks its row for the
	// remainder of the transaction. Required before computing new state
	// from the returned struct
	GetByUserIDForUpdate(ctx context.Context, userID int64) (*models.Account, error)

	// GetByAddress retrieves the account bound to an on-chain address
	GetByAddress(ctx context.Context, address string) (*models.Account, error)

	// Create creates a new account bound to the given address
	Create(ctx context.Context, userID int64, address string) (*models.Account, error)

	// RebindAddress points an existing account at a new on-chain address
	RebindAddress(ctx context.Context, userID int64, address string) error

	// Credit adds to an account balance atomically and returns the new balance
	Credit(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal) (decimal.Decimal, error)

	// Debit subtracts from an account balance atomically, failing with
	// ErrInsufficientFunds when the balance cannot cover the amount
	Debit(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal) (decimal.Decimal, error)

	// RecordWager folds one resolved wager into the account statistics
	RecordWager(ctx context.Context, userID int64, stake decimal.Decimal, won bool, payout decimal.Decimal) error

	// UpdateProgression persists the account's experience and level
	UpdateProgression(ctx context.Context, userID int64, xp int64, level int) error

	// TouchLogin records a login at the given time with the given streak value
	TouchLogin(ctx context.Context, userID int64, streak int, at time.Time) error

	// TotalStableBalance sums every account's stable-coin balance
	TotalStableBalance(ctx context.Context) (decimal.Decimal, error)
}

// PoolRepository defines the interface for the singleton pool
type PoolRepository interface {
	// Get returns the current pool balance
	Get(ctx context.Context) (decimal.Decimal, error)

	// GetForUpdate returns the pool balance and locks the row for the
	// remainder of the transaction
	GetForUpdate(ctx context.Context) (decimal.Decimal, error)

	// Credit adds to the pool atomically and returns the new balance
	Credit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)

	// Debit subtracts from the pool atomically, failing with
	// ErrInsufficientPool when the balance cannot cover the amount
	Debit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)

	// DebitUpTo subtracts up to amount, capping at the available balance.
	// Returns the amount actually taken and the remaining balance.
	DebitUpTo(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error)

	// Reset zeroes the pool and returns the balance it held
	Reset(ctx context.Context) (decimal.Decimal, error)
}

// DepositRepository defines the interface for credited deposit records
type DepositRepository interface {
	// Insert records a deposit, returning false when the same on-chain
	// output was already credited
	Insert(ctx context.Context, deposit *models.Deposit) (bool, error)

	// GetByTx retrieves a credited deposit by its on-chain output identity
	GetByTx(ctx context.Context, txHash string, txVout uint32) (*models.Deposit, error)

	// GetByUser returns credited deposits for an account, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Deposit, error)
}

// WithdrawalRepository defines the interface for withdrawal records
type WithdrawalRepository interface {
	// Create persists a new withdrawal in pending state
	Create(ctx context.Context, w *models.Withdrawal) error

	// MarkSettled records the dispatched transfer references
	MarkSettled(ctx context.Context, id int64, payoutRef, feeRef string) error

	// MarkDispatchFailed records a transfer failure after the debit committed
	MarkDispatchFailed(ctx context.Context, id int64, reason string, payoutRef *string) error

	// GetByID retrieves a withdrawal
	GetByID(ctx context.Context, id int64) (*models.Withdrawal, error)

	// GetByUser returns withdrawals for an account, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Withdrawal, error)
}

// LedgerEntryRepository defines the interface for the balance change journal
type LedgerEntryRepository interface {
	// Record creates a new ledger entry
	Record(ctx context.Context, entry *models.LedgerEntry) error

	// GetByUser returns ledger entries for an account, newest first
	GetByUser(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error)
}

// EventPublisher collects events for emission after the owning transaction
// commits
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork represents one atomic ledger transaction. Every repository it
// hands out shares the same database transaction, and events published
// through its bus are only emitted after a successful commit.
type UnitOfWork interface {
	// Begin starts the transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction and flushes pending events
	Commit() error

	// Rollback rolls back the transaction and discards pending events
	Rollback() error

	// AccountRepository returns the account repository for this unit of work
	AccountRepository() AccountRepository

	// PoolRepository returns the pool repository for this unit of work
	PoolRepository() PoolRepository

	// DepositRepository returns the deposit repository for this unit of work
	DepositRepository() DepositRepository

	// WithdrawalRepository returns the withdrawal repository for this unit of work
	WithdrawalRepository() WithdrawalRepository

	// LedgerEntryRepository returns the ledger entry repository for this unit of work
	LedgerEntryRepository() LedgerEntryRepository

	// EventBus returns the transactional event publisher
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// OutcomeSource draws the uniform variate that decides a wager or jackpot
// outcome. Injected so tests can force specific outcomes.
type OutcomeSource interface {
	// Float64 returns a uniformly distributed value in [0, 1)
	Float64() (float64, error)
}

// TransferClient dispatches on-chain transfers from the custodial wallet
type TransferClient interface {
	// Send transfers amount of asset to the given address and returns the
	// transaction reference
	Send(ctx context.Context, asset models.Asset, toAddress string, amount decimal.Decimal) (string, error)
}

// AccountService defines the interface for account lifecycle operations
type AccountService interface {
	// Register creates an account bound to a deposit address, or returns the
	// existing account for repeat registrations
	Register(ctx context.Context, userID int64, address string) (*models.Account, error)

	// GetAccount retrieves an account, failing with ErrNotRegistered when
	// none exists
	GetAccount(ctx context.Context, userID int64) (*models.Account, error)

	// RecordLogin updates the account's daily login streak
	RecordLogin(ctx context.Context, userID int64, at time.Time) (*models.Account, error)
}

// WagerService defines the interface for fixed-odds wager resolution
type WagerService interface {
	// PlaceWager resolves a single wager for the account: debits the stake,
	// adds it to the pool, draws the outcome, and pays any winnings from the
	// pool
	PlaceWager(ctx context.Context, userID int64, stake decimal.Decimal) (*models.WagerResult, error)
}

// JackpotService defines the interface for jackpot plays
type JackpotService interface {
	// PlayJackpot resolves a jackpot play: the payout is the pool balance
	// captured before the stake is added, and a win resets the pool to zero
	PlayJackpot(ctx context.Context, userID int64) (*models.JackpotResult, error)
}

// DepositService defines the interface for reconciling on-chain deposits
type DepositService interface {
	// ProcessDeposit matches an observed transfer to a registered account and
	// credits it exactly once per on-chain output
	ProcessDeposit(ctx context.Context, event *models.DepositEvent) (*models.DepositResult, error)
}

// WithdrawalService defines the interface for withdrawal settlement
type WithdrawalService interface {
	// RequestWithdrawal debits the account and dispatches the on-chain
	// payout and fee transfers
	RequestWithdrawal(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal, toAddress string) (*models.WithdrawalResult, error)
}
