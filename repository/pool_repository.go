package repository

import (
	"context"
	"fmt"

	"bankroll/database"
	"bankroll/models"

	"github.com/shopspring/decimal"
)

// PoolRepository provides access to the singleton pool row. Every mutation
// is a single UPDATE so concurrent pool operations linearize on the row
// lock: a jackpot reset, a stake credit, and a reward debit can never
// interleave partial state.
type PoolRepository struct {
	q queryable
}

// NewPoolRepository creates a new pool repository
func NewPoolRepository(db *database.DB) *PoolRepository {
	return &PoolRepository{q: db.Pool}
}

// newPoolRepositoryWithTx creates a new pool repository with a transaction
func newPoolRepositoryWithTx(tx queryable) *PoolRepository {
	return &PoolRepository{q: tx}
}

// Get returns the current pool balance
func (r *PoolRepository) Get(ctx context.Context) (decimal.Decimal, error) {
	query := `SELECT balance FROM pool WHERE id = $1`

	var balance decimal.Decimal
	if err := r.q.QueryRow(ctx, query, models.PoolID).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get pool balance: %w", err)
	}
	return balance, nil
}

// GetForUpdate returns the pool balance and takes the row lock for the
// remainder of the transaction. Used when a later mutation depends on the
// value read, such as the jackpot capture-before-stake ordering.
func (r *PoolRepository) GetForUpdate(ctx context.Context) (decimal.Decimal, error) {
	query := `SELECT balance FROM pool WHERE id = $1 FOR UPDATE`

	var balance decimal.Decimal
	if err := r.q.QueryRow(ctx, query, models.PoolID).Scan(&balance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock pool balance: %w", err)
	}
	return balance, nil
}

// Credit adds to the pool atomically and returns the new balance
func (r *PoolRepository) Credit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, fmt.Errorf("pool credit amount must be positive")
	}

	query := `
		UPDATE pool
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING balance
	`

	var newBalance decimal.Decimal
	if err := r.q.QueryRow(ctx, query, amount, models.PoolID).Scan(&newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit pool: %w", err)
	}
	return newBalance, nil
}

// Debit subtracts from the pool atomically, failing with
// ErrInsufficientPool when the balance cannot cover the amount.
func (r *PoolRepository) Debit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, fmt.Errorf("pool debit amount must be positive")
	}

	query := `
		UPDATE pool
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = $2 AND balance >= $1
		RETURNING balance
	`

	rows, err := r.q.Query(ctx, query, amount, models.PoolID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit pool: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return decimal.Zero, fmt.Errorf("failed to debit pool: %w", err)
		}
		balance, getErr := r.Get(ctx)
		if getErr != nil {
			return decimal.Zero, getErr
		}
		return decimal.Zero, fmt.Errorf("%w: have %s, need %s",
			models.ErrInsufficientPool, balance, amount)
	}

	var newBalance decimal.Decimal
	if err := rows.Scan(&newBalance); err != nil {
		return decimal.Zero, fmt.Errorf("failed to scan pool balance: %w", err)
	}
	return newBalance, nil
}

// DebitUpTo subtracts up to amount from the pool, capping at the available
// balance. Returns the amount actually taken and the remaining balance.
// Used for fail-soft payouts where a shortfall is reported, not fatal.
func (r *PoolRepository) DebitUpTo(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("pool debit amount must be positive")
	}

	query := `
		UPDATE pool p
		SET balance = GREATEST(p.balance - $1, 0), updated_at = NOW()
		FROM (SELECT id, balance AS prev FROM pool WHERE id = $2 FOR UPDATE) o
		WHERE p.id = o.id
		RETURNING o.prev, p.balance
	`

	var prev, newBalance decimal.Decimal
	if err := r.q.QueryRow(ctx, query, amount, models.PoolID).Scan(&prev, &newBalance); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to debit pool: %w", err)
	}
	return prev.Sub(newBalance), newBalance, nil
}

// Reset zeroes the pool and returns the balance it held
func (r *PoolRepository) Reset(ctx context.Context) (decimal.Decimal, error) {
	query := `
		UPDATE pool p
		SET balance = 0, updated_at = NOW()
		FROM (SELECT id, balance AS prev FROM pool WHERE id = $1 FOR UPDATE) o
		WHERE p.id = o.id
		RETURNING o.prev
	`

	var captured decimal.Decimal
	if err := r.q.QueryRow(ctx, query, models.PoolID).Scan(&captured); err != nil {
		return decimal.Zero, fmt.Errorf("failed to reset pool: %w", err)
	}
	return captured, nil
}
