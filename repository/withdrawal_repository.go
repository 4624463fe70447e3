package repository

import (
	"context"
	"fmt"

	"bankroll/database"
	"bankroll/models"

	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `
	id, user_id, asset, amount, fee, payout, to_address,
	status, payout_ref, fee_ref, failure_reason, created_at, updated_at`

// WithdrawalRepository persists withdrawal requests across the
// debit-then-dispatch lifecycle.
type WithdrawalRepository struct {
	q queryable
}

// NewWithdrawalRepository creates a new withdrawal repository
func NewWithdrawalRepository(db *database.DB) *WithdrawalRepository {
	return &WithdrawalRepository{q: db.Pool}
}

// newWithdrawalRepositoryWithTx creates a new withdrawal repository with a transaction
func newWithdrawalRepositoryWithTx(tx queryable) *WithdrawalRepository {
	return &WithdrawalRepository{q: tx}
}

// Create persists a new withdrawal in pending state
func (r *WithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (user_id, asset, amount, fee, payout, to_address, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		w.UserID,
		w.Asset,
		w.Amount,
		w.Fee,
		w.Payout,
		w.ToAddress,
		w.Status,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal for account %d: %w", w.UserID, err)
	}
	return nil
}

// MarkSettled records the dispatched transfer references
func (r *WithdrawalRepository) MarkSettled(ctx context.Context, id int64, payoutRef, feeRef string) error {
	query := `
		UPDATE withdrawals
		SET status = $1, payout_ref = $2, fee_ref = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.q.Exec(ctx, query, models.WithdrawalStatusSettled, payoutRef, feeRef, id)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal %d settled: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal %d not found", id)
	}
	return nil
}

// MarkDispatchFailed records a transfer failure after the debit committed.
// payoutRef is non-nil when the user payout was dispatched before the
// failure, which matters for manual reconciliation.
func (r *WithdrawalRepository) MarkDispatchFailed(ctx context.Context, id int64, reason string, payoutRef *string) error {
	query := `
		UPDATE withdrawals
		SET status = $1, failure_reason = $2, payout_ref = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.q.Exec(ctx, query, models.WithdrawalStatusDispatchFailed, reason, payoutRef, id)
	if err != nil {
		return fmt.Errorf("failed to mark withdrawal %d dispatch-failed: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("withdrawal %d not found", id)
	}
	return nil
}

// GetByID retrieves a withdrawal
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	w, err := scanWithdrawal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %d: %w", id, err)
	}
	return w, nil
}

// GetByUser returns withdrawals for an account, newest first
func (r *WithdrawalRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawals for account %d: %w", userID, err)
	}
	defer rows.Close()

	var withdrawals []*models.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate withdrawals: %w", err)
	}
	return withdrawals, nil
}

func scanWithdrawal(row pgx.Row) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.Asset,
		&w.Amount,
		&w.Fee,
		&w.Payout,
		&w.ToAddress,
		&w.Status,
		&w.PayoutRef,
		&w.FeeRef,
		&w.FailureReason,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
