package repository

import (
	"context"
	"fmt"

	"bankroll/database"
	"bankroll/models"

	"github.com/jackc/pgx/v5"
)

// DepositRepository persists credited deposits. The (tx_hash, tx_vout)
// unique key is the idempotency record: a deposit is credited if and only
// if its row inserts.
type DepositRepository struct {
	q queryable
}

// NewDepositRepository creates a new deposit repository
func NewDepositRepository(db *database.DB) *DepositRepository {
	return &DepositRepository{q: db.Pool}
}

// newDepositRepositoryWithTx creates a new deposit repository with a transaction
func newDepositRepositoryWithTx(tx queryable) *DepositRepository {
	return &DepositRepository{q: tx}
}

// Insert records a deposit, returning false when the same on-chain output
// was already credited. The caller must only credit the balance when this
// returns true.
func (r *DepositRepository) Insert(ctx context.Context, deposit *models.Deposit) (bool, error) {
	query := `
		INSERT INTO deposits (user_id, from_address, asset, amount, tx_hash, tx_vout, block_height)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tx_hash, tx_vout) DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		deposit.UserID,
		deposit.FromAddress,
		deposit.Asset,
		deposit.Amount,
		deposit.TxHash,
		deposit.TxVout,
		deposit.BlockHeight,
	).Scan(&deposit.ID, &deposit.CreatedAt)

	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert deposit %s:%d: %w", deposit.TxHash, deposit.TxVout, err)
	}
	return true, nil
}

// GetByTx retrieves a credited deposit by its on-chain output identity
func (r *DepositRepository) GetByTx(ctx context.Context, txHash string, txVout uint32) (*models.Deposit, error) {
	query := `
		SELECT id, user_id, from_address, asset, amount, tx_hash, tx_vout, block_height, created_at
		FROM deposits
		WHERE tx_hash = $1 AND tx_vout = $2
	`

	var d models.Deposit
	err := r.q.QueryRow(ctx, query, txHash, txVout).Scan(
		&d.ID,
		&d.UserID,
		&d.FromAddress,
		&d.Asset,
		&d.Amount,
		&d.TxHash,
		&d.TxVout,
		&d.BlockHeight,
		&d.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %s:%d: %w", txHash, txVout, err)
	}
	return &d, nil
}

// GetByUser returns credited deposits for an account, newest first
func (r *DepositRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Deposit, error) {
	query := `
		SELECT id, user_id, from_address, asset, amount, tx_hash, tx_vout, block_height, created_at
		FROM deposits
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposits for account %d: %w", userID, err)
	}
	defer rows.Close()

	var deposits []*models.Deposit
	for rows.Next() {
		var d models.Deposit
		err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.FromAddress,
			&d.Asset,
			&d.Amount,
			&d.TxHash,
			&d.TxVout,
			&d.BlockHeight,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deposits: %w", err)
	}
	return deposits, nil
}
