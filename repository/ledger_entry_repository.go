package repository

import (
	"context"
	"fmt"

	"bankroll/database"
	"bankroll/models"
)

// LedgerEntryRepository persists the append-only balance change journal.
type LedgerEntryRepository struct {
	q queryable
}

// NewLedgerEntryRepository creates a new ledger entry repository
func NewLedgerEntryRepository(db *database.DB) *LedgerEntryRepository {
	return &LedgerEntryRepository{q: db.Pool}
}

// newLedgerEntryRepositoryWithTx creates a new ledger entry repository with a transaction
func newLedgerEntryRepositoryWithTx(tx queryable) *LedgerEntryRepository {
	return &LedgerEntryRepository{q: tx}
}

// Record creates a new ledger entry
func (r *LedgerEntryRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (user_id, asset, balance_before, balance_after, change_amount, transaction_type, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.UserID,
		entry.Asset,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.ChangeAmount,
		entry.TransactionType,
		entry.Metadata,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record ledger entry for account %d: %w", entry.UserID, err)
	}
	return nil
}

// GetByUser returns ledger entries for an account, newest first
func (r *LedgerEntryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error) {
	query := `
		SELECT id, user_id, asset, balance_before, balance_after, change_amount, transaction_type, metadata, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries for account %d: %w", userID, err)
	}
	defer rows.Close()

	var entries []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Asset,
			&e.BalanceBefore,
			&e.BalanceAfter,
			&e.ChangeAmount,
			&e.TransactionType,
			&e.Metadata,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}
