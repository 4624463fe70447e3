package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankroll/database"
	"bankroll/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const accountColumns = `
	user_id, address, balance_native, balance_stable,
	wager_count, wager_volume, win_count, loss_count,
	won_volume, lost_volume, largest_stake,
	xp, level, login_streak, last_login_at,
	created_at, updated_at`

// AccountRepository provides access to account rows. All balance mutations
// are single-statement conditional updates so that concurrent operations on
// the same account serialize at the row level and can never interleave a
// read-modify-write.
type AccountRepository struct {
	q queryable
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.UserID,
		&a.Address,
		&a.BalanceNative,
		&a.BalanceStable,
		&a.WagerCount,
		&a.WagerVolume,
		&a.WinCount,
		&a.LossCount,
		&a.WonVolume,
		&a.LostVolume,
		&a.LargestStake,
		&a.XP,
		&a.Level,
		&a.LoginStreak,
		&a.LastLoginAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByUserID retrieves an account by its external user identity
func (r *AccountRepository) GetByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", userID, err)
	}
	return account, nil
}

// GetByUserIDForUpdate retrieves an account and locks its row for the
// remainder of the transaction. Callers that compute new state from the
// returned struct (progression, login streak) must use this instead of
// GetByUserID, otherwise two concurrent transactions can both read the same
// stale values and the later commit silently overwrites the earlier one.
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, userID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 FOR UPDATE`

	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock account %d: %w", userID, err)
	}
	return account, nil
}

// GetByAddress retrieves the account bound to an on-chain address
func (r *AccountRepository) GetByAddress(ctx context.Context, address string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE address = $1`

	account, err := scanAccount(r.q.QueryRow(ctx, query, address))
	if err != nil {
		return nil, fmt.Errorf("failed to get account by address %s: %w", address, err)
	}
	return account, nil
}

// Create creates a new account bound to the given address
func (r *AccountRepository) Create(ctx context.Context, userID int64, address string) (*models.Account, error) {
	query := `
		INSERT INTO accounts (user_id, address)
		VALUES ($1, $2)
		RETURNING ` + accountColumns

	account, err := scanAccount(r.q.QueryRow(ctx, query, userID, address))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create account %d with address %s: %w", userID, address, models.ErrAddressInUse)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account %d: %w", userID, err)
	}
	return account, nil
}

// RebindAddress points an existing account at a new on-chain address
func (r *AccountRepository) RebindAddress(ctx context.Context, userID int64, address string) error {
	query := `
		UPDATE accounts
		SET address = $1, updated_at = NOW()
		WHERE user_id = $2
	`

	result, err := r.q.Exec(ctx, query, address, userID)
	if isUniqueViolation(err) {
		return fmt.Errorf("rebind account %d to address %s: %w", userID, address, models.ErrAddressInUse)
	}
	if err != nil {
		return fmt.Errorf("failed to rebind address for account %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("rebind address for account %d: %w", userID, models.ErrNotRegistered)
	}
	return nil
}

// isUniqueViolation reports whether the error is a Postgres unique-constraint
// violation. Concurrent registrations of the same address race past the
// service-level check; the unique index is the authority.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// balanceColumn maps an asset to its balance column. The column name is
// interpolated into SQL, so it must come from this fixed mapping.
func balanceColumn(asset models.Asset) (string, error) {
	switch asset {
	case models.AssetNative:
		return "balance_native", nil
	case models.AssetStable:
		return "balance_stable", nil
	}
	return "", fmt.Errorf("unknown asset %q", asset)
}

// Credit adds to an account balance atomically and returns the new balance
func (r *AccountRepository) Credit(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, fmt.Errorf("credit amount must be positive")
	}
	col, err := balanceColumn(asset)
	if err != nil {
		return decimal.Zero, err
	}

	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s = %s + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING %s
	`, col, col, col)

	var newBalance decimal.Decimal
	err = r.q.QueryRow(ctx, query, amount, userID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		return decimal.Zero, fmt.Errorf("credit account %d: %w", userID, models.ErrNotRegistered)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit account %d: %w", userID, err)
	}
	return newBalance, nil
}

// Debit subtracts from an account balance atomically, failing with
// ErrInsufficientFunds when the balance cannot cover the amount. The update
// is conditional on the balance so two concurrent debits can never both
// observe the same pre-debit balance.
func (r *AccountRepository) Debit(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() || amount.IsZero() {
		return decimal.Zero, fmt.Errorf("debit amount must be positive")
	}
	col, err := balanceColumn(asset)
	if err != nil {
		return decimal.Zero, err
	}

	query := fmt.Sprintf(`
		UPDATE accounts
		SET %s = %s - $1, updated_at = NOW()
		WHERE user_id = $2 AND %s >= $1
		RETURNING %s
	`, col, col, col, col)

	var newBalance decimal.Decimal
	err = r.q.QueryRow(ctx, query, amount, userID).Scan(&newBalance)
	if err == pgx.ErrNoRows {
		// Either the account is missing or the balance cannot cover it.
		account, getErr := r.GetByUserID(ctx, userID)
		if getErr != nil {
			return decimal.Zero, fmt.Errorf("failed to check account %d: %w", userID, getErr)
		}
		if account == nil {
			return decimal.Zero, fmt.Errorf("debit account %d: %w", userID, models.ErrNotRegistered)
		}
		return decimal.Zero, fmt.Errorf("%w: have %s, need %s",
			models.ErrInsufficientFunds, account.Balance(asset), amount)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to debit account %d: %w", userID, err)
	}
	return newBalance, nil
}

// RecordWager folds one resolved wager into the account statistics
func (r *AccountRepository) RecordWager(ctx context.Context, userID int64, stake decimal.Decimal, won bool, payout decimal.Decimal) error {
	query := `
		UPDATE accounts
		SET wager_count = wager_count + 1,
		    wager_volume = wager_volume + $1,
		    win_count = win_count + CASE WHEN $2 THEN 1 ELSE 0 END,
		    loss_count = loss_count + CASE WHEN $2 THEN 0 ELSE 1 END,
		    won_volume = won_volume + CASE WHEN $2 THEN $3::numeric ELSE 0 END,
		    lost_volume = lost_volume + CASE WHEN $2 THEN 0 ELSE $1::numeric END,
		    largest_stake = GREATEST(largest_stake, $1),
		    updated_at = NOW()
		WHERE user_id = $4
	`

	result, err := r.q.Exec(ctx, query, stake, won, payout, userID)
	if err != nil {
		return fmt.Errorf("failed to record wager stats for account %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("record wager stats for account %d: %w", userID, models.ErrNotRegistered)
	}
	return nil
}

// UpdateProgression persists the account's experience and level
func (r *AccountRepository) UpdateProgression(ctx context.Context, userID int64, xp int64, level int) error {
	query := `
		UPDATE accounts
		SET xp = $1, level = $2, updated_at = NOW()
		WHERE user_id = $3
	`

	result, err := r.q.Exec(ctx, query, xp, level, userID)
	if err != nil {
		return fmt.Errorf("failed to update progression for account %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("update progression for account %d: %w", userID, models.ErrNotRegistered)
	}
	return nil
}

// TouchLogin records a login at the given time with the given streak value
func (r *AccountRepository) TouchLogin(ctx context.Context, userID int64, streak int, at time.Time) error {
	query := `
		UPDATE accounts
		SET login_streak = $1, last_login_at = $2, updated_at = NOW()
		WHERE user_id = $3
	`

	result, err := r.q.Exec(ctx, query, streak, at, userID)
	if err != nil {
		return fmt.Errorf("failed to touch login for account %d: %w", userID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("touch login for account %d: %w", userID, models.ErrNotRegistered)
	}
	return nil
}

// TotalStableBalance sums every account's stable-coin balance. Used by
// conservation checks and operational reporting.
func (r *AccountRepository) TotalStableBalance(ctx context.Context) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(balance_stable), 0) FROM accounts`

	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum stable balances: %w", err)
	}
	return total, nil
}
