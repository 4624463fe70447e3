package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus tracks a withdrawal through debit and dispatch.
type WithdrawalStatus string

const (
	// WithdrawalStatusPending means the debit committed but the on-chain
	// transfers have not been dispatched yet.
	WithdrawalStatusPending WithdrawalStatus = "pending"
	// WithdrawalStatusSettled means both transfers were dispatched.
	WithdrawalStatusSettled WithdrawalStatus = "settled"
	// WithdrawalStatusDispatchFailed means a transfer failed after the
	// debit committed. Manual reconciliation is required.
	WithdrawalStatusDispatchFailed WithdrawalStatus = "dispatch_failed"
)

// Withdrawal is a persisted withdrawal request. The fee is carved out of
// the requested amount, not added on top.
type Withdrawal struct {
	ID            int64            `db:"id"`
	UserID        int64            `db:"user_id"`
	Asset         Asset            `db:"asset"`
	Amount        decimal.Decimal  `db:"amount"`
	Fee           decimal.Decimal  `db:"fee"`
	Payout        decimal.Decimal  `db:"payout"`
	ToAddress     string           `db:"to_address"`
	Status        WithdrawalStatus `db:"status"`
	PayoutRef     *string          `db:"payout_ref"`
	FeeRef        *string          `db:"fee_ref"`
	FailureReason *string          `db:"failure_reason"`
	CreatedAt     time.Time        `db:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at"`
}

// WithdrawalResult is returned to the caller after a settled withdrawal.
type WithdrawalResult struct {
	WithdrawalID int64
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	Payout       decimal.Decimal
	Reference    string
	NewBalance   decimal.Decimal
}
