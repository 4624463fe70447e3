package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance change in the ledger journal.
type TransactionType string

const (
	TransactionTypeWagerStake    TransactionType = "wager_stake"
	TransactionTypeWagerPayout   TransactionType = "wager_payout"
	TransactionTypeJackpotStake  TransactionType = "jackpot_stake"
	TransactionTypeJackpotPayout TransactionType = "jackpot_payout"
	TransactionTypeDeposit       TransactionType = "deposit"
	TransactionTypeWithdrawal    TransactionType = "withdrawal"
	TransactionTypeLevelReward   TransactionType = "level_reward"
)

// LedgerEntry is an append-only record of a single account balance change.
type LedgerEntry struct {
	ID              int64           `db:"id"`
	UserID          int64           `db:"user_id"`
	Asset           Asset           `db:"asset"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	ChangeAmount    decimal.Decimal `db:"change_amount"`
	TransactionType TransactionType `db:"transaction_type"`
	Metadata        map[string]any  `db:"metadata"`
	CreatedAt       time.Time       `db:"created_at"`
}
