package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositEvent is an asset-transfer notification from the chain watcher.
// Delivery is at-least-once; the reconciler dedupes on (TxHash, TxVout).
type DepositEvent struct {
	FromAddress string
	Asset       Asset
	Amount      decimal.Decimal
	TxHash      string
	TxVout      uint32
	BlockHeight int64
}

// Deposit is a credited deposit, persisted as the idempotency record for
// its on-chain transaction output.
type Deposit struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	FromAddress string          `db:"from_address"`
	Asset       Asset           `db:"asset"`
	Amount      decimal.Decimal `db:"amount"`
	TxHash      string          `db:"tx_hash"`
	TxVout      uint32          `db:"tx_vout"`
	BlockHeight int64           `db:"block_height"`
	CreatedAt   time.Time       `db:"created_at"`
}

// DepositResult reports what the reconciler did with an event. An unmatched
// or duplicate event is not an error towards the watcher.
type DepositResult struct {
	Matched    bool
	Duplicate  bool
	Credited   bool
	UserID     int64
	Asset      Asset
	Amount     decimal.Decimal
	NewBalance decimal.Decimal
}
