package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset identifies one of the two custodied asset kinds.
type Asset string

const (
	AssetNative Asset = "native"
	AssetStable Asset = "stable"
)

// Valid reports whether the asset is one of the supported kinds.
func (a Asset) Valid() bool {
	return a == AssetNative || a == AssetStable
}

// Account represents a registered user with off-chain balances, wager
// statistics, and progression state. Balances never go negative; the
// repository layer enforces this with conditional updates.
type Account struct {
	UserID        int64           `db:"user_id"`
	Address       string          `db:"address"`
	BalanceNative decimal.Decimal `db:"balance_native"`
	BalanceStable decimal.Decimal `db:"balance_stable"`

	WagerCount   int64           `db:"wager_count"`
	WagerVolume  decimal.Decimal `db:"wager_volume"`
	WinCount     int64           `db:"win_count"`
	LossCount    int64           `db:"loss_count"`
	WonVolume    decimal.Decimal `db:"won_volume"`
	LostVolume   decimal.Decimal `db:"lost_volume"`
	LargestStake decimal.Decimal `db:"largest_stake"`

	XP          int64      `db:"xp"`
	Level       int        `db:"level"`
	LoginStreak int        `db:"login_streak"`
	LastLoginAt *time.Time `db:"last_login_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Balance returns the account's balance for the given asset.
func (a *Account) Balance(asset Asset) decimal.Decimal {
	if asset == AssetNative {
		return a.BalanceNative
	}
	return a.BalanceStable
}
