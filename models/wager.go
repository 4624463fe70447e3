package models

import "github.com/shopspring/decimal"

// WagerResult is the outcome of a single wager, returned to the caller.
// All amounts are as of the atomically committed operation.
type WagerResult struct {
	Won          bool
	Stake        decimal.Decimal
	Payout       decimal.Decimal
	// PoolShortfall is nonzero when the pool could not cover the full
	// payout and the credit was capped at the available pool balance.
	PoolShortfall decimal.Decimal
	NewBalance    decimal.Decimal
	NewPool       decimal.Decimal
	Progression   *ProgressionResult
}

// JackpotResult is the outcome of a jackpot play. On a win the entire pool
// balance captured before the stake was added is paid out and the pool is
// reset to zero.
type JackpotResult struct {
	Won    bool
	Stake  decimal.Decimal
	Payout decimal.Decimal
	// Unfunded is set when the draw won but the pool held nothing before
	// the stake was added. The stake stays debited and no payout is made.
	Unfunded    bool
	NewBalance  decimal.Decimal
	NewPool     decimal.Decimal
	Progression *ProgressionResult
}

// ProgressionResult describes the experience and level changes applied by
// one operation. Leveling commits even when the monetary reward cannot be
// funded from the pool; skipped rewards are reported separately.
type ProgressionResult struct {
	XPAwarded      int64
	NewXP          int64
	NewLevel       int
	LeveledUp      bool
	LevelsGained   int
	RewardPaid     decimal.Decimal
	RewardsSkipped int
}
