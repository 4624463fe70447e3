package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pool is the singleton shared stable-coin reserve. Wager stakes flow in;
// payouts, jackpot wins, and level rewards flow out. The balance never goes
// negative: a payout that cannot be covered is capped or refused, never
// applied blind.
type Pool struct {
	ID        int             `db:"id"`
	Balance   decimal.Decimal `db:"balance"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// PoolID is the primary key of the singleton pool row.
const PoolID = 1
