package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, []int64{5, 10, 100, 1000, 10000}, cfg.AllowedStakes)
	assert.Equal(t, 0.25, cfg.WinProbability)
	assert.True(t, cfg.PayoutMultiplier.Equal(decimal.RequireFromString("3.6")))
	assert.Equal(t, int64(100), cfg.JackpotStake)
	assert.Equal(t, 0.03, cfg.JackpotWinProbability)
	assert.Equal(t, int64(2), cfg.WatchConfirmations)
	assert.Equal(t, 10*time.Second, cfg.WatchInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("WIN_PROBABILITY", "0.4")
	t.Setenv("PAYOUT_MULTIPLIER", "2.5")
	t.Setenv("ALLOWED_STAKES", "1, 50, 500")
	t.Setenv("JACKPOT_STAKE", "250")
	t.Setenv("WITHDRAWAL_FEE_RATE", "0.02")
	t.Setenv("MAX_WITHDRAWAL", "5000")
	t.Setenv("WATCH_CONFIRMATIONS", "6")
	t.Setenv("WATCH_INTERVAL", "30s")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.WinProbability)
	assert.True(t, cfg.PayoutMultiplier.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, []int64{1, 50, 500}, cfg.AllowedStakes)
	assert.Equal(t, int64(250), cfg.JackpotStake)
	assert.True(t, cfg.WithdrawalFeeRate.Equal(decimal.RequireFromString("0.02")))
	assert.Equal(t, int64(5000), cfg.MaxWithdrawal)
	assert.Equal(t, int64(6), cfg.WatchConfirmations)
	assert.Equal(t, 30*time.Second, cfg.WatchInterval)
}

// A malformed override must fail startup rather than silently fall back to
// the default: the operator asked for different odds and must not run with
// the stock ones.
func TestLoad_RejectsMalformedOverrides(t *testing.T) {
	cases := map[string]string{
		"WIN_PROBABILITY":         "a quarter",
		"PAYOUT_MULTIPLIER":       "3.6x",
		"ALLOWED_STAKES":          "5,ten,100",
		"JACKPOT_STAKE":           "1e2",
		"JACKPOT_WIN_PROBABILITY": "3%",
		"WITHDRAWAL_FEE_RATE":     "one percent",
		"MAX_WITHDRAWAL":          "10k",
		"WATCH_CONFIRMATIONS":     "two",
		"WATCH_INTERVAL":          "soon",
	}

	for envVar, bad := range cases {
		t.Run(envVar, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "test")
			t.Setenv(envVar, bad)

			_, err := load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), envVar)
		})
	}
}
