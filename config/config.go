package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// HTTP API configuration
	ListenAddr string

	// Wager configuration
	AllowedStakes    []int64 // permitted stake denominations (stable-coin units)
	WinProbability   float64 // chance a wager wins
	PayoutMultiplier decimal.Decimal

	// Jackpot configuration
	JackpotStake          int64
	JackpotWinProbability float64

	// Progression configuration
	XPPerWin     int64
	XPPerLoss    int64
	XPPerDeposit int64
	LevelReward  int64 // stable-coin units paid from the pool per level gained

	// Withdrawal configuration
	WithdrawalFeeRate decimal.Decimal // fraction carved out of the requested amount
	MaxWithdrawal     int64           // per-transaction cap, same units as balances
	OperatorAddress   string          // fee destination

	// Chain watcher configuration
	PoolAddress        string // on-chain deposit address of the pool wallet
	DcrdHost           string
	DcrdUser           string
	DcrdPass           string
	DcrdDisableTLS     bool
	WatchConfirmations int64
	WatchInterval      time.Duration

	// Environment
	Environment string // "development", "production", or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from the environment, with a .env file as
// fallback for local development.
func load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		ListenAddr: ":8080",

		AllowedStakes:    []int64{5, 10, 100, 1000, 10000},
		WinProbability:   0.25,
		PayoutMultiplier: decimal.RequireFromString("3.6"),

		JackpotStake:          100,
		JackpotWinProbability: 0.03,

		XPPerWin:     15,
		XPPerLoss:    5,
		XPPerDeposit: 10,
		LevelReward:  10,

		WithdrawalFeeRate: decimal.RequireFromString("0.01"),
		MaxWithdrawal:     10000,
		OperatorAddress:   os.Getenv("OPERATOR_ADDRESS"),

		PoolAddress:        os.Getenv("POOL_ADDRESS"),
		DcrdHost:           os.Getenv("DCRD_HOST"),
		DcrdUser:           os.Getenv("DCRD_USER"),
		DcrdPass:           os.Getenv("DCRD_PASS"),
		DcrdDisableTLS:     os.Getenv("DCRD_DISABLE_TLS") == "true",
		WatchConfirmations: 2,
		WatchInterval:      10 * time.Second,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		config.ListenAddr = addr
	}
	if stakes := os.Getenv("ALLOWED_STAKES"); stakes != "" {
		var parsed []int64
		for _, s := range strings.Split(stakes, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid ALLOWED_STAKES entry %q: %w", s, err)
			}
			parsed = append(parsed, v)
		}
		if len(parsed) > 0 {
			config.AllowedStakes = parsed
		}
	}
	// A malformed override fails startup; silently keeping the default would
	// run the ledger with odds the operator did not set.
	if p := os.Getenv("WIN_PROBABILITY"); p != "" {
		parsed, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WIN_PROBABILITY %q: %w", p, err)
		}
		config.WinProbability = parsed
	}
	if m := os.Getenv("PAYOUT_MULTIPLIER"); m != "" {
		parsed, err := decimal.NewFromString(m)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYOUT_MULTIPLIER %q: %w", m, err)
		}
		config.PayoutMultiplier = parsed
	}
	if s := os.Getenv("JACKPOT_STAKE"); s != "" {
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid JACKPOT_STAKE %q: %w", s, err)
		}
		config.JackpotStake = parsed
	}
	if p := os.Getenv("JACKPOT_WIN_PROBABILITY"); p != "" {
		parsed, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid JACKPOT_WIN_PROBABILITY %q: %w", p, err)
		}
		config.JackpotWinProbability = parsed
	}
	if f := os.Getenv("WITHDRAWAL_FEE_RATE"); f != "" {
		parsed, err := decimal.NewFromString(f)
		if err != nil {
			return nil, fmt.Errorf("invalid WITHDRAWAL_FEE_RATE %q: %w", f, err)
		}
		config.WithdrawalFeeRate = parsed
	}
	if m := os.Getenv("MAX_WITHDRAWAL"); m != "" {
		parsed, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_WITHDRAWAL %q: %w", m, err)
		}
		config.MaxWithdrawal = parsed
	}
	if c := os.Getenv("WATCH_CONFIRMATIONS"); c != "" {
		parsed, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_CONFIRMATIONS %q: %w", c, err)
		}
		config.WatchConfirmations = parsed
	}
	if i := os.Getenv("WATCH_INTERVAL"); i != "" {
		parsed, err := time.ParseDuration(i)
		if err != nil {
			return nil, fmt.Errorf("invalid WATCH_INTERVAL %q: %w", i, err)
		}
		config.WatchInterval = parsed
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.OperatorAddress == "" {
			return nil, fmt.Errorf("OPERATOR_ADDRESS is required")
		}
	}

	return config, nil
}

// StakeAllowed reports whether the stake is one of the configured
// denominations.
func (c *Config) StakeAllowed(stake decimal.Decimal) bool {
	return lo.ContainsBy(c.AllowedStakes, func(s int64) bool {
		return stake.Equal(decimal.NewFromInt(s))
	})
}
