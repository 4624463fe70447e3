package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"bankroll/config"
	"bankroll/events"
	"bankroll/models"

	"github.com/shopspring/decimal"
)

// XPThreshold returns the experience needed to advance from the given level
// to the next: floor(100 * 1.5^(level-1)).
func XPThreshold(level int) int64 {
	return int64(math.Floor(100 * math.Pow(1.5, float64(level-1))))
}

// applyExperience awards experience inside an open unit of work, cascading
// level-ups when the gain crosses multiple thresholds. Experience is stored
// relative to the current level, so each level-up subtracts the crossed
// threshold.
//
// Each level gained pays a fixed reward from the pool. An underfunded pool
// skips that reward but never blocks the level-up; the caller's operation
// must not fail because the pool ran dry.
func applyExperience(ctx context.Context, uow UnitOfWork, account *models.Account, xpGain int64) (*models.ProgressionResult, error) {
	cfg := config.Get()

	newXP := account.XP + xpGain
	level := account.Level
	levelsGained := 0

	for newXP >= XPThreshold(level) {
		newXP -= XPThreshold(level)
		level++
		levelsGained++
	}

	if err := uow.AccountRepository().UpdateProgression(ctx, account.UserID, newXP, level); err != nil {
		return nil, fmt.Errorf("failed to update progression: %w", err)
	}

	result := &models.ProgressionResult{
		XPAwarded:    xpGain,
		NewXP:        newXP,
		NewLevel:     level,
		LeveledUp:    levelsGained > 0,
		LevelsGained: levelsGained,
		RewardPaid:   decimal.Zero,
	}

	reward := decimal.NewFromInt(cfg.LevelReward)
	for i := 0; i < levelsGained; i++ {
		gainedLevel := account.Level + i + 1

		_, err := uow.PoolRepository().Debit(ctx, reward)
		if errors.Is(err, models.ErrInsufficientPool) {
			result.RewardsSkipped++
			uow.EventBus().Publish(events.LeveledUpEvent{
				UserID:        account.UserID,
				NewLevel:      gainedLevel,
				Reward:        decimal.Zero,
				RewardSkipped: true,
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to debit pool for level reward: %w", err)
		}

		newBalance, err := uow.AccountRepository().Credit(ctx, account.UserID, models.AssetStable, reward)
		if err != nil {
			return nil, fmt.Errorf("failed to credit level reward: %w", err)
		}

		entry := &models.LedgerEntry{
			UserID:          account.UserID,
			Asset:           models.AssetStable,
			BalanceBefore:   newBalance.Sub(reward),
			BalanceAfter:    newBalance,
			ChangeAmount:    reward,
			TransactionType: models.TransactionTypeLevelReward,
			Metadata: map[string]any{
				"level": gainedLevel,
			},
		}
		if err := uow.LedgerEntryRepository().Record(ctx, entry); err != nil {
			return nil, fmt.Errorf("failed to record level reward: %w", err)
		}

		result.RewardPaid = result.RewardPaid.Add(reward)
		uow.EventBus().Publish(events.LeveledUpEvent{
			UserID:   account.UserID,
			NewLevel: gainedLevel,
			Reward:   reward,
		})
	}

	return result, nil
}
