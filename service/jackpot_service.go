package service

import (
	"context"
	"fmt"

	"bankroll/config"
	"bankroll/events"
	"bankroll/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type jackpotService struct {
	uowFactory UnitOfWorkFactory
	outcomes   OutcomeSource
}

// NewJackpotService creates a new jackpot service
func NewJackpotService(uowFactory UnitOfWorkFactory, outcomes OutcomeSource) JackpotService {
	return &jackpotService{
		uowFactory: uowFactory,
		outcomes:   outcomes,
	}
}

// PlayJackpot resolves a jackpot play at the fixed jackpot stake. The prize
// is the pool balance as it stood before this play's stake was added; the
// pool row is locked up front so no concurrent operation can move the
// balance between the capture and the reset.
func (s *jackpotService) PlayJackpot(ctx context.Context, userID int64) (*models.JackpotResult, error) {
	cfg := config.Get()
	stake := decimal.NewFromInt(cfg.JackpotStake)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	// Lock the row up front: XP and level are computed from this struct, so
	// a concurrent operation must not read the same pre-play state.
	account, err := uow.AccountRepository().GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", userID, models.ErrNotRegistered)
	}

	// Capture the prize before the stake lands in the pool. A winner takes
	// what earlier players built up, never their own stake back.
	captured, err := uow.PoolRepository().GetForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture pool balance: %w", err)
	}

	balanceAfterStake, err := uow.AccountRepository().Debit(ctx, userID, models.AssetStable, stake)
	if err != nil {
		return nil, err
	}

	stakeEntry := &models.LedgerEntry{
		UserID:          userID,
		Asset:           models.AssetStable,
		BalanceBefore:   balanceAfterStake.Add(stake),
		BalanceAfter:    balanceAfterStake,
		ChangeAmount:    stake.Neg(),
		TransactionType: models.TransactionTypeJackpotStake,
		Metadata: map[string]any{
			"stake": stake.String(),
		},
	}
	if err := uow.LedgerEntryRepository().Record(ctx, stakeEntry); err != nil {
		return nil, fmt.Errorf("failed to record stake: %w", err)
	}

	newPool, err := uow.PoolRepository().Credit(ctx, stake)
	if err != nil {
		return nil, fmt.Errorf("failed to add stake to pool: %w", err)
	}

	draw, err := s.outcomes.Float64()
	if err != nil {
		return nil, fmt.Errorf("failed to draw outcome: %w", err)
	}
	won := draw < cfg.JackpotWinProbability

	newBalance := balanceAfterStake
	payout := decimal.Zero
	unfunded := false

	if won {
		if captured.IsZero() {
			// Winning draw against an empty pool: nothing to pay and
			// nothing to reset. The stake stays in the pool for the next
			// player.
			unfunded = true
			log.WithFields(log.Fields{
				"userID": userID,
				"stake":  stake,
			}).Warn("Jackpot won against an empty pool")
			uow.EventBus().Publish(events.JackpotUnfundedEvent{
				UserID: userID,
				Stake:  stake,
			})
		} else {
			if _, err := uow.PoolRepository().Reset(ctx); err != nil {
				return nil, fmt.Errorf("failed to reset pool: %w", err)
			}
			newPool = decimal.Zero
			payout = captured

			newBalance, err = uow.AccountRepository().Credit(ctx, userID, models.AssetStable, payout)
			if err != nil {
				return nil, fmt.Errorf("failed to credit jackpot payout: %w", err)
			}

			payoutEntry := &models.LedgerEntry{
				UserID:          userID,
				Asset:           models.AssetStable,
				BalanceBefore:   newBalance.Sub(payout),
				BalanceAfter:    newBalance,
				ChangeAmount:    payout,
				TransactionType: models.TransactionTypeJackpotPayout,
				Metadata: map[string]any{
					"stake": stake.String(),
				},
			}
			if err := uow.LedgerEntryRepository().Record(ctx, payoutEntry); err != nil {
				return nil, fmt.Errorf("failed to record jackpot payout: %w", err)
			}

			uow.EventBus().Publish(events.JackpotWonEvent{
				UserID: userID,
				Payout: payout,
			})
		}
	}

	// An unfunded win paid nothing and counts as a loss throughout: for the
	// statistics and for the experience award.
	paidWin := won && !unfunded
	if err := uow.AccountRepository().RecordWager(ctx, userID, stake, paidWin, payout); err != nil {
		return nil, fmt.Errorf("failed to record wager stats: %w", err)
	}

	xpGain := cfg.XPPerLoss
	if paidWin {
		xpGain = cfg.XPPerWin
	}
	progression, err := applyExperience(ctx, uow, account, xpGain)
	if err != nil {
		return nil, err
	}
	if progression.RewardPaid.IsPositive() {
		newBalance = newBalance.Add(progression.RewardPaid)
		newPool = newPool.Sub(progression.RewardPaid)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.JackpotResult{
		Won:         won,
		Stake:       stake,
		Payout:      payout,
		Unfunded:    unfunded,
		NewBalance:  newBalance,
		NewPool:     newPool,
		Progression: progression,
	}, nil
}
