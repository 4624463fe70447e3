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

type wagerService struct {
	uowFactory UnitOfWorkFactory
	outcomes   OutcomeSource
}

// NewWagerService creates a new wager service
func NewWagerService(uowFactory UnitOfWorkFactory, outcomes OutcomeSource) WagerService {
	return &wagerService{
		uowFactory: uowFactory,
		outcomes:   outcomes,
	}
}

// PlaceWager resolves a single fixed-odds wager. The stake moves into the
// pool unconditionally; a win pays stake times the payout multiplier back
// out of the pool, capped at whatever the pool holds.
func (s *wagerService) PlaceWager(ctx context.Context, userID int64, stake decimal.Decimal) (*models.WagerResult, error) {
	cfg := config.Get()

	if !cfg.StakeAllowed(stake) {
		return nil, fmt.Errorf("stake %s is not an allowed denomination: %w", stake, models.ErrInvalidStake)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	// Lock the row up front: XP and level are computed from this struct, so
	// a concurrent operation must not read the same pre-wager state.
	account, err := uow.AccountRepository().GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", userID, models.ErrNotRegistered)
	}

	// Stake leaves the account and enters the pool before the draw.
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
		TransactionType: models.TransactionTypeWagerStake,
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
	won := draw < cfg.WinProbability

	newBalance := balanceAfterStake
	paid := decimal.Zero
	shortfall := decimal.Zero

	if won {
		payout := stake.Mul(cfg.PayoutMultiplier)

		// The pool is the only payout source. A thin pool caps the credit
		// at what it holds rather than failing the wager.
		taken, remaining, err := uow.PoolRepository().DebitUpTo(ctx, payout)
		if err != nil {
			return nil, fmt.Errorf("failed to pay out from pool: %w", err)
		}
		paid = taken
		newPool = remaining
		shortfall = payout.Sub(taken)

		if paid.IsPositive() {
			newBalance, err = uow.AccountRepository().Credit(ctx, userID, models.AssetStable, paid)
			if err != nil {
				return nil, fmt.Errorf("failed to credit payout: %w", err)
			}

			payoutEntry := &models.LedgerEntry{
				UserID:          userID,
				Asset:           models.AssetStable,
				BalanceBefore:   newBalance.Sub(paid),
				BalanceAfter:    newBalance,
				ChangeAmount:    paid,
				TransactionType: models.TransactionTypeWagerPayout,
				Metadata: map[string]any{
					"stake":     stake.String(),
					"shortfall": shortfall.String(),
				},
			}
			if err := uow.LedgerEntryRepository().Record(ctx, payoutEntry); err != nil {
				return nil, fmt.Errorf("failed to record payout: %w", err)
			}
		}

		if shortfall.IsPositive() {
			log.WithFields(log.Fields{
				"userID":    userID,
				"requested": payout,
				"paid":      paid,
			}).Warn("Pool could not cover full wager payout")
			uow.EventBus().Publish(events.PoolShortfallEvent{
				UserID:    userID,
				Requested: payout,
				Paid:      paid,
			})
		}
	}

	if err := uow.AccountRepository().RecordWager(ctx, userID, stake, won, paid); err != nil {
		return nil, fmt.Errorf("failed to record wager stats: %w", err)
	}

	xpGain := cfg.XPPerLoss
	if won {
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

	uow.EventBus().Publish(events.WagerSettledEvent{
		UserID:     userID,
		Stake:      stake,
		Won:        won,
		Payout:     paid,
		NewBalance: newBalance,
		NewPool:    newPool,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.WagerResult{
		Won:           won,
		Stake:         stake,
		Payout:        paid,
		PoolShortfall: shortfall,
		NewBalance:    newBalance,
		NewPool:       newPool,
		Progression:   progression,
	}, nil
}
