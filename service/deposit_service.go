package service

import (
	"context"
	"fmt"

	"bankroll/config"
	"bankroll/events"
	"bankroll/models"

	log "github.com/sirupsen/logrus"
)

type depositService struct {
	uowFactory UnitOfWorkFactory
}

// NewDepositService creates a new deposit service
func NewDepositService(uowFactory UnitOfWorkFactory) DepositService {
	return &depositService{
		uowFactory: uowFactory,
	}
}

// ProcessDeposit reconciles one observed on-chain transfer. Events arrive
// at-least-once, so the (tx hash, vout) identity decides whether to credit:
// a replay is a clean no-op. A sender address with no registered account is
// logged and dropped; returning an error would only make the watcher retry
// an event that can never match.
func (s *depositService) ProcessDeposit(ctx context.Context, event *models.DepositEvent) (*models.DepositResult, error) {
	if !event.Asset.Valid() {
		return nil, fmt.Errorf("deposit %s:%d has unknown asset %q", event.TxHash, event.TxVout, event.Asset)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	account, err := uow.AccountRepository().GetByAddress(ctx, event.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to look up deposit address: %w", err)
	}
	if account == nil {
		log.WithFields(log.Fields{
			"fromAddress": event.FromAddress,
			"asset":       event.Asset,
			"amount":      event.Amount,
			"txHash":      event.TxHash,
		}).Warn("Deposit from unregistered address, dropping")

		uow.EventBus().Publish(events.DepositUnmatchedEvent{
			FromAddress: event.FromAddress,
			Asset:       event.Asset,
			Amount:      event.Amount,
			TxHash:      event.TxHash,
		})
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return &models.DepositResult{Matched: false}, nil
	}

	deposit := &models.Deposit{
		UserID:      account.UserID,
		FromAddress: event.FromAddress,
		Asset:       event.Asset,
		Amount:      event.Amount,
		TxHash:      event.TxHash,
		TxVout:      event.TxVout,
		BlockHeight: event.BlockHeight,
	}
	inserted, err := uow.DepositRepository().Insert(ctx, deposit)
	if err != nil {
		return nil, err
	}
	if !inserted {
		log.WithFields(log.Fields{
			"userID": account.UserID,
			"txHash": event.TxHash,
			"txVout": event.TxVout,
		}).Debug("Deposit already credited, skipping replay")
		return &models.DepositResult{
			Matched:   true,
			Duplicate: true,
			UserID:    account.UserID,
			Asset:     event.Asset,
			Amount:    event.Amount,
		}, nil
	}

	// Re-read under a row lock before mutating: the XP award below is
	// computed from this struct and must not race a concurrent operation on
	// the same account.
	account, err = uow.AccountRepository().GetByUserIDForUpdate(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	newBalance, err := uow.AccountRepository().Credit(ctx, account.UserID, event.Asset, event.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to credit deposit: %w", err)
	}

	entry := &models.LedgerEntry{
		UserID:          account.UserID,
		Asset:           event.Asset,
		BalanceBefore:   newBalance.Sub(event.Amount),
		BalanceAfter:    newBalance,
		ChangeAmount:    event.Amount,
		TransactionType: models.TransactionTypeDeposit,
		Metadata: map[string]any{
			"tx_hash":      event.TxHash,
			"tx_vout":      event.TxVout,
			"block_height": event.BlockHeight,
		},
	}
	if err := uow.LedgerEntryRepository().Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	if _, err := applyExperience(ctx, uow, account, config.Get().XPPerDeposit); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.DepositCreditedEvent{
		UserID:     account.UserID,
		Asset:      event.Asset,
		Amount:     event.Amount,
		TxHash:     event.TxHash,
		NewBalance: newBalance,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":  account.UserID,
		"asset":   event.Asset,
		"amount":  event.Amount,
		"txHash":  event.TxHash,
		"balance": newBalance,
	}).Info("Deposit credited")

	return &models.DepositResult{
		Matched:    true,
		Credited:   true,
		UserID:     account.UserID,
		Asset:      event.Asset,
		Amount:     event.Amount,
		NewBalance: newBalance,
	}, nil
}
