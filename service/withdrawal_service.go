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

type withdrawalService struct {
	uowFactory UnitOfWorkFactory
	transfers  TransferClient
}

// NewWithdrawalService creates a new withdrawal service
func NewWithdrawalService(uowFactory UnitOfWorkFactory, transfers TransferClient) WithdrawalService {
	return &withdrawalService{
		uowFactory: uowFactory,
		transfers:  transfers,
	}
}

// RequestWithdrawal settles a withdrawal in two phases: the full amount is
// debited and committed first, then the payout and fee transfers are
// dispatched. The fee is carved out of the requested amount. A dispatch
// failure after the debit is recorded for manual reconciliation, never
// auto-refunded: the transfer may have left the wallet even when the RPC
// reported an error.
func (s *withdrawalService) RequestWithdrawal(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal, toAddress string) (*models.WithdrawalResult, error) {
	cfg := config.Get()

	if !asset.Valid() {
		return nil, fmt.Errorf("unknown asset %q", asset)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount must be positive")
	}
	if toAddress == "" {
		return nil, fmt.Errorf("withdrawal address is required")
	}
	if amount.GreaterThan(decimal.NewFromInt(cfg.MaxWithdrawal)) {
		return nil, fmt.Errorf("%w: amount %s exceeds limit %d",
			models.ErrWithdrawalLimitExceeded, amount, cfg.MaxWithdrawal)
	}

	fee := amount.Mul(cfg.WithdrawalFeeRate)
	payout := amount.Sub(fee)
	if !payout.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount %s does not cover the fee %s", amount, fee)
	}

	// Phase one: debit the account and persist the pending withdrawal.
	// Committing before dispatch means a crash mid-dispatch leaves a
	// pending row to reconcile instead of a phantom balance.
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	newBalance, err := uow.AccountRepository().Debit(ctx, userID, asset, amount)
	if err != nil {
		return nil, err
	}

	withdrawal := &models.Withdrawal{
		UserID:    userID,
		Asset:     asset,
		Amount:    amount,
		Fee:       fee,
		Payout:    payout,
		ToAddress: toAddress,
		Status:    models.WithdrawalStatusPending,
	}
	if err := uow.WithdrawalRepository().Create(ctx, withdrawal); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		UserID:          userID,
		Asset:           asset,
		BalanceBefore:   newBalance.Add(amount),
		BalanceAfter:    newBalance,
		ChangeAmount:    amount.Neg(),
		TransactionType: models.TransactionTypeWithdrawal,
		Metadata: map[string]any{
			"withdrawal_id": withdrawal.ID,
			"fee":           fee.String(),
			"to_address":    toAddress,
		},
	}
	if err := uow.LedgerEntryRepository().Record(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record withdrawal: %w", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Phase two: dispatch the on-chain transfers.
	payoutRef, err := s.transfers.Send(ctx, asset, toAddress, payout)
	if err != nil {
		s.markDispatchFailed(ctx, withdrawal, err.Error(), nil)
		return nil, fmt.Errorf("%w: payout transfer: %v", models.ErrTransferDispatchFailed, err)
	}

	feeRef, err := s.transfers.Send(ctx, asset, cfg.OperatorAddress, fee)
	if err != nil {
		s.markDispatchFailed(ctx, withdrawal, err.Error(), &payoutRef)
		return nil, fmt.Errorf("%w: fee transfer: %v", models.ErrTransferDispatchFailed, err)
	}

	// Phase three: record the dispatched references.
	settleUow := s.uowFactory.Create()
	if err := settleUow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer settleUow.Rollback()

	if err := settleUow.WithdrawalRepository().MarkSettled(ctx, withdrawal.ID, payoutRef, feeRef); err != nil {
		return nil, err
	}
	settleUow.EventBus().Publish(events.WithdrawalSettledEvent{
		UserID:       userID,
		WithdrawalID: withdrawal.ID,
		Asset:        asset,
		Amount:       amount,
		Payout:       payout,
		Reference:    payoutRef,
	})
	if err := settleUow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"userID":       userID,
		"withdrawalID": withdrawal.ID,
		"asset":        asset,
		"amount":       amount,
		"payout":       payout,
		"payoutRef":    payoutRef,
	}).Info("Withdrawal settled")

	return &models.WithdrawalResult{
		WithdrawalID: withdrawal.ID,
		Amount:       amount,
		Fee:          fee,
		Payout:       payout,
		Reference:    payoutRef,
		NewBalance:   newBalance,
	}, nil
}

// markDispatchFailed records a transfer failure in its own transaction.
// Best effort: the debit already committed and must stand either way.
func (s *withdrawalService) markDispatchFailed(ctx context.Context, w *models.Withdrawal, reason string, payoutRef *string) {
	log.WithFields(log.Fields{
		"userID":       w.UserID,
		"withdrawalID": w.ID,
		"reason":       reason,
	}).Error("Withdrawal dispatch failed, manual reconciliation required")

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Error("Failed to begin transaction for dispatch failure")
		return
	}
	defer uow.Rollback()

	if err := uow.WithdrawalRepository().MarkDispatchFailed(ctx, w.ID, reason, payoutRef); err != nil {
		log.WithError(err).Error("Failed to mark withdrawal dispatch-failed")
		return
	}
	uow.EventBus().Publish(events.WithdrawalDispatchFailedEvent{
		UserID:       w.UserID,
		WithdrawalID: w.ID,
		Reason:       reason,
	})
	if err := uow.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit dispatch failure")
	}
}
