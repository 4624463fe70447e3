package service

import (
	"context"
	"fmt"
	"time"

	"bankroll/models"

	log "github.com/sirupsen/logrus"
)

type accountService struct {
	uowFactory UnitOfWorkFactory
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory) AccountService {
	return &accountService{
		uowFactory: uowFactory,
	}
}

// Register creates an account bound to the given deposit address. Repeat
// registration with the same address returns the existing account; with a
// new address it rebinds the account. An address already bound to a
// different account is rejected, since deposits are matched by sender
// address and a shared address would credit the wrong account.
func (s *accountService) Register(ctx context.Context, userID int64, address string) (*models.Account, error) {
	if address == "" {
		return nil, fmt.Errorf("deposit address is required")
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback() // No-op if already committed

	holder, err := uow.AccountRepository().GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to check address: %w", err)
	}
	if holder != nil && holder.UserID != userID {
		return nil, fmt.Errorf("address %s: %w", address, models.ErrAddressInUse)
	}

	account, err := uow.AccountRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	switch {
	case account == nil:
		account, err = uow.AccountRepository().Create(ctx, userID, address)
		if err != nil {
			return nil, err
		}
		log.WithFields(log.Fields{
			"userID":  userID,
			"address": address,
		}).Info("Account registered")

	case account.Address != address:
		if err := uow.AccountRepository().RebindAddress(ctx, userID, address); err != nil {
			return nil, err
		}
		account.Address = address
		log.WithFields(log.Fields{
			"userID":  userID,
			"address": address,
		}).Info("Account address rebound")
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

// GetAccount retrieves an account by user identity
func (s *accountService) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	account, err := uow.AccountRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", userID, models.ErrNotRegistered)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return account, nil
}

// RecordLogin updates the account's daily login streak. Days are compared
// in UTC: a second login on the same day is a no-op, the day after extends
// the streak, and any longer gap resets it to one.
func (s *accountService) RecordLogin(ctx context.Context, userID int64, at time.Time) (*models.Account, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	// The new streak is computed from this struct, so the row stays locked
	// until commit.
	account, err := uow.AccountRepository().GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("account %d: %w", userID, models.ErrNotRegistered)
	}

	streak := 1
	if account.LastLoginAt != nil {
		last := account.LastLoginAt.UTC()
		today := at.UTC().Truncate(24 * time.Hour)
		lastDay := last.Truncate(24 * time.Hour)

		switch today.Sub(lastDay) {
		case 0:
			// Already logged in today.
			if err := uow.Commit(); err != nil {
				return nil, fmt.Errorf("failed to commit transaction: %w", err)
			}
			return account, nil
		case 24 * time.Hour:
			streak = account.LoginStreak + 1
		}
	}

	if err := uow.AccountRepository().TouchLogin(ctx, userID, streak, at.UTC()); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	account.LoginStreak = streak
	loginAt := at.UTC()
	account.LastLoginAt = &loginAt
	return account, nil
}
