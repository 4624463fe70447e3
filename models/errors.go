package models

import "errors"

// Error taxonomy shared by the repository and service layers. Validation
// errors are returned before any mutation; dispatch failures after a
// committed debit are operational incidents and are never auto-reversed.
var (
	// ErrNotRegistered means the user has no account.
	ErrNotRegistered = errors.New("account not registered")

	// ErrInvalidStake means the stake is not in the allowed set.
	ErrInvalidStake = errors.New("invalid stake")

	// ErrInsufficientFunds means an account debit would go negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientPool means a pool debit would go negative.
	ErrInsufficientPool = errors.New("insufficient pool")

	// ErrWithdrawalLimitExceeded means the requested amount is above the
	// per-transaction withdrawal cap.
	ErrWithdrawalLimitExceeded = errors.New("withdrawal limit exceeded")

	// ErrTransferDispatchFailed means an on-chain transfer could not be
	// dispatched after the account debit committed. Requires manual
	// reconciliation; the debit is not refunded automatically.
	ErrTransferDispatchFailed = errors.New("transfer dispatch failed")

	// ErrAddressInUse means the address is already bound to another account.
	ErrAddressInUse = errors.New("address already bound to another account")
)
