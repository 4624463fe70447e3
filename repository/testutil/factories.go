package testutil

import (
	"time"

	"bankroll/models"

	"github.com/shopspring/decimal"
)

// CreateTestAccount creates a test account with default values
func CreateTestAccount(userID int64, address string) *models.Account {
	now := time.Now()
	return &models.Account{
		UserID:        userID,
		Address:       address,
		BalanceNative: decimal.Zero,
		BalanceStable: decimal.NewFromInt(10000),
		Level:         1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CreateTestDeposit creates a test deposit with default values
func CreateTestDeposit(userID int64, txHash string, vout uint32) *models.Deposit {
	return &models.Deposit{
		UserID:      userID,
		FromAddress: "DsTestSenderAddress",
		Asset:       models.AssetNative,
		Amount:      decimal.NewFromInt(25),
		TxHash:      txHash,
		TxVout:      vout,
		BlockHeight: 100,
	}
}

// CreateTestWithdrawal creates a test withdrawal in pending state
func CreateTestWithdrawal(userID int64, amount decimal.Decimal) *models.Withdrawal {
	fee := amount.Mul(decimal.RequireFromString("0.01"))
	return &models.Withdrawal{
		UserID:    userID,
		Asset:     models.AssetStable,
		Amount:    amount,
		Fee:       fee,
		Payout:    amount.Sub(fee),
		ToAddress: "DsTestPayoutAddress",
		Status:    models.WithdrawalStatusPending,
	}
}
