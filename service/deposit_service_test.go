package service

import (
	"context"
	"testing"

	"bankroll/events"
	"bankroll/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDepositMocks() (*MockUnitOfWork, *MockUnitOfWorkFactory, *MockAccountRepository, *MockPoolRepository, *MockDepositRepository, *MockLedgerEntryRepository) {
	mockUoW := new(MockUnitOfWork)
	mockFactory := new(MockUnitOfWorkFactory)
	mockAccountRepo := new(MockAccountRepository)
	mockPoolRepo := new(MockPoolRepository)
	mockDepositRepo := new(MockDepositRepository)
	mockLedgerRepo := new(MockLedgerEntryRepository)

	mockUoW.SetRepositories(mockAccountRepo, mockPoolRepo, mockDepositRepo, nil, mockLedgerRepo)
	return mockUoW, mockFactory, mockAccountRepo, mockPoolRepo, mockDepositRepo, mockLedgerRepo
}

func testDepositEvent(txHash string) *models.DepositEvent {
	return &models.DepositEvent{
		FromAddress: "DsSender",
		Asset:       models.AssetNative,
		Amount:      decimal.NewFromInt(25),
		TxHash:      txHash,
		TxVout:      0,
		BlockHeight: 1200,
	}
}

func TestDepositService_Credited(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockAccountRepo, _, mockDepositRepo, mockLedgerRepo := newDepositMocks()

	service := NewDepositService(mockFactory)

	account := testAccount(7, 100)
	account.Address = "DsSender"
	event := testDepositEvent("dd44")

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByAddress", ctx, "DsSender").Return(account, nil)
	mockDepositRepo.On("Insert", ctx, mock.MatchedBy(func(d *models.Deposit) bool {
		return d.UserID == 7 && d.TxHash == "dd44" && d.TxVout == 0
	})).Return(true, nil)
	mockAccountRepo.On("GetByUserIDForUpdate", ctx, int64(7)).Return(account, nil)
	mockAccountRepo.On("Credit", ctx, int64(7), models.AssetNative, event.Amount).
		Return(decimal.NewFromInt(25), nil)
	mockAccountRepo.On("UpdateProgression", ctx, int64(7), int64(10), 1).Return(nil)
	mockLedgerRepo.On("Record", ctx, mock.MatchedBy(func(e *models.LedgerEntry) bool {
		return e.TransactionType == models.TransactionTypeDeposit && e.ChangeAmount.Equal(event.Amount)
	})).Return(nil)

	result, err := service.ProcessDeposit(ctx, event)

	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.True(t, result.Credited)
	assert.False(t, result.Duplicate)
	assert.Equal(t, int64(7), result.UserID)
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(25)))

	published := mockUoW.PublishedEvents()
	require.Len(t, published, 1)
	credited, ok := published[0].(events.DepositCreditedEvent)
	require.True(t, ok)
	assert.Equal(t, "dd44", credited.TxHash)

	mockDepositRepo.AssertExpectations(t)
	mockAccountRepo.AssertExpectations(t)
}

func TestDepositService_UnmatchedAddressIsDropped(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockAccountRepo, _, mockDepositRepo, _ := newDepositMocks()

	service := NewDepositService(mockFactory)

	event := testDepositEvent("ee55")

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Commit").Return(nil)
	mockUoW.On("Rollback").Return(nil)
	mockAccountRepo.On("GetByAddress", ctx, "DsSender").Return(nil, nil)

	result, err := service.ProcessDeposit(ctx, event)

	// Unmatched is not an error towards the watcher: retrying can never
	// make it match.
	require.NoError(t, err)
	assert.False(t, result.Matched)
	assert.False(t, result.Credited)

	mockDepositRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	mockAccountRepo.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	published := mockUoW.PublishedEvents()
	require.Len(t, published, 1)
	_, ok := published[0].(events.DepositUnmatchedEvent)
	assert.True(t, ok)
}

func TestDepositService_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mockUoW, mockFactory, mockAccountRepo, _, mockDepositRepo, _ := newDepositMocks()

	service := NewDepositService(mockFactory)

	account := testAccount(8, 100)
	account.Address = "DsSender"
	event := testDepositEvent("ff66")

	mockFactory.On("Create").Return(mockUoW)
	mockUoW.On("Begin", ctx).Return(nil)
	mockUoW.On("Rollback").Return(nil)

	mockAccountRepo.On("GetByAddress", ctx, "DsSender").Return(account, nil)
	mockDepositRepo.On("Insert", ctx, mock.AnythingOfType("*models.Deposit")).Return(false, nil)

	result, err := service.ProcessDeposit(ctx, event)

	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.True(t, result.Duplicate)
	assert.False(t, result.Credited)

	// A replayed event must not move any balance
	mockAccountRepo.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockAccountRepo.AssertNotCalled(t, "UpdateProgression", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDepositService_UnknownAsset(t *testing.T) {
	ctx := context.Background()
	_, mockFactory, _, _, _, _ := newDepositMocks()

	service := NewDepositService(mockFactory)

	event := testDepositEvent("gg77")
	event.Asset = "doge"

	_, err := service.ProcessDeposit(ctx, event)

	assert.Error(t, err)
	mockFactory.AssertNotCalled(t, "Create")
}
