package service

import (
	"context"
	"time"

	"bankroll/events"
	"bankroll/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByUserIDForUpdate(ctx context.Context, userID int64) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByAddress(ctx context.Context, address string) (*models.Account, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, userID int64, address string) (*models.Account, error) {
	args := m.Called(ctx, userID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) RebindAddress(ctx context.Context, userID int64, address string) error {
	args := m.Called(ctx, userID, address)
	return args.Error(0)
}

func (m *MockAccountRepository) Credit(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, asset, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccountRepository) Debit(ctx context.Context, userID int64, asset models.Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, asset, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockAccountRepository) RecordWager(ctx context.Context, userID int64, stake decimal.Decimal, won bool, payout decimal.Decimal) error {
	args := m.Called(ctx, userID, stake, won, payout)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateProgression(ctx context.Context, userID int64, xp int64, level int) error {
	args := m.Called(ctx, userID, xp, level)
	return args.Error(0)
}

func (m *MockAccountRepository) TouchLogin(ctx context.Context, userID int64, streak int, at time.Time) error {
	args := m.Called(ctx, userID, streak, at)
	return args.Error(0)
}

func (m *MockAccountRepository) TotalStableBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockPoolRepository is a mock implementation of PoolRepository
type MockPoolRepository struct {
	mock.Mock
}

func (m *MockPoolRepository) Get(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPoolRepository) GetForUpdate(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPoolRepository) Credit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPoolRepository) Debit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPoolRepository) DebitUpTo(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(decimal.Decimal), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *MockPoolRepository) Reset(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockDepositRepository is a mock implementation of DepositRepository
type MockDepositRepository struct {
	mock.Mock
}

func (m *MockDepositRepository) Insert(ctx context.Context, deposit *models.Deposit) (bool, error) {
	args := m.Called(ctx, deposit)
	return args.Bool(0), args.Error(1)
}

func (m *MockDepositRepository) GetByTx(ctx context.Context, txHash string, txVout uint32) (*models.Deposit, error) {
	args := m.Called(ctx, txHash, txVout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Deposit), args.Error(1)
}

func (m *MockDepositRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Deposit, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Deposit), args.Error(1)
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository
type MockWithdrawalRepository struct {
	mock.Mock
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, w *models.Withdrawal) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) MarkSettled(ctx context.Context, id int64, payoutRef, feeRef string) error {
	args := m.Called(ctx, id, payoutRef, feeRef)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) MarkDispatchFailed(ctx context.Context, id int64, reason string, payoutRef *string) error {
	args := m.Called(ctx, id, reason, payoutRef)
	return args.Error(0)
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id int64) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *MockWithdrawalRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.Withdrawal, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Withdrawal), args.Error(1)
}

// MockLedgerEntryRepository is a mock implementation of LedgerEntryRepository
type MockLedgerEntryRepository struct {
	mock.Mock
}

func (m *MockLedgerEntryRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerEntryRepository) GetByUser(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LedgerEntry), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// recordingPublisher collects published events without expectations, for
// tests that only care about side effects elsewhere.
type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(event events.Event) {
	p.published = append(p.published, event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Begin, Commit and
// Rollback are expectation-driven; the repositories are plain fields set
// via SetRepositories.
type MockUnitOfWork struct {
	mock.Mock
	accountRepo    AccountRepository
	poolRepo       PoolRepository
	depositRepo    DepositRepository
	withdrawalRepo WithdrawalRepository
	ledgerRepo     LedgerEntryRepository
	publisher      EventPublisher
}

// SetRepositories configures the repositories this unit of work hands out
func (m *MockUnitOfWork) SetRepositories(
	accountRepo AccountRepository,
	poolRepo PoolRepository,
	depositRepo DepositRepository,
	withdrawalRepo WithdrawalRepository,
	ledgerRepo LedgerEntryRepository,
) {
	m.accountRepo = accountRepo
	m.poolRepo = poolRepo
	m.depositRepo = depositRepo
	m.withdrawalRepo = withdrawalRepo
	m.ledgerRepo = ledgerRepo
}

// SetEventPublisher overrides the default event recorder
func (m *MockUnitOfWork) SetEventPublisher(p EventPublisher) {
	m.publisher = p
}

// PublishedEvents returns the events collected by the default recorder
func (m *MockUnitOfWork) PublishedEvents() []events.Event {
	if rec, ok := m.publisher.(*recordingPublisher); ok {
		return rec.published
	}
	return nil
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository {
	return m.accountRepo
}

func (m *MockUnitOfWork) PoolRepository() PoolRepository {
	return m.poolRepo
}

func (m *MockUnitOfWork) DepositRepository() DepositRepository {
	return m.depositRepo
}

func (m *MockUnitOfWork) WithdrawalRepository() WithdrawalRepository {
	return m.withdrawalRepo
}

func (m *MockUnitOfWork) LedgerEntryRepository() LedgerEntryRepository {
	return m.ledgerRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	if m.publisher == nil {
		m.publisher = &recordingPublisher{}
	}
	return m.publisher
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockTransferClient is a mock implementation of TransferClient
type MockTransferClient struct {
	mock.Mock
}

func (m *MockTransferClient) Send(ctx context.Context, asset models.Asset, toAddress string, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, asset, toAddress, amount)
	return args.String(0), args.Error(1)
}

// fixedOutcomeSource returns a predetermined sequence of draws, repeating
// the last value once exhausted.
type fixedOutcomeSource struct {
	draws []float64
	next  int
}

func (s *fixedOutcomeSource) Float64() (float64, error) {
	if len(s.draws) == 0 {
		return 0.5, nil
	}
	d := s.draws[s.next]
	if s.next < len(s.draws)-1 {
		s.next++
	}
	return d, nil
}
