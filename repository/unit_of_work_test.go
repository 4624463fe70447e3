package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"bankroll/config"
	"bankroll/events"
	"bankroll/models"
	"bankroll/repository/testutil"
	"bankroll/service"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitPersistsAndFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	eventBus := events.NewBus()
	flushed := make(chan events.Event, 1)
	eventBus.Subscribe(events.EventTypeWagerSettled, func(ctx context.Context, e events.Event) {
		flushed <- e
	})

	accounts := NewAccountRepository(testDB.DB)
	_, err := accounts.Create(ctx, 500, "DsAddrUoW")
	require.NoError(t, err)

	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err = uow.AccountRepository().Credit(ctx, 500, models.AssetStable, decimal.NewFromInt(100))
	require.NoError(t, err)
	uow.EventBus().Publish(events.WagerSettledEvent{UserID: 500})

	// Nothing flushed before commit
	select {
	case <-flushed:
		t.Fatal("event flushed before commit")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, uow.Commit())

	account, err := accounts.GetByUserID(ctx, 500)
	require.NoError(t, err)
	assert.True(t, account.BalanceStable.Equal(decimal.NewFromInt(100)))

	select {
	case e := <-flushed:
		assert.Equal(t, events.EventTypeWagerSettled, e.Type())
	case <-time.After(time.Second):
		t.Fatal("event was not flushed after commit")
	}
}

func TestUnitOfWork_RollbackDiscardsChangesAndEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	eventBus := events.NewBus()
	flushed := make(chan events.Event, 1)
	eventBus.Subscribe(events.EventTypeWagerSettled, func(ctx context.Context, e events.Event) {
		flushed <- e
	})

	accounts := NewAccountRepository(testDB.DB)
	_, err := accounts.Create(ctx, 501, "DsAddrUoWRollback")
	require.NoError(t, err)

	factory := NewUnitOfWorkFactory(testDB.DB, eventBus)
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	_, err = uow.AccountRepository().Credit(ctx, 501, models.AssetStable, decimal.NewFromInt(100))
	require.NoError(t, err)
	uow.EventBus().Publish(events.WagerSettledEvent{UserID: 501})

	require.NoError(t, uow.Rollback())

	account, err := accounts.GetByUserID(ctx, 501)
	require.NoError(t, err)
	assert.True(t, account.BalanceStable.IsZero())

	select {
	case <-flushed:
		t.Fatal("event flushed after rollback")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnitOfWork_RollbackAfterCommitIsNoop(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.Commit())
	assert.NoError(t, uow.Rollback())
}

func TestUnitOfWork_PanicsBeforeBegin(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	uow := factory.Create()

	assert.Panics(t, func() {
		uow.AccountRepository()
	})
}

// TestWagerConservation drives concurrent wagers through the real service
// stack and checks that money only ever moves between accounts and the pool.
func TestWagerConservation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping conservation test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	accounts := NewAccountRepository(testDB.DB)
	pool := NewPoolRepository(testDB.DB)

	const players = 4
	perPlayer := decimal.NewFromInt(10000)
	for i := int64(1); i <= players; i++ {
		_, err := accounts.Create(ctx, 600+i, "DsAddrConserve"+string(rune('A'+i)))
		require.NoError(t, err)
		_, err = accounts.Credit(ctx, 600+i, models.AssetStable, perPlayer)
		require.NoError(t, err)
	}

	seedPool := decimal.NewFromInt(500)
	_, err := pool.Credit(ctx, seedPool)
	require.NoError(t, err)

	initialTotal := perPlayer.Mul(decimal.NewFromInt(players)).Add(seedPool)

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	wagers := service.NewWagerService(factory, service.NewCryptoOutcomeSource())

	var wg sync.WaitGroup
	for i := int64(1); i <= players; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for n := 0; n < 25; n++ {
				_, err := wagers.PlaceWager(ctx, userID, decimal.NewFromInt(10))
				assert.NoError(t, err)
			}
		}(600 + i)
	}
	wg.Wait()

	accountTotal, err := accounts.TotalStableBalance(ctx)
	require.NoError(t, err)
	poolBalance, err := pool.Get(ctx)
	require.NoError(t, err)

	assert.True(t, accountTotal.Add(poolBalance).Equal(initialTotal),
		"accounts %s + pool %s != initial %s", accountTotal, poolBalance, initialTotal)
}

// TestProgressionUnderConcurrentWagers hammers one account with concurrent
// wagers and checks that no experience award is lost and no level reward is
// paid twice: the cumulative XP implied by the final level must equal what
// the recorded wins and losses handed out, and the ledger must hold exactly
// one reward entry per level gained.
func TestProgressionUnderConcurrentWagers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping progression race test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	accounts := NewAccountRepository(testDB.DB)
	pool := NewPoolRepository(testDB.DB)
	ledger := NewLedgerEntryRepository(testDB.DB)

	_, err := accounts.Create(ctx, 700, "DsAddrXPRace")
	require.NoError(t, err)
	_, err = accounts.Credit(ctx, 700, models.AssetStable, decimal.NewFromInt(100000))
	require.NoError(t, err)

	// Deep pool so every payout and level reward is fully funded
	_, err = pool.Credit(ctx, decimal.NewFromInt(100000))
	require.NoError(t, err)

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	wagers := service.NewWagerService(factory, service.NewCryptoOutcomeSource())

	const workers = 4
	const perWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < perWorker; n++ {
				_, err := wagers.PlaceWager(ctx, 700, decimal.NewFromInt(10))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	account, err := accounts.GetByUserID(ctx, 700)
	require.NoError(t, err)
	require.Equal(t, int64(workers*perWorker), account.WagerCount)

	// XP is stored relative to the level, so rebuild the lifetime total from
	// the thresholds crossed on the way up.
	totalXP := account.XP
	for l := 1; l < account.Level; l++ {
		totalXP += service.XPThreshold(l)
	}
	cfg := config.Get()
	expectedXP := account.WinCount*cfg.XPPerWin + account.LossCount*cfg.XPPerLoss
	assert.Equal(t, expectedXP, totalXP,
		"lifetime XP %d does not match %d wins and %d losses",
		totalXP, account.WinCount, account.LossCount)

	entries, err := ledger.GetByUser(ctx, 700, 1000)
	require.NoError(t, err)
	rewards := lo.CountBy(entries, func(e *models.LedgerEntry) bool {
		return e.TransactionType == models.TransactionTypeLevelReward
	})
	assert.Equal(t, account.Level-1, rewards)
}
