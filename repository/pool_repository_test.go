package repository

import (
	"context"
	"testing"

	"bankroll/models"
	"bankroll/repository/testutil"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRepository_CreditDebit(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPoolRepository(testDB.DB)
	ctx := context.Background()

	t.Run("starts empty", func(t *testing.T) {
		balance, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.True(t, balance.IsZero())
	})

	t.Run("credit accumulates", func(t *testing.T) {
		balance, err := repo.Credit(ctx, decimal.NewFromInt(100))
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(100)))

		balance, err = repo.Credit(ctx, decimal.NewFromInt(50))
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(150)))
	})

	t.Run("debit within balance", func(t *testing.T) {
		balance, err := repo.Debit(ctx, decimal.NewFromInt(30))
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(120)))
	})

	t.Run("debit beyond balance fails and leaves balance intact", func(t *testing.T) {
		_, err := repo.Debit(ctx, decimal.NewFromInt(121))
		assert.ErrorIs(t, err, models.ErrInsufficientPool)

		balance, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.NewFromInt(120)))
	})
}

func TestPoolRepository_DebitUpTo(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPoolRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.Credit(ctx, decimal.NewFromInt(100))
	require.NoError(t, err)

	t.Run("fully covered", func(t *testing.T) {
		taken, remaining, err := repo.DebitUpTo(ctx, decimal.NewFromInt(40))
		require.NoError(t, err)
		assert.True(t, taken.Equal(decimal.NewFromInt(40)))
		assert.True(t, remaining.Equal(decimal.NewFromInt(60)))
	})

	t.Run("capped at available balance", func(t *testing.T) {
		taken, remaining, err := repo.DebitUpTo(ctx, decimal.NewFromInt(200))
		require.NoError(t, err)
		assert.True(t, taken.Equal(decimal.NewFromInt(60)))
		assert.True(t, remaining.IsZero())
	})

	t.Run("empty pool takes nothing", func(t *testing.T) {
		taken, remaining, err := repo.DebitUpTo(ctx, decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.True(t, taken.IsZero())
		assert.True(t, remaining.IsZero())
	})
}

func TestPoolRepository_Reset(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	repo := NewPoolRepository(testDB.DB)
	ctx := context.Background()

	_, err := repo.Credit(ctx, decimal.NewFromInt(150))
	require.NoError(t, err)

	captured, err := repo.Reset(ctx)
	require.NoError(t, err)
	assert.True(t, captured.Equal(decimal.NewFromInt(150)))

	balance, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	// Resetting an empty pool captures zero
	captured, err = repo.Reset(ctx)
	require.NoError(t, err)
	assert.True(t, captured.IsZero())
}

func TestPoolRepository_GetForUpdate(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	ctx := context.Background()
	poolRepo := NewPoolRepository(testDB.DB)
	_, err := poolRepo.Credit(ctx, decimal.NewFromInt(50))
	require.NoError(t, err)

	// Inside a transaction the captured value must stay authoritative until
	// commit: capture, add a stake, reset, and the captured pre-stake value
	// is what a jackpot would pay.
	err = testDB.DB.WithTransaction(ctx, func(tx pgx.Tx) error {
		txRepo := newPoolRepositoryWithTx(tx)

		captured, err := txRepo.GetForUpdate(ctx)
		require.NoError(t, err)
		assert.True(t, captured.Equal(decimal.NewFromInt(50)))

		if _, err := txRepo.Credit(ctx, decimal.NewFromInt(100)); err != nil {
			return err
		}
		_, err = txRepo.Reset(ctx)
		return err
	})
	require.NoError(t, err)

	balance, err := poolRepo.Get(ctx)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}
