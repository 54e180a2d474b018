package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
)

func cashWallet(id, owner string, balance int64) domain.Wallet {
	now := time.Now().UTC()
	return domain.Wallet{ID: id, OwnerID: owner, Kind: domain.WalletCash, Balance: decimal.NewFromInt(balance), CreatedAt: now, UpdatedAt: now}
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertWallet(ctx, cashWallet("w1", "o1", 100))
	}))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.SaveBalance(ctx, "w1", decimal.NewFromInt(5), time.Now()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.Read(ctx, func(ctx context.Context, tx Tx) error {
		w, err := tx.GetWallet(ctx, "o1", "w1")
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(100)))
		return nil
	}))
}

func TestMemoryStoreReadIsReadOnly(t *testing.T) {
	store := NewInMemory()
	err := store.Read(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertWallet(ctx, cashWallet("w1", "o1", 0))
	})
	assert.Error(t, err)
}

func TestMemoryStoreScopesByOwnerAndSingleCash(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	err := store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		require.NoError(t, tx.InsertWallet(ctx, cashWallet("w1", "o1", 0)))
		return tx.InsertWallet(ctx, cashWallet("w2", "o1", 0))
	})
	assert.True(t, errors.Is(err, domain.ErrAlreadyProcessed))

	require.NoError(t, store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertWallet(ctx, cashWallet("w1", "o1", 0))
	}))
	err = store.Read(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.GetWallet(ctx, "o2", "w1")
		return err
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
