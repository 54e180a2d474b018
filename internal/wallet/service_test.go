package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/logging"
)

const owner = "owner-1"

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestEnsureCashIsIdempotent(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), false, logging.Discard())
	ctx := context.Background()

	first, err := svc.EnsureCash(ctx, owner, dec(100))
	require.NoError(t, err)
	second, err := svc.EnsureCash(ctx, owner, dec(999))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Balance.Equal(dec(100)))
	assert.Equal(t, domain.WalletCash, second.Kind)
}

func TestCreateBankAndList(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), false, logging.Discard())
	ctx := context.Background()
	_, err := svc.EnsureCash(ctx, owner, dec(100))
	require.NoError(t, err)

	bank, err := svc.CreateBank(ctx, CreateBankInput{OwnerID: owner, BankName: "SBI", AccountNumber: "12345", RoutingCode: "sbin0001", OpeningBalance: dec(2500)})
	require.NoError(t, err)
	assert.Equal(t, "SBIN0001", bank.RoutingCode)
	assert.Equal(t, "SBI", bank.Name)

	summary, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, summary.Wallets, 2)
	assert.True(t, summary.Total.Equal(dec(2600)))

	_, err = svc.CreateBank(ctx, CreateBankInput{OwnerID: owner, AccountNumber: "1"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestDebitAllowsNegativeByDefault(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), false, logging.Discard())
	ctx := context.Background()
	cash, err := svc.EnsureCash(ctx, owner, dec(100))
	require.NoError(t, err)

	w, err := svc.Debit(ctx, owner, cash.ID, dec(250))
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec(-150)))
}

func TestStrictModeRejectsOverdraft(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), true, logging.Discard())
	ctx := context.Background()
	cash, err := svc.EnsureCash(ctx, owner, dec(100))
	require.NoError(t, err)

	_, err = svc.Debit(ctx, owner, cash.ID, dec(250))
	require.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	got, err := svc.Get(ctx, owner, cash.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec(100)))

	_, err = svc.Debit(ctx, owner, cash.ID, dec(100))
	require.NoError(t, err)
}

func TestApplyRejectsNonPositive(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), false, logging.Discard())
	cash, err := svc.EnsureCash(context.Background(), owner, dec(0))
	require.NoError(t, err)

	_, err = svc.Credit(context.Background(), owner, cash.ID, dec(0))
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestWalletsAreScopedToOwner(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), false, logging.Discard())
	cash, err := svc.EnsureCash(context.Background(), owner, dec(10))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "someone-else", cash.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Credit(context.Background(), "someone-else", cash.ID, dec(1))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolve(t *testing.T) {
	store := ledger.NewInMemory()
	svc := NewService(store, false, logging.Discard())
	ctx := context.Background()
	bank, err := svc.CreateBank(ctx, CreateBankInput{OwnerID: owner, BankName: "ICICI", AccountNumber: "9"})
	require.NoError(t, err)

	err = store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := svc.Resolve(ctx, tx, owner, domain.PaymentCash, bank.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.WalletCash, w.Kind, "cash method ignores the bank id")

		w, err = svc.Resolve(ctx, tx, owner, domain.PaymentBank, "")
		require.NoError(t, err)
		assert.Equal(t, domain.WalletCash, w.Kind, "no bank id falls back to cash")

		w, err = svc.Resolve(ctx, tx, owner, domain.PaymentBank, bank.ID)
		require.NoError(t, err)
		assert.Equal(t, bank.ID, w.ID)
		assert.Equal(t, domain.PaymentBank, MethodOf(w))

		_, err = svc.Resolve(ctx, tx, owner, "card", bank.ID)
		assert.True(t, errors.Is(err, domain.ErrValidation))
		return nil
	})
	require.NoError(t, err)
}

func TestConcurrentDebitsDoNotLoseUpdates(t *testing.T) {
	svc := NewService(ledger.NewInMemory(), false, logging.Discard())
	ctx := context.Background()
	cash, err := svc.EnsureCash(ctx, owner, dec(1000))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Debit(ctx, owner, cash.ID, dec(10))
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, owner, cash.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec(500)))
}
