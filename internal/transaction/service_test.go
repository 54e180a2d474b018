package transaction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ids"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/logging"
	"github.com/kharcha-app/kharcha/internal/notification"
	"github.com/kharcha-app/kharcha/internal/reversal"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

const ownerID = "owner-1"

var owner = domain.Owner(ownerID)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	svc     *Service
	wallets *wallet.Service
	events  *notification.Recorder
	cash    domain.Wallet
	bank    domain.Wallet
}

func newFixture(t *testing.T, strict bool) fixture {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewInMemory()
	logger := logging.Discard()
	rec := &notification.Recorder{}
	wallets := wallet.NewService(store, strict, logger)
	cash, err := wallets.EnsureCash(ctx, ownerID, dec(1000))
	require.NoError(t, err)
	bank, err := wallets.CreateBank(ctx, wallet.CreateBankInput{OwnerID: ownerID, BankName: "HDFC", AccountNumber: "50100", OpeningBalance: dec(5000)})
	require.NoError(t, err)
	rev := reversal.NewService(store, wallets, rec, logger)
	return fixture{
		svc:     NewService(store, wallets, ids.NewGenerator(), rev, rec, logger),
		wallets: wallets,
		events:  rec,
		cash:    cash,
		bank:    bank,
	}
}

func (f fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), ownerID, id)
	require.NoError(t, err)
	return w.Balance
}

func TestCreateDebitsResolvedWalletOnce(t *testing.T) {
	f := newFixture(t, false)

	tr, err := f.svc.Create(context.Background(), owner, CreateInput{Amount: dec(250), Direction: domain.Debit, PaymentMethod: domain.PaymentCash, Category: "fuel"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(tr.CorrelationID), "TXN-"))
	assert.Equal(t, f.cash.ID, tr.WalletID)
	assert.Equal(t, domain.PaymentCash, tr.PaymentMethod)
	assert.Equal(t, ownerID, tr.CreatedBy)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(750)))

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].NetDelta().Equal(dec(-250)))
}

func TestCreateCreditsBankWallet(t *testing.T) {
	f := newFixture(t, false)

	tr, err := f.svc.Create(context.Background(), owner, CreateInput{Amount: decimal.RequireFromString("99.50"), Direction: domain.Credit, PaymentMethod: domain.PaymentBank, WalletID: f.bank.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentBank, tr.PaymentMethod)
	assert.True(t, f.balance(t, f.bank.ID).Equal(decimal.RequireFromString("5099.50")))
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))
}

func TestCreateValidatesBeforeTouchingWallet(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, owner, CreateInput{Amount: dec(0), Direction: domain.Debit})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.svc.Create(ctx, owner, CreateInput{Amount: decimal.RequireFromString("1.005"), Direction: domain.Debit})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.svc.Create(ctx, owner, CreateInput{Amount: dec(5), Direction: "sideways"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.svc.Create(ctx, owner, CreateInput{Amount: dec(5), Direction: domain.Debit, PaymentMethod: domain.PaymentBank, WalletID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))
	assert.Empty(t, f.events.Events())
}

func TestSubAccountCannotCreateDirectly(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.Create(context.Background(), domain.SubAccount("sub-1", ownerID), CreateInput{Amount: dec(5), Direction: domain.Debit})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestStrictModeRollsBack(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, owner, CreateInput{Amount: dec(1500), Direction: domain.Debit})
	require.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	list, err := f.svc.List(ctx, owner, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))
}

func TestDeleteReversesExactlyOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tr, err := f.svc.Create(ctx, owner, CreateInput{Amount: dec(400), Direction: domain.Credit})
	require.NoError(t, err)
	require.True(t, f.balance(t, f.cash.ID).Equal(dec(1400)))

	ev, err := f.svc.Delete(ctx, owner, tr.ID)
	require.NoError(t, err)
	assert.True(t, ev.NetDelta().Equal(dec(-400)))
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))

	_, err = f.svc.Delete(ctx, owner, tr.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))
}

func TestAdjustIsFunding(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	adj, err := f.svc.Adjust(ctx, owner, f.cash.ID, dec(1200), "counted drawer")
	require.NoError(t, err)
	assert.Equal(t, domain.TagAdjustment, adj.Tag)
	assert.Equal(t, domain.Credit, adj.Direction)
	assert.True(t, adj.Amount.Equal(dec(200)))
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1200)))

	_, err = f.svc.Adjust(ctx, owner, f.cash.ID, dec(1200), "")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Delete(ctx, owner, adj.ID)
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1200)))
}

func TestAdjustRejectsSubPaisaTarget(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Adjust(ctx, owner, f.cash.ID, decimal.RequireFromString("1000.005"), "")
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))
}

func TestUpdateTouchesDescriptiveFieldsOnly(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	tr, err := f.svc.Create(ctx, owner, CreateInput{Amount: dec(10), Direction: domain.Debit, Category: "misc"})
	require.NoError(t, err)

	category := "  stationery "
	updated, err := f.svc.Update(ctx, owner, tr.ID, UpdateInput{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "stationery", updated.Category)
	assert.True(t, updated.Amount.Equal(dec(10)))
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(990)))
}

func TestListScopesSubAccounts(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, owner, CreateInput{Amount: dec(10), Direction: domain.Debit})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, owner, domain.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	mine, err := f.svc.List(ctx, domain.SubAccount("sub-1", ownerID), domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, mine)

	_, err = f.svc.Get(ctx, domain.SubAccount("sub-1", ownerID), all[0].ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
