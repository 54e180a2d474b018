package delegation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/expense"
	"github.com/kharcha-app/kharcha/internal/ids"
	"github.com/kharcha-app/kharcha/internal/invoice"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/logging"
	"github.com/kharcha-app/kharcha/internal/notification"
	"github.com/kharcha-app/kharcha/internal/reversal"
	"github.com/kharcha-app/kharcha/internal/transaction"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

const ownerID = "owner-1"

var (
	owner = domain.Owner(ownerID)
	sub   = domain.SubAccount("sub-1", ownerID)
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	svc      *Service
	wallets  *wallet.Service
	expenses *expense.Service
	invoices *invoice.Service
	events   *notification.Recorder
	cash     domain.Wallet
	bank     domain.Wallet
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
	bank, err := wallets.CreateBank(ctx, wallet.CreateBankInput{OwnerID: ownerID, BankName: "PNB", AccountNumber: "3321", OpeningBalance: dec(4000)})
	require.NoError(t, err)
	gen := ids.NewGenerator()
	rev := reversal.NewService(store, wallets, rec, logger)
	invoices := invoice.NewService(store, wallets, gen, ids.NewAllocator(gen, 5), rev, rec, logger)
	expenses := expense.NewService(store, wallets, invoices, gen, rev, rec, logger)
	transactions := transaction.NewService(store, wallets, gen, rev, rec, logger)
	return fixture{
		svc:      NewService(store, expenses, transactions, rev, rec, logger),
		wallets:  wallets,
		expenses: expenses,
		invoices: invoices,
		events:   rec,
		cash:     cash,
		bank:     bank,
	}
}

func (f fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.Get(context.Background(), ownerID, id)
	require.NoError(t, err)
	return w.Balance
}

func expensePayload(amount int64) domain.ExpenseRequestPayload {
	return domain.ExpenseRequestPayload{Amount: dec(amount), Category: "travel", PaymentMethod: domain.PaymentCash}
}

func TestDelegatedExpenseLifecycle(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	req, err := f.svc.Submit(ctx, sub, expensePayload(300))
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, req.Status)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))

	out, err := f.svc.Approve(ctx, owner, req.ID, ApproveInput{PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, out.Request.Status)
	assert.Equal(t, ownerID, out.Request.ReviewerID)
	assert.NotEmpty(t, out.Request.CorrelationID)
	require.NotNil(t, out.Expense)
	assert.Equal(t, "sub-1", out.Expense.Expense.CreatedBy)
	assert.Equal(t, req.ID, out.Expense.Expense.RequestID)
	assert.Equal(t, domain.EventRequestApproved, out.Event.Kind)
	assert.True(t, out.Event.NetDelta().Equal(dec(-300)))
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(700)))
	assert.True(t, f.balance(t, f.bank.ID).Equal(dec(4000)))

	_, err = f.expenses.Delete(ctx, owner, out.Expense.Expense.ID)
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))

	got, err := f.svc.Get(ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestDeleted, got.Status)

	_, err = f.svc.Delete(ctx, owner, req.ID)
	assert.True(t, errors.Is(err, domain.ErrAlreadyProcessed))
}

func TestConcurrentApprovalMaterializesOnce(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	req, err := f.svc.Submit(ctx, sub, expensePayload(300))
	require.NoError(t, err)

	const n = 16
	var (
		wg        sync.WaitGroup
		ok        atomic.Int32
		processed atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(ctx, owner, req.ID, ApproveInput{PaymentMethod: domain.PaymentCash})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrAlreadyProcessed):
				processed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), processed.Load())
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(700)))

	list, err := f.expenses.List(ctx, owner, domain.Query{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRejectHasNoEffect(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	req, err := f.svc.Submit(ctx, sub, expensePayload(300))
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, owner, req.ID, " not approved this month ")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, rejected.Status)
	assert.Equal(t, "not approved this month", rejected.Reason)

	_, err = f.svc.Approve(ctx, owner, req.ID, ApproveInput{})
	assert.True(t, errors.Is(err, domain.ErrAlreadyProcessed))
	_, err = f.svc.Reject(ctx, owner, req.ID, "")
	assert.True(t, errors.Is(err, domain.ErrAlreadyProcessed))
	_, err = f.svc.Delete(ctx, owner, req.ID)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))
	assert.True(t, f.balance(t, f.bank.ID).Equal(dec(4000)))
}

func TestTransactionRequestUsesPayloadWallet(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	req, err := f.svc.Submit(ctx, sub, domain.TransactionRequestPayload{
		Amount:        dec(250),
		Direction:     domain.Credit,
		PaymentMethod: domain.PaymentBank,
		WalletID:      f.bank.ID,
		Category:      "sales",
	})
	require.NoError(t, err)

	out, err := f.svc.Approve(ctx, owner, req.ID, ApproveInput{})
	require.NoError(t, err)
	require.NotNil(t, out.Txn)
	assert.Equal(t, f.bank.ID, out.Txn.WalletID)
	assert.True(t, f.balance(t, f.bank.ID).Equal(dec(4250)))

	ev, err := f.svc.Delete(ctx, owner, req.ID)
	require.NoError(t, err)
	assert.True(t, ev.NetDelta().Equal(dec(-250)))
	assert.True(t, f.balance(t, f.bank.ID).Equal(dec(4000)))

	got, err := f.svc.Get(ctx, sub, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestDeleted, got.Status)
}

func TestStrictApprovalFailureKeepsRequestPending(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	req, err := f.svc.Submit(ctx, sub, expensePayload(1500))
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, owner, req.ID, ApproveInput{PaymentMethod: domain.PaymentCash})
	require.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	got, err := f.svc.Get(ctx, owner, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, got.Status)
	assert.Empty(t, got.CorrelationID)

	_, err = f.svc.Approve(ctx, owner, req.ID, ApproveInput{PaymentMethod: domain.PaymentBank, WalletID: f.bank.ID})
	require.NoError(t, err)
	assert.True(t, f.balance(t, f.bank.ID).Equal(dec(2500)))
}

func TestRoleChecks(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, owner, expensePayload(10))
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = f.svc.Submit(ctx, sub, expensePayload(0))
	assert.True(t, errors.Is(err, domain.ErrValidation))

	req, err := f.svc.Submit(ctx, sub, expensePayload(10))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, sub, req.ID, ApproveInput{})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
	_, err = f.svc.Approve(ctx, domain.Owner("someone-else"), req.ID, ApproveInput{})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	other := domain.SubAccount("sub-2", ownerID)
	_, err = f.svc.Get(ctx, other, req.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	mine, err := f.svc.List(ctx, other, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestInvoiceDownloadApproval(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	inv, err := f.invoices.Create(ctx, owner, invoice.CreateInput{
		Direction: domain.InvoiceIn,
		Items:     []invoice.ItemInput{{Description: "Consulting", Quantity: dec(1), UnitPrice: dec(900)}},
	})
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, sub, domain.InvoiceDownloadPayload{InvoiceID: "missing"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	req, err := f.svc.Submit(ctx, sub, domain.InvoiceDownloadPayload{InvoiceID: inv.ID})
	require.NoError(t, err)
	allowed, err := f.svc.CanDownload(ctx, sub, inv.ID)
	require.NoError(t, err)
	assert.False(t, allowed)

	out, err := f.svc.Approve(ctx, owner, req.ID, ApproveInput{})
	require.NoError(t, err)
	assert.True(t, out.Event.NetDelta().IsZero())
	allowed, err = f.svc.CanDownload(ctx, sub, inv.ID)
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = f.svc.Delete(ctx, owner, req.ID)
	require.NoError(t, err)
	allowed, err = f.svc.CanDownload(ctx, sub, inv.ID)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.True(t, f.balance(t, f.cash.ID).Equal(dec(1000)))
}

// orderedStore records the order in which a unit of work takes its locks.
type orderedStore struct {
	ledger.Store
	calls []string
}

func (o *orderedStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return o.Store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, &orderedTx{Tx: tx, store: o})
	})
}

type orderedTx struct {
	ledger.Tx
	store *orderedStore
}

func (o *orderedTx) LockCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) error {
	o.store.calls = append(o.store.calls, "correlation")
	return o.Tx.LockCorrelation(ctx, ownerID, id)
}

func (o *orderedTx) LockRequest(ctx context.Context, ownerID, id string) (domain.DelegationRequest, error) {
	o.store.calls = append(o.store.calls, "request")
	return o.Tx.LockRequest(ctx, ownerID, id)
}

func TestDeleteLocksCorrelationBeforeRequestRow(t *testing.T) {
	ctx := context.Background()
	logger := logging.Discard()
	rec := &notification.Recorder{}
	ordered := &orderedStore{Store: ledger.NewInMemory()}
	wallets := wallet.NewService(ordered, false, logger)
	cash, err := wallets.EnsureCash(ctx, ownerID, dec(1000))
	require.NoError(t, err)
	gen := ids.NewGenerator()
	rev := reversal.NewService(ordered, wallets, rec, logger)
	invoices := invoice.NewService(ordered, wallets, gen, ids.NewAllocator(gen, 5), rev, rec, logger)
	expenses := expense.NewService(ordered, wallets, invoices, gen, rev, rec, logger)
	svc := NewService(ordered, expenses, transaction.NewService(ordered, wallets, gen, rev, rec, logger), rev, rec, logger)

	req, err := svc.Submit(ctx, sub, expensePayload(250))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, owner, req.ID, ApproveInput{})
	require.NoError(t, err)

	ordered.calls = nil
	_, err = svc.Delete(ctx, owner, req.ID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ordered.calls), 2)
	assert.Equal(t, []string{"correlation", "request"}, ordered.calls[:2])

	w, err := wallets.Get(ctx, ownerID, cash.ID)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec(1000)))
}
