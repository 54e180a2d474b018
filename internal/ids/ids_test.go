package ids

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
)

type fakeTx struct {
	ledger.Tx
	inUse   func(domain.CorrelationID) bool
	numbers []string
	taken   func(string) bool
	locked  int
}

func (f *fakeTx) CorrelationInUse(_ context.Context, id domain.CorrelationID) (bool, error) {
	return f.inUse(id), nil
}

func (f *fakeTx) LockInvoiceNumbers(context.Context, string, domain.InvoiceDirection) error {
	f.locked++
	return nil
}

func (f *fakeTx) InvoiceNumbers(context.Context, string, domain.InvoiceDirection, string) ([]string, error) {
	return f.numbers, nil
}

func (f *fakeTx) InvoiceNumberTaken(_ context.Context, _ string, _ domain.InvoiceDirection, n string) (bool, error) {
	if f.taken == nil {
		return false, nil
	}
	return f.taken(n), nil
}

func fixedGenerator() *Generator {
	g := NewGenerator()
	g.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return g
}

func TestFormatIsMonotonicUnderFrozenClock(t *testing.T) {
	g := fixedGenerator()
	a := string(g.Format(KindExpense))
	b := string(g.Format(KindExpense))

	assert.True(t, strings.HasPrefix(a, "EXP-1700000000000-"), a)
	assert.True(t, strings.HasPrefix(b, "EXP-1700000000001-"), b)
	assert.NotEqual(t, a, b)
}

func TestNewIDSkipsIdsInUse(t *testing.T) {
	g := fixedGenerator()
	calls := 0
	tx := &fakeTx{inUse: func(domain.CorrelationID) bool {
		calls++
		return calls < 3
	}}

	id, err := g.NewID(context.Background(), tx, KindTransaction)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(id), "TXN-1700000000002-"), id)
	assert.Equal(t, 3, calls)
}

func TestNewIDGivesUp(t *testing.T) {
	g := fixedGenerator()
	tx := &fakeTx{inUse: func(domain.CorrelationID) bool { return true }}

	_, err := g.NewID(context.Background(), tx, KindInvoice)
	require.Error(t, err)
}

func TestMaxSuffix(t *testing.T) {
	numbers := []string{"INV-0001", "INV-0012", "INV-draft", "BILL-0099", "INV-0003"}
	assert.Equal(t, int64(12), MaxSuffix(numbers, "INV-"))
	assert.Equal(t, int64(0), MaxSuffix(nil, "INV-"))
}

func TestAllocateIncrementsMaxSuffix(t *testing.T) {
	a := NewAllocator(fixedGenerator(), 3)
	tx := &fakeTx{numbers: []string{"INV-0001", "INV-0007", "INV-x"}}

	n, err := a.Allocate(context.Background(), tx, "owner", domain.InvoiceIn)
	require.NoError(t, err)
	assert.Equal(t, "INV-0008", n)
	assert.Equal(t, 1, tx.locked)
}

func TestAllocateUsesDirectionPrefix(t *testing.T) {
	a := NewAllocator(fixedGenerator(), 3)
	n, err := a.Allocate(context.Background(), &fakeTx{}, "owner", domain.InvoiceOut)
	require.NoError(t, err)
	assert.Equal(t, "BILL-0001", n)
}

func TestAllocateRetriesCollision(t *testing.T) {
	a := NewAllocator(fixedGenerator(), 3)
	tx := &fakeTx{
		numbers: []string{"INV-0002"},
		taken:   func(n string) bool { return n == "INV-0003" },
	}

	n, err := a.Allocate(context.Background(), tx, "owner", domain.InvoiceIn)
	require.NoError(t, err)
	assert.Equal(t, "INV-0004", n)
}

func TestAllocateFallsBackToTimestamp(t *testing.T) {
	a := NewAllocator(fixedGenerator(), 1)
	tx := &fakeTx{
		numbers: []string{"INV-0002"},
		taken:   func(n string) bool { return n == "INV-0003" },
	}

	n, err := a.Allocate(context.Background(), tx, "owner", domain.InvoiceIn)
	require.NoError(t, err)
	assert.Equal(t, "INV-T1700000000000", n)
}

func TestFallbackNumbersDoNotAdvanceSequence(t *testing.T) {
	assert.Equal(t, int64(1), MaxSuffix([]string{"INV-0001", "INV-T1760000000000"}, "INV-"))

	a := NewAllocator(fixedGenerator(), 3)
	tx := &fakeTx{numbers: []string{"INV-0001", "INV-T1760000000000"}}
	n, err := a.Allocate(context.Background(), tx, "owner", domain.InvoiceIn)
	require.NoError(t, err)
	assert.Equal(t, "INV-0002", n)
}

func TestAllocateRetriesPastSeveralCollisions(t *testing.T) {
	a := NewAllocator(fixedGenerator(), 4)
	tx := &fakeTx{
		numbers: []string{"INV-0009"},
		taken:   func(n string) bool { return n == "INV-0010" || n == "INV-0011" || n == "INV-0012" },
	}

	n, err := a.Allocate(context.Background(), tx, "owner", domain.InvoiceIn)
	require.NoError(t, err)
	assert.Equal(t, "INV-0013", n)
}

func TestAllocateFailsClosed(t *testing.T) {
	a := NewAllocator(fixedGenerator(), 2)
	tx := &fakeTx{taken: func(string) bool { return true }}

	_, err := a.Allocate(context.Background(), tx, "owner", domain.InvoiceIn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvoiceNumberExhausted))
}
