package invoice

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeAppliesGSTOnSubtotal(t *testing.T) {
	totals, err := Compute([]ItemInput{
		{Description: "Design work", Quantity: d("2"), UnitPrice: d("100")},
		{Description: "Hosting", Quantity: d("1"), UnitPrice: d("50.50")},
	}, Taxes{CGSTRate: d("9"), SGSTRate: d("9"), Other: d("10")})
	require.NoError(t, err)

	assert.Equal(t, "250.50", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "55.09", totals.Tax.StringFixed(2))
	assert.Equal(t, "305.59", totals.Total.StringFixed(2))
	require.Len(t, totals.Items, 2)
	assert.Equal(t, 2, totals.Items[1].Position)
	assert.Equal(t, "200.00", totals.Items[0].Total.StringFixed(2))
}

func TestComputeRoundsLines(t *testing.T) {
	totals, err := Compute([]ItemInput{{Description: "Bolts", Quantity: d("0.333"), UnitPrice: d("3")}}, Taxes{IGSTRate: d("18")})
	require.NoError(t, err)
	assert.Equal(t, "1.00", totals.Subtotal.StringFixed(2))
	assert.Equal(t, "0.18", totals.Tax.StringFixed(2))
	assert.Equal(t, "1.18", totals.Total.StringFixed(2))
}

func TestComputeRejectsBadLines(t *testing.T) {
	cases := [][]ItemInput{
		nil,
		{{Description: "", Quantity: d("1"), UnitPrice: d("1")}},
		{{Description: "x", Quantity: d("0"), UnitPrice: d("1")}},
		{{Description: "x", Quantity: d("1"), UnitPrice: d("-1")}},
		{{Description: "x", Quantity: d("1"), UnitPrice: d("0")}},
	}
	for _, items := range cases {
		_, err := Compute(items, Taxes{})
		assert.True(t, errors.Is(err, domain.ErrValidation), "%v", items)
	}
	_, err := Compute([]ItemInput{{Description: "x", Quantity: d("1"), UnitPrice: d("1")}}, Taxes{CGSTRate: d("-1")})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestComputeRejectsPrecisionTheColumnsCannotHold(t *testing.T) {
	cases := [][]ItemInput{
		{{Description: "x", Quantity: d("1"), UnitPrice: d("0.333")}},
		{{Description: "x", Quantity: d("1.0005"), UnitPrice: d("2")}},
	}
	for _, items := range cases {
		_, err := Compute(items, Taxes{})
		assert.True(t, errors.Is(err, domain.ErrValidation), "%v", items)
	}
	_, err := Compute([]ItemInput{{Description: "x", Quantity: d("1"), UnitPrice: d("1")}}, Taxes{Other: d("0.001")})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	totals, err := Compute([]ItemInput{{Description: "x", Quantity: d("1.125"), UnitPrice: d("8.00")}}, Taxes{})
	require.NoError(t, err)
	assert.Equal(t, "9.00", totals.Total.StringFixed(2))
}

func TestTransition(t *testing.T) {
	require.NoError(t, Transition(domain.InvoiceIn, domain.InvoiceDraft, domain.InvoiceSent))
	require.NoError(t, Transition(domain.InvoiceIn, domain.InvoiceSent, domain.InvoicePaid))
	require.NoError(t, Transition(domain.InvoiceOut, domain.InvoicePending, domain.InvoiceApproved))

	assert.True(t, errors.Is(Transition(domain.InvoiceIn, domain.InvoiceSent, domain.InvoiceApproved), domain.ErrValidation))
	assert.True(t, errors.Is(Transition(domain.InvoiceIn, domain.InvoicePaid, domain.InvoiceDraft), domain.ErrValidation))
	assert.True(t, errors.Is(Transition(domain.InvoiceIn, domain.InvoicePaid, "void"), domain.ErrValidation))
	assert.True(t, errors.Is(Transition(domain.InvoiceIn, domain.InvoicePaid, domain.InvoiceOverdue), domain.ErrValidation))
	assert.True(t, errors.Is(Transition(domain.InvoiceOut, domain.InvoicePaid, domain.InvoiceOverdue), domain.ErrValidation))
	require.NoError(t, Transition(domain.InvoiceIn, domain.InvoiceSent, domain.InvoiceOverdue))
	require.NoError(t, Transition(domain.InvoiceOut, domain.InvoiceApproved, domain.InvoiceOverdue))
	assert.True(t, errors.Is(Transition(domain.InvoiceOut, domain.InvoiceApproved, domain.InvoiceApproved), domain.ErrAlreadyProcessed))
}

func TestEffectOf(t *testing.T) {
	assert.Equal(t, effectCredit, effectOf(domain.InvoiceIn, domain.InvoicePaid))
	assert.Equal(t, effectNone, effectOf(domain.InvoiceIn, domain.InvoiceOverdue))
	assert.Equal(t, effectDebit, effectOf(domain.InvoiceOut, domain.InvoiceApproved))
	assert.Equal(t, effectDebit, effectOf(domain.InvoiceOut, domain.InvoicePaid))
	assert.Equal(t, effectNone, effectOf(domain.InvoiceOut, domain.InvoicePending))
}
