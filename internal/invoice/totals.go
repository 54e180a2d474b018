package invoice

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// ItemInput is one billed line.
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	// ProductID prices the line from the catalogue; blank fields are filled
	// from the product.
	ProductID string
	SACCode   string
}

// Taxes are percentage rates applied on the subtotal plus a flat amount.
type Taxes struct {
	CGSTRate decimal.Decimal
	SGSTRate decimal.Decimal
	IGSTRate decimal.Decimal
	Other    decimal.Decimal
}

// Totals is the arithmetic the ledger owns; layout belongs to the renderer.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
	Items    []domain.InvoiceItem
}

// Compute validates the lines and returns subtotal, tax and total rounded to
// two places.
func Compute(items []ItemInput, taxes Taxes) (Totals, error) {
	if len(items) == 0 {
		return Totals{}, domain.Validationf("an invoice needs at least one item")
	}
	for _, r := range []decimal.Decimal{taxes.CGSTRate, taxes.SGSTRate, taxes.IGSTRate, taxes.Other} {
		if r.IsNegative() {
			return Totals{}, domain.Validationf("tax values cannot be negative")
		}
		if err := domain.CheckScale(r, 2, "tax value"); err != nil {
			return Totals{}, err
		}
	}
	out := Totals{Subtotal: decimal.Zero}
	for i, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			return Totals{}, domain.Validationf("item %d needs a description", i+1)
		}
		if !it.Quantity.IsPositive() {
			return Totals{}, domain.Validationf("item %d quantity must be positive", i+1)
		}
		if it.UnitPrice.IsNegative() {
			return Totals{}, domain.Validationf("item %d unit price cannot be negative", i+1)
		}
		if err := domain.CheckScale(it.Quantity, 3, fmt.Sprintf("item %d quantity", i+1)); err != nil {
			return Totals{}, err
		}
		if err := domain.CheckScale(it.UnitPrice, 2, fmt.Sprintf("item %d unit price", i+1)); err != nil {
			return Totals{}, err
		}
		line := it.Quantity.Mul(it.UnitPrice).Round(2)
		out.Subtotal = out.Subtotal.Add(line)
		out.Items = append(out.Items, domain.InvoiceItem{
			Position:    i + 1,
			Description: strings.TrimSpace(it.Description),
			ProductID:   it.ProductID,
			SACCode:     strings.TrimSpace(it.SACCode),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       line,
		})
	}
	rate := taxes.CGSTRate.Add(taxes.SGSTRate).Add(taxes.IGSTRate)
	out.Tax = out.Subtotal.Mul(rate).Div(hundred).Add(taxes.Other).Round(2)
	out.Total = out.Subtotal.Add(out.Tax).Round(2)
	if !out.Total.IsPositive() {
		return Totals{}, domain.Validationf("invoice total must be positive")
	}
	return out, nil
}
