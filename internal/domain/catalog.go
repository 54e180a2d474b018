package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSACCode is the services accounting code printed when a product has none.
const DefaultSACCode = "998313"

// Product is a catalogue entry that invoice lines can be priced from.
type Product struct {
	ID          string
	OwnerID     string
	Name        string
	Code        string
	SKU         string
	Description string
	Category    string
	SACCode     string
	Unit        string
	UnitPrice   decimal.Decimal
	CostPrice   decimal.Decimal
	Stock       decimal.Decimal
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LowOnStock reports whether stock is at or below threshold.
func (p Product) LowOnStock(threshold decimal.Decimal) bool {
	return p.Active && p.Stock.LessThanOrEqual(threshold)
}
