package invoice

import (
	"context"
	"strings"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
)

// priceFromCatalog fills the blank description, unit price and SAC code of
// product-backed lines from the owner's catalogue. Inactive products cannot
// be billed.
func priceFromCatalog(ctx context.Context, tx ledger.Tx, ownerID string, items []ItemInput) ([]ItemInput, error) {
	out := make([]ItemInput, len(items))
	for i, it := range items {
		out[i] = it
		if it.ProductID == "" {
			continue
		}
		p, err := tx.GetProduct(ctx, ownerID, it.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, domain.Validationf("item %d: product %s is inactive", i+1, p.Name)
		}
		if strings.TrimSpace(it.Description) == "" {
			out[i].Description = p.Name
		}
		if it.UnitPrice.IsZero() {
			out[i].UnitPrice = p.UnitPrice
		}
		if strings.TrimSpace(it.SACCode) == "" {
			out[i].SACCode = p.SACCode
			if out[i].SACCode == "" {
				out[i].SACCode = domain.DefaultSACCode
			}
		}
	}
	return out, nil
}
