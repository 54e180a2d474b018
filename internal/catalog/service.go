// Package catalog keeps the owner's product list that invoice lines can be
// priced from.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
)

// DefaultLowStock is the threshold used when none is given.
var DefaultLowStock = decimal.NewFromInt(5)

// Service is the product catalogue.
type Service struct {
	store  ledger.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a catalogue over store.
func NewService(store ledger.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput describes a new product.
type CreateInput struct {
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
}

func checkPrices(unit, cost, stock decimal.Decimal) error {
	if unit.IsNegative() || cost.IsNegative() {
		return domain.Validationf("prices cannot be negative")
	}
	if err := domain.CheckScale(unit, 2, "unit price"); err != nil {
		return err
	}
	if err := domain.CheckScale(cost, 2, "cost price"); err != nil {
		return err
	}
	if stock.IsNegative() {
		return domain.Validationf("stock cannot be negative")
	}
	return domain.CheckScale(stock, 3, "stock")
}

// Create adds an active product. Codes are unique per owner, ignoring case.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (domain.Product, error) {
	if err := caller.RequireOwner("managing products"); err != nil {
		return domain.Product{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Product{}, domain.Validationf("product name is required")
	}
	if err := checkPrices(in.UnitPrice, in.CostPrice, in.Stock); err != nil {
		return domain.Product{}, err
	}
	now := s.now()
	p := domain.Product{
		ID:          uuid.NewString(),
		OwnerID:     caller.OwnerID,
		Name:        name,
		Code:        strings.TrimSpace(in.Code),
		SKU:         strings.TrimSpace(in.SKU),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		SACCode:     strings.TrimSpace(in.SACCode),
		Unit:        strings.TrimSpace(in.Unit),
		UnitPrice:   in.UnitPrice,
		CostPrice:   in.CostPrice,
		Stock:       in.Stock,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.SACCode == "" {
		p.SACCode = domain.DefaultSACCode
	}
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("product created", slog.String("owner_id", p.OwnerID), slog.String("product_id", p.ID), slog.String("code", p.Code))
	return p, nil
}

// UpdateInput changes the named fields only.
type UpdateInput struct {
	Name        *string
	Code        *string
	Description *string
	Category    *string
	SACCode     *string
	Unit        *string
	UnitPrice   *decimal.Decimal
	CostPrice   *decimal.Decimal
	Active      *bool
}

// Update edits a product. Existing invoice lines keep the values they were
// billed with.
func (s *Service) Update(ctx context.Context, caller domain.Caller, id string, in UpdateInput) (domain.Product, error) {
	if err := caller.RequireOwner("managing products"); err != nil {
		return domain.Product{}, err
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.Product{}, domain.Validationf("product name is required")
	}
	var out domain.Product
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p, err := tx.LockProduct(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = strings.TrimSpace(*v)
			}
		}
		set(&p.Name, in.Name)
		set(&p.Code, in.Code)
		set(&p.Description, in.Description)
		set(&p.Category, in.Category)
		set(&p.SACCode, in.SACCode)
		set(&p.Unit, in.Unit)
		if in.UnitPrice != nil {
			p.UnitPrice = *in.UnitPrice
		}
		if in.CostPrice != nil {
			p.CostPrice = *in.CostPrice
		}
		if in.Active != nil {
			p.Active = *in.Active
		}
		if err := checkPrices(p.UnitPrice, p.CostPrice, p.Stock); err != nil {
			return err
		}
		if p.Code != "" {
			others, err := tx.ListProducts(ctx, caller.OwnerID, false)
			if err != nil {
				return err
			}
			for _, o := range others {
				if o.ID != p.ID && strings.EqualFold(o.Code, p.Code) {
					return domain.Validationf("product code %s already used", p.Code)
				}
			}
		}
		p.UpdatedAt = s.now()
		out = p
		return tx.UpdateProduct(ctx, p)
	})
	return out, err
}

// AdjustStock adds delta (which may be negative) to a product's stock.
func (s *Service) AdjustStock(ctx context.Context, caller domain.Caller, id string, delta decimal.Decimal) (domain.Product, error) {
	if err := caller.RequireOwner("managing products"); err != nil {
		return domain.Product{}, err
	}
	if delta.IsZero() {
		return domain.Product{}, domain.Validationf("stock change must not be zero")
	}
	if err := domain.CheckScale(delta, 3, "stock change"); err != nil {
		return domain.Product{}, err
	}
	var out domain.Product
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		p, err := tx.LockProduct(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		next := p.Stock.Add(delta)
		if next.IsNegative() {
			return domain.Validationf("stock of %s would drop to %s", p.Name, next.String())
		}
		p.Stock = next
		p.UpdatedAt = s.now()
		out = p
		return tx.UpdateProduct(ctx, p)
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.Info("stock adjusted", slog.String("owner_id", out.OwnerID), slog.String("product_id", out.ID), slog.String("stock", out.Stock.String()))
	return out, nil
}

// Delete removes a product. Invoice lines that referenced it keep their
// copied description, price and SAC code.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) error {
	if err := caller.RequireOwner("managing products"); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.LockProduct(ctx, caller.OwnerID, id); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, id)
	})
}

// Get returns one product of the caller's owner.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (domain.Product, error) {
	if err := caller.Validate(); err != nil {
		return domain.Product{}, err
	}
	var out domain.Product
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.GetProduct(ctx, caller.OwnerID, id)
		return err
	})
	return out, err
}

// List returns the owner's products by name. Sub-accounts see them too so
// they can bill from the catalogue.
func (s *Service) List(ctx context.Context, caller domain.Caller, activeOnly bool) ([]domain.Product, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	var out []domain.Product
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListProducts(ctx, caller.OwnerID, activeOnly)
		return err
	})
	return out, err
}

// LowStock lists active products at or below threshold; a zero threshold
// means DefaultLowStock.
func (s *Service) LowStock(ctx context.Context, caller domain.Caller, threshold decimal.Decimal) ([]domain.Product, error) {
	if threshold.IsZero() {
		threshold = DefaultLowStock
	}
	all, err := s.List(ctx, caller, true)
	if err != nil {
		return nil, err
	}
	var out []domain.Product
	for _, p := range all {
		if p.LowOnStock(threshold) {
			out = append(out, p)
		}
	}
	return out, nil
}
