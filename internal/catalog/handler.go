package catalog

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes product endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a product handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Name        string          `json:"name"`
	Code        string          `json:"code"`
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	SACCode     string          `json:"sac_code"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	Stock       decimal.Decimal `json:"stock"`
}

type updateRequest struct {
	Name        *string          `json:"name"`
	Code        *string          `json:"code"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	SACCode     *string          `json:"sac_code"`
	Unit        *string          `json:"unit"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	CostPrice   *decimal.Decimal `json:"cost_price"`
	Active      *bool            `json:"active"`
}

type stockRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type response struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Code        string          `json:"code,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	SACCode     string          `json:"sac_code"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	Stock       decimal.Decimal `json:"stock"`
	Active      bool            `json:"active"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func toResponse(p domain.Product) response {
	return response{
		ID:          p.ID,
		Name:        p.Name,
		Code:        p.Code,
		SKU:         p.SKU,
		Description: p.Description,
		Category:    p.Category,
		SACCode:     p.SACCode,
		Unit:        p.Unit,
		UnitPrice:   p.UnitPrice,
		CostPrice:   p.CostPrice,
		Stock:       p.Stock,
		Active:      p.Active,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toList(list []domain.Product) fiber.Map {
	out := make([]response, 0, len(list))
	for _, p := range list {
		out = append(out, toResponse(p))
	}
	return fiber.Map{"products": out}
}

// Create adds a product.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.service.Create(c.UserContext(), caller, CreateInput(req))
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(p))
}

// List returns products; ?active=true hides inactive ones.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	list, err := h.service.List(c.UserContext(), caller, c.QueryBool("active"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toList(list))
}

// LowStock returns active products at or below ?threshold.
func (h *Handler) LowStock(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	threshold := decimal.Zero
	if raw := c.Query("threshold"); raw != "" {
		if threshold, err = decimal.NewFromString(raw); err != nil || threshold.IsNegative() {
			return httpx.Error(domain.Validationf("invalid threshold %q", raw))
		}
	}
	list, err := h.service.LowStock(c.UserContext(), caller, threshold)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toList(list))
}

// Get returns one product.
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	p, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(p))
}

// Update edits a product.
func (h *Handler) Update(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.service.Update(c.UserContext(), caller, c.Params("id"), UpdateInput(req))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(p))
}

// AdjustStock changes stock by a signed delta.
func (h *Handler) AdjustStock(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req stockRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := h.service.AdjustStock(c.UserContext(), caller, c.Params("id"), req.Delta)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(p))
}

// Delete removes a product.
func (h *Handler) Delete(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return httpx.Error(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
