package invoice

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes invoice endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an invoice handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type itemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProductID   string          `json:"product_id"`
	SACCode     string          `json:"sac_code"`
}

type createRequest struct {
	Direction      string          `json:"direction"`
	ClientName     string          `json:"client_name"`
	ClientEmail    string          `json:"client_email"`
	ClientPhone    string          `json:"client_phone"`
	ClientAddress  string          `json:"client_address"`
	Notes          string          `json:"notes"`
	Items          []itemRequest   `json:"items"`
	CGSTRate       decimal.Decimal `json:"cgst_rate"`
	SGSTRate       decimal.Decimal `json:"sgst_rate"`
	IGSTRate       decimal.Decimal `json:"igst_rate"`
	OtherTax       decimal.Decimal `json:"other_tax"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	IssuedOn       string          `json:"issued_on"`
	DueOn          string          `json:"due_on"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	WalletID       string          `json:"wallet_id"`
}

type walletRequest struct {
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	WalletID      string `json:"wallet_id"`
	Reason        string `json:"reason"`
}

func (r walletRequest) choice() WalletChoice {
	return WalletChoice{PaymentMethod: domain.PaymentMethod(r.PaymentMethod), WalletID: r.WalletID}
}

type itemResponse struct {
	Position    int             `json:"position"`
	Description string          `json:"description"`
	ProductID   string          `json:"product_id,omitempty"`
	SACCode     string          `json:"sac_code,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type response struct {
	ID              string          `json:"id"`
	CorrelationID   string          `json:"correlation_id"`
	Direction       string          `json:"direction"`
	Number          string          `json:"number"`
	Status          string          `json:"status"`
	ClientName      string          `json:"client_name,omitempty"`
	ClientEmail     string          `json:"client_email,omitempty"`
	ClientPhone     string          `json:"client_phone,omitempty"`
	ClientAddress   string          `json:"client_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	CGSTRate        decimal.Decimal `json:"cgst_rate"`
	SGSTRate        decimal.Decimal `json:"sgst_rate"`
	IGSTRate        decimal.Decimal `json:"igst_rate"`
	OtherTax        decimal.Decimal `json:"other_tax"`
	TaxTotal        decimal.Decimal `json:"tax_total"`
	Total           decimal.Decimal `json:"total"`
	ReceivedAmount  decimal.Decimal `json:"received_amount"`
	WalletID        string          `json:"wallet_id,omitempty"`
	ExpenseID       string          `json:"expense_id,omitempty"`
	CreatedBy       string          `json:"created_by"`
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	IssuedOn        time.Time       `json:"issued_on"`
	DueOn           *time.Time      `json:"due_on,omitempty"`
	Items           []itemResponse  `json:"items,omitempty"`
}

func toResponse(inv domain.Invoice) response {
	out := response{
		ID:              inv.ID,
		CorrelationID:   string(inv.CorrelationID),
		Direction:       string(inv.Direction),
		Number:          inv.Number,
		Status:          string(inv.Status),
		ClientName:      inv.ClientName,
		ClientEmail:     inv.ClientEmail,
		ClientPhone:     inv.ClientPhone,
		ClientAddress:   inv.ClientAddress,
		Notes:           inv.Notes,
		Subtotal:        inv.Subtotal,
		CGSTRate:        inv.CGSTRate,
		SGSTRate:        inv.SGSTRate,
		IGSTRate:        inv.IGSTRate,
		OtherTax:        inv.OtherTax,
		TaxTotal:        inv.TaxTotal,
		Total:           inv.Total,
		ReceivedAmount:  inv.ReceivedAmount,
		WalletID:        inv.WalletID,
		ExpenseID:       inv.ExpenseID,
		CreatedBy:       inv.CreatedBy,
		ReviewedBy:      inv.ReviewedBy,
		ReviewedAt:      inv.ReviewedAt,
		RejectionReason: inv.RejectionReason,
		IssuedOn:        inv.IssuedOn,
		DueOn:           inv.DueOn,
	}
	for _, it := range inv.Items {
		out.Items = append(out.Items, itemResponse{
			Position:    it.Position,
			Description: it.Description,
			ProductID:   it.ProductID,
			SACCode:     it.SACCode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
		})
	}
	return out
}

// Create records an invoice.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	issued, err := httpx.Date(req.IssuedOn)
	if err != nil {
		return httpx.Error(err)
	}
	var due *time.Time
	if req.DueOn != "" {
		d, err := httpx.Date(req.DueOn)
		if err != nil {
			return httpx.Error(err)
		}
		due = &d
	}
	items := make([]ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ItemInput(it))
	}
	inv, err := h.service.Create(c.UserContext(), caller, CreateInput{
		Direction:      domain.InvoiceDirection(req.Direction),
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		ClientPhone:    req.ClientPhone,
		ClientAddress:  req.ClientAddress,
		Notes:          req.Notes,
		Items:          items,
		Taxes:          Taxes{CGSTRate: req.CGSTRate, SGSTRate: req.SGSTRate, IGSTRate: req.IGSTRate, Other: req.OtherTax},
		ReceivedAmount: req.ReceivedAmount,
		IssuedOn:       issued,
		DueOn:          due,
		Status:         domain.InvoiceStatus(req.Status),
		Wallet:         WalletChoice{PaymentMethod: domain.PaymentMethod(req.PaymentMethod), WalletID: req.WalletID},
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(inv))
}

// List returns invoice headers.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	q, err := httpx.Query(c)
	if err != nil {
		return httpx.Error(err)
	}
	list, err := h.service.List(c.UserContext(), caller, q)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]response, 0, len(list))
	for _, inv := range list {
		out = append(out, toResponse(inv))
	}
	return c.JSON(fiber.Map{"invoices": out})
}

// Get returns one invoice with its items.
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	inv, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(inv))
}

// Approve approves a pending outbound invoice against the chosen wallet.
func (h *Handler) Approve(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req walletRequest
	if len(c.Body()) > 0 {
		if err := httpx.Bind(c, &req); err != nil {
			return err
		}
	}
	inv, ev, err := h.service.Approve(c.UserContext(), caller, c.Params("id"), req.choice())
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(fiber.Map{"invoice": toResponse(inv), "event": httpx.EventResponse(ev)})
}

// Reject closes a pending invoice.
func (h *Handler) Reject(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req walletRequest
	if len(c.Body()) > 0 {
		if err := httpx.Bind(c, &req); err != nil {
			return err
		}
	}
	inv, err := h.service.Reject(c.UserContext(), caller, c.Params("id"), req.Reason)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(inv))
}

// UpdateStatus moves an invoice to another status.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req walletRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	inv, ev, err := h.service.UpdateStatus(c.UserContext(), caller, c.Params("id"), domain.InvoiceStatus(req.Status), req.choice())
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(fiber.Map{"invoice": toResponse(inv), "event": httpx.EventResponse(ev)})
}

// Delete reverses and removes an invoice.
func (h *Handler) Delete(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	ev, err := h.service.Delete(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(httpx.EventResponse(ev))
}
