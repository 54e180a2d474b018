package transaction

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes transaction endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a transaction handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	PaymentMethod string          `json:"payment_method"`
	WalletID      string          `json:"wallet_id"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	AttachmentRef string          `json:"attachment_ref"`
	OccurredOn    string          `json:"occurred_on"`
}

type updateRequest struct {
	Category      *string `json:"category"`
	Description   *string `json:"description"`
	AttachmentRef *string `json:"attachment_ref"`
}

type adjustRequest struct {
	Target decimal.Decimal `json:"target_balance"`
	Note   string          `json:"note"`
}

// Response is the JSON shape of a transaction.
type Response struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	PaymentMethod string          `json:"payment_method"`
	WalletID      string          `json:"wallet_id"`
	Tag           string          `json:"tag,omitempty"`
	Category      string          `json:"category,omitempty"`
	Description   string          `json:"description,omitempty"`
	AttachmentRef string          `json:"attachment_ref,omitempty"`
	ExpenseID     string          `json:"expense_id,omitempty"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	DebtID        string          `json:"debt_id,omitempty"`
	EMIID         string          `json:"emi_id,omitempty"`
	CreatedBy     string          `json:"created_by"`
	RequestID     string          `json:"request_id,omitempty"`
	OccurredOn    time.Time       `json:"occurred_on"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToResponse renders a transaction.
func ToResponse(t domain.Transaction) Response {
	return Response{
		ID:            t.ID,
		CorrelationID: string(t.CorrelationID),
		Amount:        t.Amount,
		Direction:     string(t.Direction),
		PaymentMethod: string(t.PaymentMethod),
		WalletID:      t.WalletID,
		Tag:           string(t.Tag),
		Category:      t.Category,
		Description:   t.Description,
		AttachmentRef: t.AttachmentRef,
		ExpenseID:     t.ExpenseID,
		InvoiceID:     t.InvoiceID,
		DebtID:        t.DebtID,
		EMIID:         t.EMIID,
		CreatedBy:     t.CreatedBy,
		RequestID:     t.RequestID,
		OccurredOn:    t.OccurredOn,
		CreatedAt:     t.CreatedAt,
	}
}

// Create records a transaction.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	occurred, err := httpx.Date(req.OccurredOn)
	if err != nil {
		return httpx.Error(err)
	}
	t, err := h.service.Create(c.UserContext(), caller, CreateInput{
		Amount:        req.Amount,
		Direction:     domain.Direction(req.Direction),
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		WalletID:      req.WalletID,
		Category:      req.Category,
		Description:   req.Description,
		AttachmentRef: req.AttachmentRef,
		OccurredOn:    occurred,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(t))
}

// List returns transactions matching the query filters.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	q, err := httpx.Query(c)
	if err != nil {
		return httpx.Error(err)
	}
	items, err := h.service.List(c.UserContext(), caller, q)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]Response, 0, len(items))
	for _, t := range items {
		out = append(out, ToResponse(t))
	}
	return c.JSON(fiber.Map{"transactions": out})
}

// Get returns one transaction.
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	t, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(ToResponse(t))
}

// Update edits descriptive fields.
func (h *Handler) Update(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req updateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	t, err := h.service.Update(c.UserContext(), caller, c.Params("id"), UpdateInput(req))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(ToResponse(t))
}

// Delete reverses and removes a transaction with its correlated records.
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

// Adjust sets a wallet balance to a target value.
func (h *Handler) Adjust(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req adjustRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	t, err := h.service.Adjust(c.UserContext(), caller, c.Params("walletId"), req.Target, req.Note)
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(ToResponse(t))
}
