package expense

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes expense endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an expense handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method"`
	PaymentType   string          `json:"payment_type"`
	WalletID      string          `json:"wallet_id"`
	ReceiptRef    string          `json:"receipt_ref"`
	SpentOn       string          `json:"spent_on"`
}

type updateRequest struct {
	Category    *string `json:"category"`
	Description *string `json:"description"`
	ReceiptRef  *string `json:"receipt_ref"`
	SpentOn     *string `json:"spent_on"`
}

type response struct {
	ID            string          `json:"id"`
	CorrelationID string          `json:"correlation_id"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	PaymentType   string          `json:"payment_type"`
	WalletID      string          `json:"wallet_id"`
	ReceiptRef    string          `json:"receipt_ref,omitempty"`
	SpentOn       time.Time       `json:"spent_on"`
	CreatedBy     string          `json:"created_by"`
	RequestID     string          `json:"request_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
}

func toResponse(e domain.Expense) response {
	return response{
		ID:            e.ID,
		CorrelationID: string(e.CorrelationID),
		Amount:        e.Amount,
		Category:      e.Category,
		Description:   e.Description,
		PaymentMethod: string(e.PaymentMethod),
		PaymentType:   string(e.PaymentType),
		WalletID:      e.WalletID,
		ReceiptRef:    e.ReceiptRef,
		SpentOn:       e.SpentOn,
		CreatedBy:     e.CreatedBy,
		RequestID:     e.RequestID,
	}
}

// ResultResponse renders a freshly created expense with its siblings.
func ResultResponse(res Result) response {
	out := toResponse(res.Expense)
	out.TransactionID = res.Transaction.ID
	if res.Invoice != nil {
		out.InvoiceID = res.Invoice.ID
		out.InvoiceNumber = res.Invoice.Number
	}
	return out
}

// Create records an expense.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	spent, err := httpx.Date(req.SpentOn)
	if err != nil {
		return httpx.Error(err)
	}
	res, err := h.service.Create(c.UserContext(), caller, CreateInput{
		Amount:        req.Amount,
		Category:      req.Category,
		Description:   req.Description,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		PaymentType:   domain.PaymentType(req.PaymentType),
		WalletID:      req.WalletID,
		ReceiptRef:    req.ReceiptRef,
		SpentOn:       spent,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(ResultResponse(res))
}

// List returns expenses matching the query filters.
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
	for _, e := range list {
		out = append(out, toResponse(e))
	}
	return c.JSON(fiber.Map{"expenses": out})
}

// Get returns one expense.
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	e, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(e))
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
	in := UpdateInput{Category: req.Category, Description: req.Description, ReceiptRef: req.ReceiptRef}
	if req.SpentOn != nil {
		spent, err := httpx.Date(*req.SpentOn)
		if err != nil {
			return httpx.Error(err)
		}
		in.SpentOn = &spent
	}
	e, err := h.service.Update(c.UserContext(), caller, c.Params("id"), in)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(e))
}

// Delete reverses and removes an expense with its correlated records.
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
