package recurring

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes recurring expense endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a recurring expense handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type templateRequest struct {
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDay    int             `json:"payment_day"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method"`
	WalletID      string          `json:"wallet_id"`
	Active        *bool           `json:"active"`
}

func (r templateRequest) input() Input {
	return Input{
		Name:          r.Name,
		Kind:          domain.RecurringKind(r.Kind),
		Amount:        r.Amount,
		PaymentDay:    r.PaymentDay,
		Category:      r.Category,
		Description:   r.Description,
		PaymentMethod: domain.PaymentMethod(r.PaymentMethod),
		WalletID:      r.WalletID,
		Active:        r.Active,
	}
}

type runRequest struct {
	Period  string                     `json:"period"`
	Amounts map[string]decimal.Decimal `json:"amounts"`
}

type response struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDay    int             `json:"payment_day"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	WalletID      string          `json:"wallet_id,omitempty"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toResponse(r domain.RecurringExpense) response {
	return response{
		ID:            r.ID,
		Name:          r.Name,
		Kind:          string(r.Kind),
		Amount:        r.Amount,
		PaymentDay:    r.PaymentDay,
		Category:      r.Category,
		Description:   r.Description,
		PaymentMethod: string(r.PaymentMethod),
		WalletID:      r.WalletID,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
	}
}

// period reads YYYY-MM, defaulting to the current month.
func period(raw string) (domain.Period, error) {
	if raw == "" {
		return domain.PeriodOf(time.Now().UTC()), nil
	}
	return domain.ParsePeriod(raw)
}

// Create stores a template.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req templateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	r, err := h.service.Create(c.UserContext(), caller, req.input())
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(r))
}

// List returns templates.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	list, err := h.service.List(c.UserContext(), caller)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]response, 0, len(list))
	for _, r := range list {
		out = append(out, toResponse(r))
	}
	return c.JSON(fiber.Map{"recurring_expenses": out})
}

// Get returns one template.
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	r, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(r))
}

// Update replaces a template.
func (h *Handler) Update(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req templateRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	r, err := h.service.Update(c.UserContext(), caller, c.Params("id"), req.input())
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(r))
}

// Delete removes a template.
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

// Schedule shows ?period=YYYY-MM with the runs already recorded.
func (h *Handler) Schedule(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	p, err := period(c.Query("period"))
	if err != nil {
		return httpx.Error(err)
	}
	list, err := h.service.Schedule(c.UserContext(), caller, p)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]fiber.Map, 0, len(list))
	for _, d := range list {
		item := fiber.Map{"template": toResponse(d.Template), "due_on": d.On.Format(time.DateOnly), "recorded": d.Run != nil}
		if d.Run != nil {
			item["expense_id"] = d.Run.ExpenseID
			item["correlation_id"] = d.Run.CorrelationID
		}
		out = append(out, item)
	}
	return c.JSON(fiber.Map{"period": p.String(), "schedule": out})
}

// Run materializes the period's expenses.
func (h *Handler) Run(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req runRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	p, err := period(req.Period)
	if err != nil {
		return httpx.Error(err)
	}
	res, err := h.service.Run(c.UserContext(), caller, p, req.Amounts)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(fiber.Map{
		"period":  res.Period,
		"created": outcomes(res.Created),
		"skipped": outcomes(res.Skipped),
		"failed":  outcomes(res.Failed),
	})
}

func outcomes(in []Outcome) []fiber.Map {
	out := make([]fiber.Map, 0, len(in))
	for _, o := range in {
		m := fiber.Map{"recurring_id": o.RecurringID, "name": o.Name}
		if o.ExpenseID != "" {
			m["expense_id"] = o.ExpenseID
			m["correlation_id"] = o.CorrelationID
			m["amount"] = o.Amount
		}
		if o.Reason != "" {
			m["reason"] = o.Reason
		}
		out = append(out, m)
	}
	return out
}
