package debt

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
	"github.com/kharcha-app/kharcha/internal/transaction"
)

// Handler exposes debt endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a debt handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Counterparty string          `json:"counterparty"`
	Phone        string          `json:"phone"`
	Total        decimal.Decimal `json:"total"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Purpose      string          `json:"purpose"`
	Notes        string          `json:"notes"`
	StartOn      string          `json:"start_on"`
	DueOn        string          `json:"due_on"`
	Installments int             `json:"installments"`
}

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	EMIID         string          `json:"emi_id"`
	PaymentMethod string          `json:"payment_method"`
	WalletID      string          `json:"wallet_id"`
	PaidOn        string          `json:"paid_on"`
	Note          string          `json:"note"`
}

type installmentResponse struct {
	ID          string          `json:"id"`
	Installment int             `json:"installment"`
	DueOn       string          `json:"due_on"`
	Amount      decimal.Decimal `json:"amount"`
	Paid        decimal.Decimal `json:"paid"`
	Remaining   decimal.Decimal `json:"remaining"`
	Status      string          `json:"status"`
}

type response struct {
	ID           string                 `json:"id"`
	Code         string                 `json:"code"`
	Counterparty string                 `json:"counterparty"`
	Phone        string                 `json:"phone,omitempty"`
	Total        decimal.Decimal        `json:"total"`
	InterestRate decimal.Decimal        `json:"interest_rate"`
	Purpose      string                 `json:"purpose,omitempty"`
	Notes        string                 `json:"notes,omitempty"`
	StartOn      string                 `json:"start_on"`
	DueOn        string                 `json:"due_on,omitempty"`
	Paid         decimal.Decimal        `json:"paid"`
	Outstanding  decimal.Decimal        `json:"outstanding"`
	Status       string                 `json:"status"`
	Installments []installmentResponse  `json:"installments,omitempty"`
	Repayments   []transaction.Response `json:"repayments,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

func toInstallment(in Installment) installmentResponse {
	return installmentResponse{
		ID:          in.ID,
		Installment: in.EMI.Installment,
		DueOn:       in.DueOn.Format(time.DateOnly),
		Amount:      in.Amount,
		Paid:        in.Paid,
		Remaining:   in.Remaining,
		Status:      string(in.Status),
	}
}

func toResponse(v View) response {
	out := response{
		ID:           v.Debt.ID,
		Code:         v.Debt.Code,
		Counterparty: v.Debt.Counterparty,
		Phone:        v.Debt.Phone,
		Total:        v.Debt.Total,
		InterestRate: v.Debt.InterestRate,
		Purpose:      v.Debt.Purpose,
		Notes:        v.Debt.Notes,
		StartOn:      v.Debt.StartOn.Format(time.DateOnly),
		Paid:         v.Paid,
		Outstanding:  v.Outstanding,
		Status:       string(v.Status),
		CreatedAt:    v.Debt.CreatedAt,
	}
	if v.Debt.DueOn != nil {
		out.DueOn = v.Debt.DueOn.Format(time.DateOnly)
	}
	for _, in := range v.Installments {
		out.Installments = append(out.Installments, toInstallment(in))
	}
	for _, t := range v.Repayments {
		out.Repayments = append(out.Repayments, transaction.ToResponse(t))
	}
	return out
}

// Create records a debt.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	start, err := httpx.Date(req.StartOn)
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
	d, err := h.service.Create(c.UserContext(), caller, CreateInput{
		Counterparty: req.Counterparty,
		Phone:        req.Phone,
		Total:        req.Total,
		InterestRate: req.InterestRate,
		Purpose:      req.Purpose,
		Notes:        req.Notes,
		StartOn:      start,
		DueOn:        due,
		Installments: req.Installments,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(buildView(d, nil, d.StartOn)))
}

// List returns debts, optionally ?status=pending|partial|paid|overdue.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	views, err := h.service.List(c.UserContext(), caller, domain.RepaymentStatus(c.Query("status")))
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]response, 0, len(views))
	for _, v := range views {
		r := toResponse(v)
		r.Repayments = nil
		out = append(out, r)
	}
	return c.JSON(fiber.Map{"debts": out})
}

// Get returns one debt with instalments and repayments.
func (h *Handler) Get(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	v, err := h.service.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(v))
}

// RecordPayment records a repayment against a debt.
func (h *Handler) RecordPayment(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req paymentRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	paid, err := httpx.Date(req.PaidOn)
	if err != nil {
		return httpx.Error(err)
	}
	t, v, err := h.service.RecordPayment(c.UserContext(), caller, c.Params("id"), PaymentInput{
		Amount:        req.Amount,
		EMIID:         req.EMIID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		WalletID:      req.WalletID,
		PaidOn:        paid,
		Note:          req.Note,
	})
	if err != nil {
		return httpx.Error(err)
	}
	debt := toResponse(v)
	debt.Repayments = nil
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction": transaction.ToResponse(t),
		"debt":        debt,
	})
}

// Upcoming lists open instalments due within ?days (default 7).
func (h *Handler) Upcoming(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	days := 7
	if raw := c.Query("days"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil {
			return httpx.Error(domain.Validationf("invalid days %q", raw))
		}
	}
	list, err := h.service.Upcoming(c.UserContext(), caller, days)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]fiber.Map, 0, len(list))
	for _, d := range list {
		out = append(out, fiber.Map{
			"debt_id":      d.Debt.ID,
			"code":         d.Debt.Code,
			"counterparty": d.Debt.Counterparty,
			"phone":        d.Debt.Phone,
			"installment":  toInstallment(d.Installment),
		})
	}
	return c.JSON(fiber.Map{"upcoming": out})
}

// Delete removes a debt without repayments.
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
