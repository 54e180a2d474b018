package wallet

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createBankRequest struct {
	Name           string          `json:"name"`
	BankName       string          `json:"bank_name"`
	AccountNumber  string          `json:"account_number"`
	RoutingCode    string          `json:"routing_code"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

type walletResponse struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Name           string          `json:"name"`
	BankName       string          `json:"bank_name,omitempty"`
	AccountNumber  string          `json:"account_number,omitempty"`
	RoutingCode    string          `json:"routing_code,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func toResponse(w domain.Wallet) walletResponse {
	return walletResponse{
		ID:             w.ID,
		Kind:           string(w.Kind),
		Name:           w.Name,
		BankName:       w.BankName,
		AccountNumber:  w.AccountNumber,
		RoutingCode:    w.RoutingCode,
		Balance:        w.Balance,
		OpeningBalance: w.OpeningBalance,
		UpdatedAt:      w.UpdatedAt,
	}
}

// CreateBank opens a bank wallet for the authenticated owner.
func (h *Handler) CreateBank(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	if err := caller.RequireOwner("opening a bank wallet"); err != nil {
		return httpx.Error(err)
	}
	var req createBankRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	w, err := h.service.CreateBank(c.UserContext(), CreateBankInput{
		OwnerID:        caller.OwnerID,
		Name:           req.Name,
		BankName:       req.BankName,
		AccountNumber:  req.AccountNumber,
		RoutingCode:    req.RoutingCode,
		OpeningBalance: req.OpeningBalance,
	})
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(w))
}

// List returns the caller's owner wallets with the combined balance.
func (h *Handler) List(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	summary, err := h.service.List(c.UserContext(), caller.OwnerID)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]walletResponse, 0, len(summary.Wallets))
	for _, w := range summary.Wallets {
		out = append(out, toResponse(w))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallets":   out,
		"total":     summary.Total,
		"timestamp": summary.AsOf,
	})
}

// Balance returns one wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	walletID := c.Params("walletId")
	w, err := h.service.Get(c.UserContext(), caller.OwnerID, walletID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": w.ID,
		"kind":      w.Kind,
		"balance":   w.Balance,
		"timestamp": w.UpdatedAt,
	})
}
