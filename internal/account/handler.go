package account

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Phone       string          `json:"phone"`
	PIN         string          `json:"pin"`
	Name        string          `json:"name"`
	OpeningCash decimal.Decimal `json:"opening_cash"`
}

type userResponse struct {
	UserID    string     `json:"user_id"`
	OwnerID   string     `json:"owner_id"`
	Role      string     `json:"role"`
	Phone     string     `json:"phone"`
	Name      string     `json:"name,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func toResponse(u User) userResponse {
	return userResponse{
		UserID:    u.ID,
		OwnerID:   u.OwnerID,
		Role:      string(u.Role),
		Phone:     u.Phone,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		LastLogin: u.LastLogin,
	}
}

// Register onboards a primary account holder.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	user, cash, err := h.service.RegisterOwner(c.UserContext(), RegisterInput(req))
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"user":           toResponse(user),
		"cash_wallet_id": cash.ID,
	})
}

// CreateSubAccount adds a sub-account under the caller.
func (h *Handler) CreateSubAccount(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	var req registerRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	user, err := h.service.CreateSubAccount(c.UserContext(), caller, RegisterInput(req))
	if err != nil {
		return httpx.Error(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(user))
}

// ListSubAccounts returns the caller's sub-accounts.
func (h *Handler) ListSubAccounts(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	users, err := h.service.SubAccounts(c.UserContext(), caller)
	if err != nil {
		return httpx.Error(err)
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toResponse(u))
	}
	return c.JSON(fiber.Map{"sub_accounts": out})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.UserContext(), caller, caller.ID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(toResponse(user))
}
