package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/account"
	"github.com/kharcha-app/kharcha/internal/httpx"
)

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	Phone string `json:"phone"`
	PIN   string `json:"pin"`
}

type loginResponse struct {
	UserID       string `json:"user_id"`
	OwnerID      string `json:"owner_id"`
	Role         string `json:"role"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func authError(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return httpx.Error(err)
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	user, pair, err := h.svc.Login(c.UserContext(), account.Credentials{Phone: req.Phone, PIN: req.PIN})
	if err != nil {
		return authError(err)
	}
	return c.Status(http.StatusOK).JSON(loginResponse{
		UserID:       user.ID,
		OwnerID:      user.OwnerID,
		Role:         string(user.Role),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new token pair using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := httpx.Bind(c, &req); err != nil {
		return err
	}
	pair, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return authError(err)
	}
	return c.Status(http.StatusOK).JSON(pair)
}

// Logout invalidates existing tokens of the caller by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	caller, err := httpx.CallerFrom(c)
	if err != nil {
		return err
	}
	if err := h.svc.Logout(c.UserContext(), caller); err != nil {
		return authError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
