package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/account"
	"github.com/kharcha-app/kharcha/internal/auth"
)

// RegisterAccountRoutes wires public onboarding.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler) {
	r.Post("/accounts/register", h.Register)
}

// RegisterAuthRoutes wires authentication endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/refresh", h.Refresh)
}
