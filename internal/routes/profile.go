package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/account"
	"github.com/kharcha-app/kharcha/internal/auth"
	"github.com/kharcha-app/kharcha/internal/httpx"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// RegisterProfileRoutes exposes the caller's profile, sub-accounts, logout
// and a combined view of the user and the owner's wallets.
func RegisterProfileRoutes(r fiber.Router, h *account.Handler, authHandler *auth.Handler, accounts *account.Service, wallets *wallet.Service) {
	r.Get("/me", h.Me)
	r.Post("/auth/logout", authHandler.Logout)
	r.Post("/sub-accounts", h.CreateSubAccount)
	r.Get("/sub-accounts", h.ListSubAccounts)

	r.Get("/me/overview", func(c *fiber.Ctx) error {
		caller, err := httpx.CallerFrom(c)
		if err != nil {
			return err
		}
		user, err := accounts.Get(c.UserContext(), caller, caller.ID)
		if err != nil {
			return httpx.Error(err)
		}
		sum, err := wallets.List(c.UserContext(), caller.OwnerID)
		if err != nil {
			return httpx.Error(err)
		}
		list := make([]fiber.Map, 0, len(sum.Wallets))
		for _, w := range sum.Wallets {
			list = append(list, fiber.Map{
				"id":      w.ID,
				"kind":    w.Kind,
				"name":    w.Name,
				"balance": w.Balance.StringFixed(2),
			})
		}
		return c.JSON(fiber.Map{
			"user": fiber.Map{
				"id":         user.ID,
				"owner_id":   user.OwnerID,
				"role":       user.Role,
				"phone":      user.Phone,
				"created_at": user.CreatedAt,
				"last_login": user.LastLogin,
			},
			"wallets": list,
			"total":   sum.Total.StringFixed(2),
			"as_of":   sum.AsOf,
		})
	})
}
