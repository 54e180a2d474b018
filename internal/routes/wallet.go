package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/transaction"
	"github.com/kharcha-app/kharcha/internal/transfer"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, txns *transaction.Handler, transfers *transfer.Handler) {
	r.Get("/wallets", h.List)
	r.Post("/wallets/bank", h.CreateBank)
	r.Get("/wallets/:walletId/balance", h.Balance)
	r.Post("/wallets/:walletId/adjust", txns.Adjust)
	r.Post("/transfers", transfers.Create)
}
