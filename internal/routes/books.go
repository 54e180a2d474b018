package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/catalog"
	"github.com/kharcha-app/kharcha/internal/debt"
	"github.com/kharcha-app/kharcha/internal/recurring"
)

// RegisterBookRoutes wires the product catalogue, recurring expenses and
// the debt book.
func RegisterBookRoutes(r fiber.Router, svc Services) {
	products := catalog.NewHandler(svc.Products)
	g := r.Group("/products")
	g.Post("/", products.Create)
	g.Get("/", products.List)
	g.Get("/low-stock", products.LowStock)
	g.Get("/:id", products.Get)
	g.Patch("/:id", products.Update)
	g.Post("/:id/stock", products.AdjustStock)
	g.Delete("/:id", products.Delete)

	rec := recurring.NewHandler(svc.Recurring)
	g = r.Group("/recurring-expenses")
	g.Post("/", rec.Create)
	g.Get("/", rec.List)
	g.Get("/schedule", rec.Schedule)
	g.Post("/run", rec.Run)
	g.Get("/:id", rec.Get)
	g.Put("/:id", rec.Update)
	g.Delete("/:id", rec.Delete)

	debts := debt.NewHandler(svc.Debts)
	g = r.Group("/debts")
	g.Post("/", debts.Create)
	g.Get("/", debts.List)
	g.Get("/upcoming", debts.Upcoming)
	g.Get("/:id", debts.Get)
	g.Post("/:id/payments", debts.RecordPayment)
	g.Delete("/:id", debts.Delete)
}
