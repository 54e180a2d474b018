package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kharcha-app/kharcha/internal/delegation"
	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/expense"
	"github.com/kharcha-app/kharcha/internal/httpx"
	"github.com/kharcha-app/kharcha/internal/invoice"
	"github.com/kharcha-app/kharcha/internal/transaction"
)

// RegisterLedgerRoutes wires expenses, transactions, invoices, delegation
// requests and correlation lookups.
func RegisterLedgerRoutes(r fiber.Router, svc Services) {
	expenses := expense.NewHandler(svc.Expenses)
	g := r.Group("/expenses")
	g.Post("/", expenses.Create)
	g.Get("/", expenses.List)
	g.Get("/:id", expenses.Get)
	g.Patch("/:id", expenses.Update)
	g.Delete("/:id", expenses.Delete)

	txns := transaction.NewHandler(svc.Transactions)
	g = r.Group("/transactions")
	g.Post("/", txns.Create)
	g.Get("/", txns.List)
	g.Get("/:id", txns.Get)
	g.Patch("/:id", txns.Update)
	g.Delete("/:id", txns.Delete)

	requests := delegation.NewHandler(svc.Requests)
	invoices := invoice.NewHandler(svc.Invoices)
	g = r.Group("/invoices")
	g.Post("/", invoices.Create)
	g.Get("/", invoices.List)
	g.Get("/:id", invoices.Get)
	g.Get("/:id/download-permission", requests.DownloadPermission)
	g.Post("/:id/approve", invoices.Approve)
	g.Post("/:id/reject", invoices.Reject)
	g.Post("/:id/status", invoices.UpdateStatus)
	g.Delete("/:id", invoices.Delete)

	g = r.Group("/requests")
	g.Post("/", requests.Submit)
	g.Get("/", requests.List)
	g.Get("/:id", requests.Get)
	g.Post("/:id/approve", requests.Approve)
	g.Post("/:id/reject", requests.Reject)
	g.Delete("/:id", requests.Delete)

	r.Get("/correlations/:id", func(c *fiber.Ctx) error {
		caller, err := httpx.CallerFrom(c)
		if err != nil {
			return err
		}
		sib, err := svc.Reversal.Lookup(c.UserContext(), caller, domain.CorrelationID(c.Params("id")))
		if err != nil {
			return httpx.Error(err)
		}
		return c.JSON(fiber.Map{
			"correlation_id": sib.CorrelationID,
			"expenses":       len(sib.Expenses),
			"transactions":   len(sib.Transactions),
			"invoices":       len(sib.Invoices),
			"requests":       len(sib.Requests),
			"net":            httpx.Deltas(sib.Nets()),
		})
	})
}
