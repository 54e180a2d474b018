package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kharcha-app/kharcha/internal/account"
	"github.com/kharcha-app/kharcha/internal/auth"
	"github.com/kharcha-app/kharcha/internal/catalog"
	"github.com/kharcha-app/kharcha/internal/config"
	"github.com/kharcha-app/kharcha/internal/debt"
	"github.com/kharcha-app/kharcha/internal/delegation"
	"github.com/kharcha-app/kharcha/internal/expense"
	"github.com/kharcha-app/kharcha/internal/ids"
	"github.com/kharcha-app/kharcha/internal/invoice"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/middleware"
	"github.com/kharcha-app/kharcha/internal/notification"
	"github.com/kharcha-app/kharcha/internal/recurring"
	"github.com/kharcha-app/kharcha/internal/reversal"
	"github.com/kharcha-app/kharcha/internal/transaction"
	"github.com/kharcha-app/kharcha/internal/transfer"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Notifier receives committed ledger events; defaults to a log line.
	Notifier notification.Notifier
}

// Services is the wired application core.
type Services struct {
	Accounts     *account.Service
	Auth         *auth.Service
	Wallets      *wallet.Service
	Expenses     *expense.Service
	Transactions *transaction.Service
	Invoices     *invoice.Service
	Requests     *delegation.Service
	Transfers    *transfer.Service
	Reversal     *reversal.Service
	Products     *catalog.Service
	Recurring    *recurring.Service
	Debts        *debt.Service
}

// Build constructs every service over Postgres when d.DB is set, in memory otherwise.
func Build(d Deps) Services {
	var (
		store ledger.Store
		users account.Repository
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		users = account.NewPostgresRepository(d.DB)
	} else {
		store = ledger.NewInMemory()
		users = account.NewMemoryRepository()
	}
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	gen := ids.NewGenerator()
	wallets := wallet.NewService(store, d.Cfg.StrictFunds, d.Logger)
	rev := reversal.NewService(store, wallets, notifier, d.Logger)
	invoices := invoice.NewService(store, wallets, gen, ids.NewAllocator(gen, d.Cfg.InvoiceNumberRetries), rev, notifier, d.Logger)
	expenses := expense.NewService(store, wallets, invoices, gen, rev, notifier, d.Logger)
	transactions := transaction.NewService(store, wallets, gen, rev, notifier, d.Logger)
	accounts := account.NewService(users, wallets, d.Logger)

	return Services{
		Accounts:     accounts,
		Auth:         auth.NewService(d.Cfg, accounts, users, d.Logger),
		Wallets:      wallets,
		Expenses:     expenses,
		Transactions: transactions,
		Invoices:     invoices,
		Requests:     delegation.NewService(store, expenses, transactions, rev, notifier, d.Logger),
		Transfers:    transfer.NewService(store, wallets, gen, notifier, d.Logger),
		Reversal:     rev,
		Products:     catalog.NewService(store, d.Logger),
		Recurring:    recurring.NewService(store, expenses, d.Logger),
		Debts:        debt.NewService(store, transactions, d.Logger),
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	RegisterHealthRoutes(app, d)

	svc := Build(d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDKey).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAccountRoutes(api, account.NewHandler(svc.Accounts))
	RegisterAuthRoutes(api, auth.NewHandler(svc.Auth), middleware.LoginRateLimit(d.Cache, 5, d.Logger))

	// Protected routes
	protected := api.Group("",
		middleware.JWTAuth(svc.Auth),
		middleware.Audit(d.Logger),
		middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger),
	)
	RegisterProfileRoutes(protected, account.NewHandler(svc.Accounts), auth.NewHandler(svc.Auth), svc.Accounts, svc.Wallets)
	RegisterWalletRoutes(protected, wallet.NewHandler(svc.Wallets), transaction.NewHandler(svc.Transactions), transfer.NewHandler(svc.Transfers))
	RegisterLedgerRoutes(protected, svc)
	RegisterBookRoutes(protected, svc)

	return nil
}
