package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// Store runs units of work against a ledger backend (e.g. Postgres).
//
// InTx executes fn inside one transaction: either every write made through tx
// is committed or none is. Wallet rows, requests and invoices fetched with the
// Lock* methods stay locked until fn returns, so two units of work touching the
// same row are serialized.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Read(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the repository surface available inside a unit of work.
type Tx interface {
	WalletRepo
	ExpenseRepo
	TransactionRepo
	InvoiceRepo
	RequestRepo
	ProductRepo
	RecurringRepo
	DebtRepo

	// CorrelationInUse reports whether any record already carries id.
	CorrelationInUse(ctx context.Context, id domain.CorrelationID) (bool, error)
	// LockCorrelation serializes every writer of one correlation id until tx
	// ends. Take it before any row lock on the correlation's records.
	LockCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) error
}

// WalletRepo persists wallets. SaveBalance is reserved to wallet.Service.
type WalletRepo interface {
	InsertWallet(ctx context.Context, w domain.Wallet) error
	GetWallet(ctx context.Context, ownerID, id string) (domain.Wallet, error)
	LockWallet(ctx context.Context, ownerID, id string) (domain.Wallet, error)
	CashWallet(ctx context.Context, ownerID string) (domain.Wallet, error)
	ListWallets(ctx context.Context, ownerID string) ([]domain.Wallet, error)
	SaveBalance(ctx context.Context, id string, balance decimal.Decimal, at time.Time) error
}

type ExpenseRepo interface {
	InsertExpense(ctx context.Context, e domain.Expense) error
	GetExpense(ctx context.Context, ownerID, id string) (domain.Expense, error)
	UpdateExpense(ctx context.Context, e domain.Expense) error
	DeleteExpense(ctx context.Context, id string) error
	ExpensesByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.Expense, error)
	ListExpenses(ctx context.Context, q domain.Query) ([]domain.Expense, error)
}

type TransactionRepo interface {
	InsertTransaction(ctx context.Context, t domain.Transaction) error
	GetTransaction(ctx context.Context, ownerID, id string) (domain.Transaction, error)
	UpdateTransaction(ctx context.Context, t domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	TransactionsByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.Transaction, error)
	ListTransactions(ctx context.Context, q domain.Query) ([]domain.Transaction, error)
}

// InvoiceRepo persists invoices together with their items.
type InvoiceRepo interface {
	InsertInvoice(ctx context.Context, inv domain.Invoice) error
	GetInvoice(ctx context.Context, ownerID, id string) (domain.Invoice, error)
	LockInvoice(ctx context.Context, ownerID, id string) (domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv domain.Invoice) error
	DeleteInvoice(ctx context.Context, id string) error
	InvoicesByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.Invoice, error)
	ListInvoices(ctx context.Context, q domain.Query) ([]domain.Invoice, error)

	// LockInvoiceNumbers serializes number allocation for one owner+direction.
	LockInvoiceNumbers(ctx context.Context, ownerID string, dir domain.InvoiceDirection) error
	InvoiceNumbers(ctx context.Context, ownerID string, dir domain.InvoiceDirection, prefix string) ([]string, error)
	InvoiceNumberTaken(ctx context.Context, ownerID string, dir domain.InvoiceDirection, number string) (bool, error)
}

// RequestRepo persists delegation requests. Query.CreatedBy filters by sub-account.
type RequestRepo interface {
	InsertRequest(ctx context.Context, r domain.DelegationRequest) error
	GetRequest(ctx context.Context, ownerID, id string) (domain.DelegationRequest, error)
	LockRequest(ctx context.Context, ownerID, id string) (domain.DelegationRequest, error)
	UpdateRequest(ctx context.Context, r domain.DelegationRequest) error
	RequestsByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.DelegationRequest, error)
	ListRequests(ctx context.Context, q domain.Query) ([]domain.DelegationRequest, error)
}

// ProductRepo persists the product catalogue.
type ProductRepo interface {
	InsertProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, ownerID, id string) (domain.Product, error)
	LockProduct(ctx context.Context, ownerID, id string) (domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Product, error)
}

// RecurringRepo persists monthly expense templates and the periods they ran for.
// InsertRecurringRun fails with domain.ErrAlreadyProcessed when the template
// already ran for that period.
type RecurringRepo interface {
	InsertRecurring(ctx context.Context, r domain.RecurringExpense) error
	GetRecurring(ctx context.Context, ownerID, id string) (domain.RecurringExpense, error)
	UpdateRecurring(ctx context.Context, r domain.RecurringExpense) error
	DeleteRecurring(ctx context.Context, id string) error
	ListRecurring(ctx context.Context, ownerID string) ([]domain.RecurringExpense, error)
	InsertRecurringRun(ctx context.Context, run domain.RecurringRun) error
	RecurringRuns(ctx context.Context, ownerID, period string) ([]domain.RecurringRun, error)
}

// DebtRepo persists debts with their instalment schedule. Repayments are
// transactions carrying the debt id.
type DebtRepo interface {
	InsertDebt(ctx context.Context, d domain.Debt) error
	GetDebt(ctx context.Context, ownerID, id string) (domain.Debt, error)
	LockDebt(ctx context.Context, ownerID, id string) (domain.Debt, error)
	DeleteDebt(ctx context.Context, id string) error
	ListDebts(ctx context.Context, ownerID string) ([]domain.Debt, error)
	// LockDebtCodes serializes code allocation for one owner.
	LockDebtCodes(ctx context.Context, ownerID string) error
	DebtCodes(ctx context.Context, ownerID string) ([]string, error)
	RepaymentsByDebt(ctx context.Context, ownerID, debtID string) ([]domain.Transaction, error)
}
