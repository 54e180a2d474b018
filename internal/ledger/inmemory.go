package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
)

var errReadOnly = errors.New("write attempted in read-only unit of work")

type memState struct {
	wallets      map[string]domain.Wallet
	expenses     map[string]domain.Expense
	transactions map[string]domain.Transaction
	invoices     map[string]domain.Invoice
	requests     map[string]domain.DelegationRequest
	products     map[string]domain.Product
	recurring    map[string]domain.RecurringExpense
	runs         map[string]domain.RecurringRun
	debts        map[string]domain.Debt
}

func newMemState() *memState {
	return &memState{
		wallets:      make(map[string]domain.Wallet),
		expenses:     make(map[string]domain.Expense),
		transactions: make(map[string]domain.Transaction),
		invoices:     make(map[string]domain.Invoice),
		requests:     make(map[string]domain.DelegationRequest),
		products:     make(map[string]domain.Product),
		recurring:    make(map[string]domain.RecurringExpense),
		runs:         make(map[string]domain.RecurringRun),
		debts:        make(map[string]domain.Debt),
	}
}

// clone is shallow per record; invoice item and instalment slices are never
// mutated in place.
func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.recurring {
		c.recurring[k] = v
	}
	for k, v := range s.runs {
		c.runs[k] = v
	}
	for k, v := range s.debts {
		c.debts[k] = v
	}
	return c
}

// MemoryStore is a concurrency-safe in-memory Store useful for unit tests and
// local development. Units of work are fully serialized and roll back by
// restoring a snapshot taken on entry.
type MemoryStore struct {
	mu sync.RWMutex
	st *memState
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	tx := &memTx{st: m.st}
	if err := fn(ctx, tx); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *MemoryStore) Read(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(ctx, &memTx{st: m.st, readOnly: true})
}

type memTx struct {
	st       *memState
	readOnly bool
}

func (t *memTx) write() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *memTx) CorrelationInUse(_ context.Context, id domain.CorrelationID) (bool, error) {
	for _, e := range t.st.expenses {
		if e.CorrelationID == id {
			return true, nil
		}
	}
	for _, tr := range t.st.transactions {
		if tr.CorrelationID == id {
			return true, nil
		}
	}
	for _, inv := range t.st.invoices {
		if inv.CorrelationID == id {
			return true, nil
		}
	}
	return false, nil
}

// wallets

func (t *memTx) InsertWallet(_ context.Context, w domain.Wallet) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, exists := t.st.wallets[w.ID]; exists {
		return errors.New("wallet exists")
	}
	if w.Kind == domain.WalletCash {
		for _, other := range t.st.wallets {
			if other.OwnerID == w.OwnerID && other.Kind == domain.WalletCash {
				return domain.AlreadyProcessed("owner %s already has a cash wallet", w.OwnerID)
			}
		}
	}
	t.st.wallets[w.ID] = w
	return nil
}

func (t *memTx) GetWallet(_ context.Context, ownerID, id string) (domain.Wallet, error) {
	w, ok := t.st.wallets[id]
	if !ok || w.OwnerID != ownerID {
		return domain.Wallet{}, domain.NotFound("wallet", id)
	}
	return w, nil
}

func (t *memTx) LockWallet(ctx context.Context, ownerID, id string) (domain.Wallet, error) {
	return t.GetWallet(ctx, ownerID, id)
}

func (t *memTx) CashWallet(_ context.Context, ownerID string) (domain.Wallet, error) {
	for _, w := range t.st.wallets {
		if w.OwnerID == ownerID && w.Kind == domain.WalletCash {
			return w, nil
		}
	}
	return domain.Wallet{}, domain.NotFound("cash wallet of owner", ownerID)
}

func (t *memTx) ListWallets(_ context.Context, ownerID string) ([]domain.Wallet, error) {
	var out []domain.Wallet
	for _, w := range t.st.wallets {
		if w.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == domain.WalletCash
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) SaveBalance(_ context.Context, id string, balance decimal.Decimal, at time.Time) error {
	if err := t.write(); err != nil {
		return err
	}
	w, ok := t.st.wallets[id]
	if !ok {
		return domain.NotFound("wallet", id)
	}
	w.Balance = balance
	w.UpdatedAt = at
	t.st.wallets[id] = w
	return nil
}

// expenses

func (t *memTx) InsertExpense(_ context.Context, e domain.Expense) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.expenses[e.ID] = e
	return nil
}

func (t *memTx) GetExpense(_ context.Context, ownerID, id string) (domain.Expense, error) {
	e, ok := t.st.expenses[id]
	if !ok || e.OwnerID != ownerID {
		return domain.Expense{}, domain.NotFound("expense", id)
	}
	return e, nil
}

func (t *memTx) UpdateExpense(_ context.Context, e domain.Expense) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.expenses[e.ID]; !ok {
		return domain.NotFound("expense", e.ID)
	}
	t.st.expenses[e.ID] = e
	return nil
}

func (t *memTx) DeleteExpense(_ context.Context, id string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.expenses, id)
	return nil
}

func (t *memTx) ExpensesByCorrelation(_ context.Context, ownerID string, id domain.CorrelationID) ([]domain.Expense, error) {
	var out []domain.Expense
	for _, e := range t.st.expenses {
		if e.OwnerID == ownerID && e.CorrelationID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) ListExpenses(_ context.Context, q domain.Query) ([]domain.Expense, error) {
	var out []domain.Expense
	for _, e := range t.st.expenses {
		if e.OwnerID != q.OwnerID || !q.InRange(e.SpentOn) {
			continue
		}
		if q.CreatedBy != "" && e.CreatedBy != q.CreatedBy {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SpentOn.Equal(out[j].SpentOn) {
			return out[i].SpentOn.After(out[j].SpentOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limit(out, q.Limit), nil
}

// transactions

func (t *memTx) InsertTransaction(_ context.Context, tr domain.Transaction) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, ownerID, id string) (domain.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok || tr.OwnerID != ownerID {
		return domain.Transaction{}, domain.NotFound("transaction", id)
	}
	return tr, nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tr domain.Transaction) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.transactions[tr.ID]; !ok {
		return domain.NotFound("transaction", tr.ID)
	}
	t.st.transactions[tr.ID] = tr
	return nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.transactions, id)
	return nil
}

func (t *memTx) TransactionsByCorrelation(_ context.Context, ownerID string, id domain.CorrelationID) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.st.transactions {
		if tr.OwnerID == ownerID && tr.CorrelationID == id {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) ListTransactions(_ context.Context, q domain.Query) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.st.transactions {
		if tr.OwnerID != q.OwnerID || !q.InRange(tr.OccurredOn) {
			continue
		}
		if q.CreatedBy != "" && tr.CreatedBy != q.CreatedBy {
			continue
		}
		if q.Status != "" && string(tr.Direction) != q.Status {
			continue
		}
		out = append(out, tr)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredOn.Equal(out[j].OccurredOn) {
			return out[i].OccurredOn.After(out[j].OccurredOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limit(out, q.Limit), nil
}

// invoices

func copyItems(items []domain.InvoiceItem) []domain.InvoiceItem {
	if items == nil {
		return nil
	}
	out := make([]domain.InvoiceItem, len(items))
	copy(out, items)
	return out
}

func (t *memTx) InsertInvoice(ctx context.Context, inv domain.Invoice) error {
	if err := t.write(); err != nil {
		return err
	}
	taken, _ := t.InvoiceNumberTaken(ctx, inv.OwnerID, inv.Direction, inv.Number)
	if taken {
		return domain.Validationf("invoice number %s already used", inv.Number)
	}
	inv.Items = copyItems(inv.Items)
	t.st.invoices[inv.ID] = inv
	return nil
}

func (t *memTx) GetInvoice(_ context.Context, ownerID, id string) (domain.Invoice, error) {
	inv, ok := t.st.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return domain.Invoice{}, domain.NotFound("invoice", id)
	}
	inv.Items = copyItems(inv.Items)
	return inv, nil
}

func (t *memTx) LockInvoice(ctx context.Context, ownerID, id string) (domain.Invoice, error) {
	return t.GetInvoice(ctx, ownerID, id)
}

func (t *memTx) UpdateInvoice(_ context.Context, inv domain.Invoice) error {
	if err := t.write(); err != nil {
		return err
	}
	existing, ok := t.st.invoices[inv.ID]
	if !ok {
		return domain.NotFound("invoice", inv.ID)
	}
	inv.Items = existing.Items
	t.st.invoices[inv.ID] = inv
	return nil
}

func (t *memTx) DeleteInvoice(_ context.Context, id string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.invoices, id)
	return nil
}

func (t *memTx) InvoicesByCorrelation(_ context.Context, ownerID string, id domain.CorrelationID) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range t.st.invoices {
		if inv.OwnerID == ownerID && inv.CorrelationID == id {
			inv.Items = copyItems(inv.Items)
			out = append(out, inv)
		}
	}
	return out, nil
}

func (t *memTx) ListInvoices(_ context.Context, q domain.Query) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range t.st.invoices {
		if inv.OwnerID != q.OwnerID || !q.InRange(inv.IssuedOn) {
			continue
		}
		if q.Status != "" && string(inv.Status) != q.Status {
			continue
		}
		if q.CreatedBy != "" && inv.CreatedBy != q.CreatedBy {
			continue
		}
		inv.Items = nil
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedOn.Equal(out[j].IssuedOn) {
			return out[i].IssuedOn.After(out[j].IssuedOn)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limit(out, q.Limit), nil
}

// LockCorrelation is a no-op for the same reason as LockInvoiceNumbers.
func (t *memTx) LockCorrelation(context.Context, string, domain.CorrelationID) error {
	return nil
}

// LockInvoiceNumbers is a no-op: the whole unit of work already holds the store lock.
func (t *memTx) LockInvoiceNumbers(context.Context, string, domain.InvoiceDirection) error {
	return nil
}

func (t *memTx) InvoiceNumbers(_ context.Context, ownerID string, dir domain.InvoiceDirection, prefix string) ([]string, error) {
	var out []string
	for _, inv := range t.st.invoices {
		if inv.OwnerID == ownerID && inv.Direction == dir && strings.HasPrefix(inv.Number, prefix) {
			out = append(out, inv.Number)
		}
	}
	return out, nil
}

func (t *memTx) InvoiceNumberTaken(_ context.Context, ownerID string, dir domain.InvoiceDirection, number string) (bool, error) {
	for _, inv := range t.st.invoices {
		if inv.OwnerID == ownerID && inv.Direction == dir && inv.Number == number {
			return true, nil
		}
	}
	return false, nil
}

// requests

func (t *memTx) InsertRequest(_ context.Context, r domain.DelegationRequest) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.requests[r.ID] = r
	return nil
}

func (t *memTx) GetRequest(_ context.Context, ownerID, id string) (domain.DelegationRequest, error) {
	r, ok := t.st.requests[id]
	if !ok || r.OwnerID != ownerID {
		return domain.DelegationRequest{}, domain.NotFound("request", id)
	}
	return r, nil
}

func (t *memTx) LockRequest(ctx context.Context, ownerID, id string) (domain.DelegationRequest, error) {
	return t.GetRequest(ctx, ownerID, id)
}

func (t *memTx) UpdateRequest(_ context.Context, r domain.DelegationRequest) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.requests[r.ID]; !ok {
		return domain.NotFound("request", r.ID)
	}
	t.st.requests[r.ID] = r
	return nil
}

func (t *memTx) RequestsByCorrelation(_ context.Context, ownerID string, id domain.CorrelationID) ([]domain.DelegationRequest, error) {
	var out []domain.DelegationRequest
	for _, r := range t.st.requests {
		if r.OwnerID == ownerID && r.CorrelationID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (t *memTx) ListRequests(_ context.Context, q domain.Query) ([]domain.DelegationRequest, error) {
	var out []domain.DelegationRequest
	for _, r := range t.st.requests {
		if r.OwnerID != q.OwnerID || !q.InRange(r.CreatedAt) {
			continue
		}
		if q.Status != "" && string(r.Status) != q.Status {
			continue
		}
		if q.CreatedBy != "" && r.SubAccountID != q.CreatedBy {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return limit(out, q.Limit), nil
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
