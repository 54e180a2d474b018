package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// PostgresStore persists the ledger in PostgreSQL. Each unit of work is one pgx.Tx.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (s *PostgresStore) Read(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (s *PostgresStore) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(entity, id)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// rangeClause appends date range, creator and limit filters to a query.
func rangeClause(q domain.Query, dateCol, creatorCol string, args []any) (string, []any) {
	var b strings.Builder
	if !q.From.IsZero() {
		args = append(args, q.From)
		fmt.Fprintf(&b, " AND %s >= $%d", dateCol, len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		fmt.Fprintf(&b, " AND %s <= $%d", dateCol, len(args))
	}
	if q.CreatedBy != "" {
		args = append(args, q.CreatedBy)
		fmt.Fprintf(&b, " AND %s = $%d", creatorCol, len(args))
	}
	return b.String(), args
}

func limitClause(q domain.Query) string {
	if q.Limit > 0 {
		return fmt.Sprintf(" LIMIT %d", q.Limit)
	}
	return ""
}

func (t *pgTx) CorrelationInUse(ctx context.Context, id domain.CorrelationID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM expenses WHERE correlation_id = $1)
        OR EXISTS (SELECT 1 FROM transactions WHERE correlation_id = $1)
        OR EXISTS (SELECT 1 FROM invoices WHERE correlation_id = $1)`
	var used bool
	if err := t.tx.QueryRow(ctx, query, string(id)).Scan(&used); err != nil {
		return false, err
	}
	return used, nil
}

func (t *pgTx) LockCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "correlation:"+ownerID+":"+string(id))
	return err
}

// wallets

const walletColumns = `id, owner_id, kind, name, bank_name, account_number, routing_code, balance, opening_balance, created_at, updated_at`

func scanWallet(row pgx.Row) (domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.OwnerID, &w.Kind, &w.Name, &w.BankName, &w.AccountNumber, &w.RoutingCode,
		&w.Balance, &w.OpeningBalance, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (t *pgTx) InsertWallet(ctx context.Context, w domain.Wallet) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO wallets (`+walletColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.OwnerID, w.Kind, w.Name, w.BankName, w.AccountNumber, w.RoutingCode,
		w.Balance, w.OpeningBalance, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if isUniqueViolation(err) && w.Kind == domain.WalletCash {
		return domain.AlreadyProcessed("owner %s already has a cash wallet", w.OwnerID)
	}
	return err
}

func (t *pgTx) GetWallet(ctx context.Context, ownerID, id string) (domain.Wallet, error) {
	w, err := scanWallet(t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return domain.Wallet{}, notFoundOr(err, "wallet", id)
	}
	return w, nil
}

func (t *pgTx) LockWallet(ctx context.Context, ownerID, id string) (domain.Wallet, error) {
	w, err := scanWallet(t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, ownerID))
	if err != nil {
		return domain.Wallet{}, notFoundOr(err, "wallet", id)
	}
	return w, nil
}

func (t *pgTx) CashWallet(ctx context.Context, ownerID string) (domain.Wallet, error) {
	w, err := scanWallet(t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 AND kind = 'cash'`, ownerID))
	if err != nil {
		return domain.Wallet{}, notFoundOr(err, "cash wallet of owner", ownerID)
	}
	return w, nil
}

func (t *pgTx) ListWallets(ctx context.Context, ownerID string) ([]domain.Wallet, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1
        ORDER BY kind = 'cash' DESC, created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (t *pgTx) SaveBalance(ctx context.Context, id string, balance decimal.Decimal, at time.Time) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = $2 WHERE id = $3`, balance, at.UTC(), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("wallet", id)
	}
	return nil
}

// expenses

const expenseColumns = `id, owner_id, correlation_id, amount, category, description, payment_method, payment_type,
    wallet_id, receipt_ref, spent_on, created_by, request_id, created_at, updated_at`

func scanExpense(row pgx.Row) (domain.Expense, error) {
	var e domain.Expense
	var corr string
	err := row.Scan(&e.ID, &e.OwnerID, &corr, &e.Amount, &e.Category, &e.Description, &e.PaymentMethod, &e.PaymentType,
		&e.WalletID, &e.ReceiptRef, &e.SpentOn, &e.CreatedBy, &e.RequestID, &e.CreatedAt, &e.UpdatedAt)
	e.CorrelationID = domain.CorrelationID(corr)
	return e, err
}

func collectExpenses(rows pgx.Rows, err error) ([]domain.Expense, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertExpense(ctx context.Context, e domain.Expense) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO expenses (`+expenseColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.OwnerID, string(e.CorrelationID), e.Amount, e.Category, e.Description, e.PaymentMethod, e.PaymentType,
		e.WalletID, e.ReceiptRef, e.SpentOn, e.CreatedBy, e.RequestID, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	return err
}

func (t *pgTx) GetExpense(ctx context.Context, ownerID, id string) (domain.Expense, error) {
	e, err := scanExpense(t.tx.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return domain.Expense{}, notFoundOr(err, "expense", id)
	}
	return e, nil
}

func (t *pgTx) UpdateExpense(ctx context.Context, e domain.Expense) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE expenses SET category = $1, description = $2, receipt_ref = $3, spent_on = $4, updated_at = $5
        WHERE id = $6`, e.Category, e.Description, e.ReceiptRef, e.SpentOn, e.UpdatedAt.UTC(), e.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("expense", e.ID)
	}
	return nil
}

func (t *pgTx) DeleteExpense(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	return err
}

func (t *pgTx) ExpensesByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.Expense, error) {
	return collectExpenses(t.tx.Query(ctx, `SELECT `+expenseColumns+` FROM expenses
        WHERE owner_id = $1 AND correlation_id = $2 FOR UPDATE`, ownerID, string(id)))
}

func (t *pgTx) ListExpenses(ctx context.Context, q domain.Query) ([]domain.Expense, error) {
	where, args := rangeClause(q, "spent_on", "created_by", []any{q.OwnerID})
	return collectExpenses(t.tx.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE owner_id = $1`+where+
		` ORDER BY spent_on DESC, created_at DESC`+limitClause(q), args...))
}

// transactions

const transactionColumns = `id, owner_id, correlation_id, amount, direction, payment_method, wallet_id, tag, category,
    description, attachment_ref, expense_id, invoice_id, debt_id, emi_id, created_by, request_id, occurred_on, created_at, updated_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var tr domain.Transaction
	var corr string
	err := row.Scan(&tr.ID, &tr.OwnerID, &corr, &tr.Amount, &tr.Direction, &tr.PaymentMethod, &tr.WalletID, &tr.Tag,
		&tr.Category, &tr.Description, &tr.AttachmentRef, &tr.ExpenseID, &tr.InvoiceID, &tr.DebtID, &tr.EMIID,
		&tr.CreatedBy, &tr.RequestID, &tr.OccurredOn, &tr.CreatedAt, &tr.UpdatedAt)
	tr.CorrelationID = domain.CorrelationID(corr)
	return tr, err
}

func collectTransactions(rows pgx.Rows, err error) ([]domain.Transaction, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr domain.Transaction) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO transactions (`+transactionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		tr.ID, tr.OwnerID, string(tr.CorrelationID), tr.Amount, tr.Direction, tr.PaymentMethod, tr.WalletID, tr.Tag,
		tr.Category, tr.Description, tr.AttachmentRef, tr.ExpenseID, tr.InvoiceID, tr.DebtID, tr.EMIID, tr.CreatedBy,
		tr.RequestID, tr.OccurredOn, tr.CreatedAt.UTC(), tr.UpdatedAt.UTC())
	return err
}

func (t *pgTx) GetTransaction(ctx context.Context, ownerID, id string) (domain.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return domain.Transaction{}, notFoundOr(err, "transaction", id)
	}
	return tr, nil
}

func (t *pgTx) UpdateTransaction(ctx context.Context, tr domain.Transaction) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE transactions SET category = $1, description = $2, attachment_ref = $3, occurred_on = $4, updated_at = $5
        WHERE id = $6`, tr.Category, tr.Description, tr.AttachmentRef, tr.OccurredOn, tr.UpdatedAt.UTC(), tr.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("transaction", tr.ID)
	}
	return nil
}

func (t *pgTx) DeleteTransaction(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

func (t *pgTx) TransactionsByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.Transaction, error) {
	return collectTransactions(t.tx.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE owner_id = $1 AND correlation_id = $2 ORDER BY created_at FOR UPDATE`, ownerID, string(id)))
}

func (t *pgTx) ListTransactions(ctx context.Context, q domain.Query) ([]domain.Transaction, error) {
	args := []any{q.OwnerID}
	where := ""
	if q.Status != "" {
		args = append(args, q.Status)
		where = fmt.Sprintf(" AND direction = $%d", len(args))
	}
	more, args := rangeClause(q, "occurred_on", "created_by", args)
	return collectTransactions(t.tx.Query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE owner_id = $1`+where+more+
		` ORDER BY occurred_on DESC, created_at DESC`+limitClause(q), args...))
}

// invoices

const invoiceColumns = `id, owner_id, correlation_id, direction, number, status, client_name, client_email, client_phone,
    client_address, notes, subtotal, cgst_rate, sgst_rate, igst_rate, other_tax, tax_total, total, received_amount,
    wallet_id, expense_id, created_by, reviewed_by, reviewed_at, rejection_reason, issued_on, due_on, created_at, updated_at`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	var corr string
	err := row.Scan(&inv.ID, &inv.OwnerID, &corr, &inv.Direction, &inv.Number, &inv.Status, &inv.ClientName,
		&inv.ClientEmail, &inv.ClientPhone, &inv.ClientAddress, &inv.Notes, &inv.Subtotal, &inv.CGSTRate, &inv.SGSTRate,
		&inv.IGSTRate, &inv.OtherTax, &inv.TaxTotal, &inv.Total, &inv.ReceivedAmount, &inv.WalletID, &inv.ExpenseID,
		&inv.CreatedBy, &inv.ReviewedBy, &inv.ReviewedAt, &inv.RejectionReason, &inv.IssuedOn, &inv.DueOn,
		&inv.CreatedAt, &inv.UpdatedAt)
	inv.CorrelationID = domain.CorrelationID(corr)
	return inv, err
}

func collectInvoices(rows pgx.Rows, err error) ([]domain.Invoice, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (t *pgTx) loadItems(ctx context.Context, inv *domain.Invoice) error {
	rows, err := t.tx.Query(ctx, `SELECT id, invoice_id, position, description, product_id, sac_code, quantity, unit_price, total
        FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, inv.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	inv.Items = nil
	for rows.Next() {
		var it domain.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.Position, &it.Description, &it.ProductID, &it.SACCode,
			&it.Quantity, &it.UnitPrice, &it.Total); err != nil {
			return err
		}
		inv.Items = append(inv.Items, it)
	}
	return rows.Err()
}

func (t *pgTx) InsertInvoice(ctx context.Context, inv domain.Invoice) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
                $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		inv.ID, inv.OwnerID, string(inv.CorrelationID), inv.Direction, inv.Number, inv.Status, inv.ClientName,
		inv.ClientEmail, inv.ClientPhone, inv.ClientAddress, inv.Notes, inv.Subtotal, inv.CGSTRate, inv.SGSTRate,
		inv.IGSTRate, inv.OtherTax, inv.TaxTotal, inv.Total, inv.ReceivedAmount, inv.WalletID, inv.ExpenseID,
		inv.CreatedBy, inv.ReviewedBy, inv.ReviewedAt, inv.RejectionReason, inv.IssuedOn, inv.DueOn,
		inv.CreatedAt.UTC(), inv.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Validationf("invoice number %s already used", inv.Number)
		}
		return err
	}
	for _, it := range inv.Items {
		if _, err := t.tx.Exec(ctx, `INSERT INTO invoice_items (id, invoice_id, position, description, product_id, sac_code, quantity, unit_price, total)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, it.ID, inv.ID, it.Position, it.Description, it.ProductID, it.SACCode,
			it.Quantity, it.UnitPrice, it.Total); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) getInvoice(ctx context.Context, ownerID, id, suffix string) (domain.Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND owner_id = $2`+suffix, id, ownerID))
	if err != nil {
		return domain.Invoice{}, notFoundOr(err, "invoice", id)
	}
	if err := t.loadItems(ctx, &inv); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func (t *pgTx) GetInvoice(ctx context.Context, ownerID, id string) (domain.Invoice, error) {
	return t.getInvoice(ctx, ownerID, id, "")
}

func (t *pgTx) LockInvoice(ctx context.Context, ownerID, id string) (domain.Invoice, error) {
	return t.getInvoice(ctx, ownerID, id, " FOR UPDATE")
}

func (t *pgTx) UpdateInvoice(ctx context.Context, inv domain.Invoice) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE invoices SET status = $1, wallet_id = $2, reviewed_by = $3, reviewed_at = $4,
        rejection_reason = $5, received_amount = $6, notes = $7, updated_at = $8 WHERE id = $9`,
		inv.Status, inv.WalletID, inv.ReviewedBy, inv.ReviewedAt, inv.RejectionReason, inv.ReceivedAmount, inv.Notes,
		inv.UpdatedAt.UTC(), inv.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("invoice", inv.ID)
	}
	return nil
}

// DeleteInvoice removes the invoice; items go with it through ON DELETE CASCADE.
func (t *pgTx) DeleteInvoice(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	return err
}

func (t *pgTx) InvoicesByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.Invoice, error) {
	invoices, err := collectInvoices(t.tx.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
        WHERE owner_id = $1 AND correlation_id = $2 FOR UPDATE`, ownerID, string(id)))
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		if err := t.loadItems(ctx, &invoices[i]); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (t *pgTx) ListInvoices(ctx context.Context, q domain.Query) ([]domain.Invoice, error) {
	args := []any{q.OwnerID}
	where := ""
	if q.Status != "" {
		args = append(args, q.Status)
		where = fmt.Sprintf(" AND status = $%d", len(args))
	}
	more, args := rangeClause(q, "issued_on", "created_by", args)
	return collectInvoices(t.tx.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE owner_id = $1`+where+more+
		` ORDER BY issued_on DESC, created_at DESC`+limitClause(q), args...))
}

func (t *pgTx) LockInvoiceNumbers(ctx context.Context, ownerID string, dir domain.InvoiceDirection) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "invoice-number:"+ownerID+":"+string(dir))
	return err
}

func (t *pgTx) InvoiceNumbers(ctx context.Context, ownerID string, dir domain.InvoiceDirection, prefix string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT number FROM invoices WHERE owner_id = $1 AND direction = $2 AND starts_with(number, $3)`,
		ownerID, dir, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (t *pgTx) InvoiceNumberTaken(ctx context.Context, ownerID string, dir domain.InvoiceDirection, number string) (bool, error) {
	var taken bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE owner_id = $1 AND direction = $2 AND number = $3)`,
		ownerID, dir, number).Scan(&taken)
	return taken, err
}

// requests

const requestColumns = `id, owner_id, sub_account_id, kind, payload, status, correlation_id, reviewer_id, reviewed_at,
    reason, created_at, updated_at`

func scanRequest(row pgx.Row) (domain.DelegationRequest, error) {
	var r domain.DelegationRequest
	var raw []byte
	var corr string
	if err := row.Scan(&r.ID, &r.OwnerID, &r.SubAccountID, &r.Kind, &raw, &r.Status, &corr, &r.ReviewerID,
		&r.ReviewedAt, &r.Reason, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.DelegationRequest{}, err
	}
	r.CorrelationID = domain.CorrelationID(corr)
	payload, err := domain.DecodePayload(r.Kind, raw)
	if err != nil {
		return domain.DelegationRequest{}, err
	}
	r.Payload = payload
	return r, nil
}

func collectRequests(rows pgx.Rows, err error) ([]domain.DelegationRequest, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DelegationRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertRequest(ctx context.Context, r domain.DelegationRequest) error {
	raw, err := domain.EncodePayload(r.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO delegation_requests (`+requestColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.OwnerID, r.SubAccountID, r.Kind, raw, r.Status, string(r.CorrelationID), r.ReviewerID,
		r.ReviewedAt, r.Reason, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	return err
}

func (t *pgTx) GetRequest(ctx context.Context, ownerID, id string) (domain.DelegationRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM delegation_requests WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return domain.DelegationRequest{}, notFoundOr(err, "request", id)
	}
	return r, nil
}

func (t *pgTx) LockRequest(ctx context.Context, ownerID, id string) (domain.DelegationRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(ctx, `SELECT `+requestColumns+` FROM delegation_requests WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, ownerID))
	if err != nil {
		return domain.DelegationRequest{}, notFoundOr(err, "request", id)
	}
	return r, nil
}

func (t *pgTx) UpdateRequest(ctx context.Context, r domain.DelegationRequest) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE delegation_requests SET status = $1, correlation_id = $2, reviewer_id = $3,
        reviewed_at = $4, reason = $5, updated_at = $6 WHERE id = $7`,
		r.Status, string(r.CorrelationID), r.ReviewerID, r.ReviewedAt, r.Reason, r.UpdatedAt.UTC(), r.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("request", r.ID)
	}
	return nil
}

func (t *pgTx) RequestsByCorrelation(ctx context.Context, ownerID string, id domain.CorrelationID) ([]domain.DelegationRequest, error) {
	return collectRequests(t.tx.Query(ctx, `SELECT `+requestColumns+` FROM delegation_requests
        WHERE owner_id = $1 AND correlation_id = $2 FOR UPDATE`, ownerID, string(id)))
}

func (t *pgTx) ListRequests(ctx context.Context, q domain.Query) ([]domain.DelegationRequest, error) {
	args := []any{q.OwnerID}
	where := ""
	if q.Status != "" {
		args = append(args, q.Status)
		where = fmt.Sprintf(" AND status = $%d", len(args))
	}
	more, args := rangeClause(q, "created_at", "sub_account_id", args)
	return collectRequests(t.tx.Query(ctx, `SELECT `+requestColumns+` FROM delegation_requests WHERE owner_id = $1`+where+more+
		` ORDER BY created_at DESC`+limitClause(q), args...))
}
