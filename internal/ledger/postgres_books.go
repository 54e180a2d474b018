package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// products

const productColumns = `id, owner_id, name, code, sku, description, category, sac_code, unit, unit_price, cost_price,
    stock, active, created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Code, &p.SKU, &p.Description, &p.Category, &p.SACCode, &p.Unit,
		&p.UnitPrice, &p.CostPrice, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *pgTx) InsertProduct(ctx context.Context, p domain.Product) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO products (`+productColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.OwnerID, p.Name, p.Code, p.SKU, p.Description, p.Category, p.SACCode, p.Unit,
		p.UnitPrice, p.CostPrice, p.Stock, p.Active, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return domain.Validationf("product code %s already used", p.Code)
	}
	return err
}

func (t *pgTx) getProduct(ctx context.Context, ownerID, id, suffix string) (domain.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND owner_id = $2`+suffix, id, ownerID))
	if err != nil {
		return domain.Product{}, notFoundOr(err, "product", id)
	}
	return p, nil
}

func (t *pgTx) GetProduct(ctx context.Context, ownerID, id string) (domain.Product, error) {
	return t.getProduct(ctx, ownerID, id, "")
}

func (t *pgTx) LockProduct(ctx context.Context, ownerID, id string) (domain.Product, error) {
	return t.getProduct(ctx, ownerID, id, " FOR UPDATE")
}

func (t *pgTx) UpdateProduct(ctx context.Context, p domain.Product) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE products SET name = $1, code = $2, sku = $3, description = $4, category = $5,
        sac_code = $6, unit = $7, unit_price = $8, cost_price = $9, stock = $10, active = $11, updated_at = $12
        WHERE id = $13`,
		p.Name, p.Code, p.SKU, p.Description, p.Category, p.SACCode, p.Unit, p.UnitPrice, p.CostPrice, p.Stock,
		p.Active, p.UpdatedAt.UTC(), p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Validationf("product code %s already used", p.Code)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("product", p.ID)
	}
	return nil
}

func (t *pgTx) DeleteProduct(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (t *pgTx) ListProducts(ctx context.Context, ownerID string, activeOnly bool) ([]domain.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productColumns+` FROM products
        WHERE owner_id = $1 AND (active OR NOT $2) ORDER BY lower(name)`, ownerID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// recurring expenses

const recurringColumns = `id, owner_id, name, kind, amount, payment_day, category, description, payment_method,
    wallet_id, active, created_at, updated_at`

func scanRecurring(row pgx.Row) (domain.RecurringExpense, error) {
	var r domain.RecurringExpense
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Kind, &r.Amount, &r.PaymentDay, &r.Category, &r.Description,
		&r.PaymentMethod, &r.WalletID, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (t *pgTx) InsertRecurring(ctx context.Context, r domain.RecurringExpense) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO recurring_expenses (`+recurringColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.OwnerID, r.Name, r.Kind, r.Amount, r.PaymentDay, r.Category, r.Description, r.PaymentMethod,
		r.WalletID, r.Active, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	return err
}

func (t *pgTx) GetRecurring(ctx context.Context, ownerID, id string) (domain.RecurringExpense, error) {
	r, err := scanRecurring(t.tx.QueryRow(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses
        WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err != nil {
		return domain.RecurringExpense{}, notFoundOr(err, "recurring expense", id)
	}
	return r, nil
}

func (t *pgTx) UpdateRecurring(ctx context.Context, r domain.RecurringExpense) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE recurring_expenses SET name = $1, kind = $2, amount = $3, payment_day = $4, category = $5,
        description = $6, payment_method = $7, wallet_id = $8, active = $9, updated_at = $10 WHERE id = $11`,
		r.Name, r.Kind, r.Amount, r.PaymentDay, r.Category, r.Description, r.PaymentMethod, r.WalletID, r.Active,
		r.UpdatedAt.UTC(), r.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.NotFound("recurring expense", r.ID)
	}
	return nil
}

// DeleteRecurring removes the template; its runs go with it through ON DELETE CASCADE.
func (t *pgTx) DeleteRecurring(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM recurring_expenses WHERE id = $1`, id)
	return err
}

func (t *pgTx) ListRecurring(ctx context.Context, ownerID string) ([]domain.RecurringExpense, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+recurringColumns+` FROM recurring_expenses
        WHERE owner_id = $1 ORDER BY payment_day, created_at`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RecurringExpense
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertRecurringRun(ctx context.Context, run domain.RecurringRun) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO recurring_runs (recurring_id, owner_id, period, expense_id, correlation_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		run.RecurringID, run.OwnerID, run.Period, run.ExpenseID, string(run.CorrelationID), run.CreatedAt.UTC())
	if isUniqueViolation(err) {
		return domain.AlreadyProcessed("recurring expense %s already ran for %s", run.RecurringID, run.Period)
	}
	return err
}

func (t *pgTx) RecurringRuns(ctx context.Context, ownerID, period string) ([]domain.RecurringRun, error) {
	rows, err := t.tx.Query(ctx, `SELECT recurring_id, owner_id, period, expense_id, correlation_id, created_at
        FROM recurring_runs WHERE owner_id = $1 AND period = $2 ORDER BY created_at`, ownerID, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RecurringRun
	for rows.Next() {
		var run domain.RecurringRun
		var corr string
		if err := rows.Scan(&run.RecurringID, &run.OwnerID, &run.Period, &run.ExpenseID, &corr, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.CorrelationID = domain.CorrelationID(corr)
		out = append(out, run)
	}
	return out, rows.Err()
}

// debts

const debtColumns = `id, owner_id, code, counterparty, phone, total, interest_rate, purpose, notes, start_on, due_on,
    created_by, created_at, updated_at`

func scanDebt(row pgx.Row) (domain.Debt, error) {
	var d domain.Debt
	err := row.Scan(&d.ID, &d.OwnerID, &d.Code, &d.Counterparty, &d.Phone, &d.Total, &d.InterestRate, &d.Purpose,
		&d.Notes, &d.StartOn, &d.DueOn, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (t *pgTx) loadEMIs(ctx context.Context, d *domain.Debt) error {
	rows, err := t.tx.Query(ctx, `SELECT id, debt_id, installment, due_on, amount
        FROM debt_emis WHERE debt_id = $1 ORDER BY installment`, d.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	d.EMIs = nil
	for rows.Next() {
		var e domain.EMI
		if err := rows.Scan(&e.ID, &e.DebtID, &e.Installment, &e.DueOn, &e.Amount); err != nil {
			return err
		}
		d.EMIs = append(d.EMIs, e)
	}
	return rows.Err()
}

func (t *pgTx) InsertDebt(ctx context.Context, d domain.Debt) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO debts (`+debtColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.OwnerID, d.Code, d.Counterparty, d.Phone, d.Total, d.InterestRate, d.Purpose, d.Notes, d.StartOn,
		d.DueOn, d.CreatedBy, d.CreatedAt.UTC(), d.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Validationf("debt code %s already used", d.Code)
		}
		return err
	}
	for _, e := range d.EMIs {
		if _, err := t.tx.Exec(ctx, `INSERT INTO debt_emis (id, debt_id, installment, due_on, amount)
            VALUES ($1, $2, $3, $4, $5)`, e.ID, d.ID, e.Installment, e.DueOn, e.Amount); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) getDebt(ctx context.Context, ownerID, id, suffix string) (domain.Debt, error) {
	d, err := scanDebt(t.tx.QueryRow(ctx, `SELECT `+debtColumns+` FROM debts WHERE id = $1 AND owner_id = $2`+suffix, id, ownerID))
	if err != nil {
		return domain.Debt{}, notFoundOr(err, "debt", id)
	}
	if err := t.loadEMIs(ctx, &d); err != nil {
		return domain.Debt{}, err
	}
	return d, nil
}

func (t *pgTx) GetDebt(ctx context.Context, ownerID, id string) (domain.Debt, error) {
	return t.getDebt(ctx, ownerID, id, "")
}

func (t *pgTx) LockDebt(ctx context.Context, ownerID, id string) (domain.Debt, error) {
	return t.getDebt(ctx, ownerID, id, " FOR UPDATE")
}

// DeleteDebt removes the debt; instalments go with it through ON DELETE CASCADE.
func (t *pgTx) DeleteDebt(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM debts WHERE id = $1`, id)
	return err
}

func (t *pgTx) ListDebts(ctx context.Context, ownerID string) ([]domain.Debt, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+debtColumns+` FROM debts WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	var out []domain.Debt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := t.loadEMIs(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *pgTx) LockDebtCodes(ctx context.Context, ownerID string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "debt-code:"+ownerID)
	return err
}

func (t *pgTx) DebtCodes(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := t.tx.Query(ctx, `SELECT code FROM debts WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		out = append(out, code)
	}
	return out, rows.Err()
}

func (t *pgTx) RepaymentsByDebt(ctx context.Context, ownerID, debtID string) ([]domain.Transaction, error) {
	return collectTransactions(t.tx.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE owner_id = $1 AND debt_id = $2 ORDER BY occurred_on, created_at`, ownerID, debtID))
}
