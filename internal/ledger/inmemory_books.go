package ledger

import (
	"context"
	"sort"
	"strings"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// products

func (t *memTx) InsertProduct(_ context.Context, p domain.Product) error {
	if err := t.write(); err != nil {
		return err
	}
	if p.Code != "" {
		for _, other := range t.st.products {
			if other.OwnerID == p.OwnerID && strings.EqualFold(other.Code, p.Code) {
				return domain.Validationf("product code %s already used", p.Code)
			}
		}
	}
	t.st.products[p.ID] = p
	return nil
}

func (t *memTx) GetProduct(_ context.Context, ownerID, id string) (domain.Product, error) {
	p, ok := t.st.products[id]
	if !ok || p.OwnerID != ownerID {
		return domain.Product{}, domain.NotFound("product", id)
	}
	return p, nil
}

func (t *memTx) LockProduct(ctx context.Context, ownerID, id string) (domain.Product, error) {
	return t.GetProduct(ctx, ownerID, id)
}

func (t *memTx) UpdateProduct(_ context.Context, p domain.Product) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.products[p.ID]; !ok {
		return domain.NotFound("product", p.ID)
	}
	t.st.products[p.ID] = p
	return nil
}

func (t *memTx) DeleteProduct(_ context.Context, id string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.products, id)
	return nil
}

func (t *memTx) ListProducts(_ context.Context, ownerID string, activeOnly bool) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range t.st.products {
		if p.OwnerID != ownerID || (activeOnly && !p.Active) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// recurring expenses

func runKey(recurringID, period string) string { return recurringID + "/" + period }

func (t *memTx) InsertRecurring(_ context.Context, r domain.RecurringExpense) error {
	if err := t.write(); err != nil {
		return err
	}
	t.st.recurring[r.ID] = r
	return nil
}

func (t *memTx) GetRecurring(_ context.Context, ownerID, id string) (domain.RecurringExpense, error) {
	r, ok := t.st.recurring[id]
	if !ok || r.OwnerID != ownerID {
		return domain.RecurringExpense{}, domain.NotFound("recurring expense", id)
	}
	return r, nil
}

func (t *memTx) UpdateRecurring(_ context.Context, r domain.RecurringExpense) error {
	if err := t.write(); err != nil {
		return err
	}
	if _, ok := t.st.recurring[r.ID]; !ok {
		return domain.NotFound("recurring expense", r.ID)
	}
	t.st.recurring[r.ID] = r
	return nil
}

func (t *memTx) DeleteRecurring(_ context.Context, id string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.recurring, id)
	for key, run := range t.st.runs {
		if run.RecurringID == id {
			delete(t.st.runs, key)
		}
	}
	return nil
}

func (t *memTx) ListRecurring(_ context.Context, ownerID string) ([]domain.RecurringExpense, error) {
	var out []domain.RecurringExpense
	for _, r := range t.st.recurring {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDay != out[j].PaymentDay {
			return out[i].PaymentDay < out[j].PaymentDay
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) InsertRecurringRun(_ context.Context, run domain.RecurringRun) error {
	if err := t.write(); err != nil {
		return err
	}
	key := runKey(run.RecurringID, run.Period)
	if _, exists := t.st.runs[key]; exists {
		return domain.AlreadyProcessed("recurring expense %s already ran for %s", run.RecurringID, run.Period)
	}
	t.st.runs[key] = run
	return nil
}

func (t *memTx) RecurringRuns(_ context.Context, ownerID, period string) ([]domain.RecurringRun, error) {
	var out []domain.RecurringRun
	for _, run := range t.st.runs {
		if run.OwnerID == ownerID && run.Period == period {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// debts

func copyEMIs(emis []domain.EMI) []domain.EMI {
	if emis == nil {
		return nil
	}
	out := make([]domain.EMI, len(emis))
	copy(out, emis)
	return out
}

func (t *memTx) InsertDebt(_ context.Context, d domain.Debt) error {
	if err := t.write(); err != nil {
		return err
	}
	for _, other := range t.st.debts {
		if other.OwnerID == d.OwnerID && other.Code == d.Code {
			return domain.Validationf("debt code %s already used", d.Code)
		}
	}
	d.EMIs = copyEMIs(d.EMIs)
	t.st.debts[d.ID] = d
	return nil
}

func (t *memTx) GetDebt(_ context.Context, ownerID, id string) (domain.Debt, error) {
	d, ok := t.st.debts[id]
	if !ok || d.OwnerID != ownerID {
		return domain.Debt{}, domain.NotFound("debt", id)
	}
	d.EMIs = copyEMIs(d.EMIs)
	return d, nil
}

func (t *memTx) LockDebt(ctx context.Context, ownerID, id string) (domain.Debt, error) {
	return t.GetDebt(ctx, ownerID, id)
}

func (t *memTx) DeleteDebt(_ context.Context, id string) error {
	if err := t.write(); err != nil {
		return err
	}
	delete(t.st.debts, id)
	return nil
}

func (t *memTx) ListDebts(_ context.Context, ownerID string) ([]domain.Debt, error) {
	var out []domain.Debt
	for _, d := range t.st.debts {
		if d.OwnerID == ownerID {
			d.EMIs = copyEMIs(d.EMIs)
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// LockDebtCodes is a no-op: the whole unit of work already holds the store lock.
func (t *memTx) LockDebtCodes(context.Context, string) error {
	return nil
}

func (t *memTx) DebtCodes(_ context.Context, ownerID string) ([]string, error) {
	var out []string
	for _, d := range t.st.debts {
		if d.OwnerID == ownerID {
			out = append(out, d.Code)
		}
	}
	return out, nil
}

func (t *memTx) RepaymentsByDebt(_ context.Context, ownerID, debtID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.st.transactions {
		if tr.OwnerID == ownerID && tr.DebtID == debtID {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredOn.Equal(out[j].OccurredOn) {
			return out[i].OccurredOn.Before(out[j].OccurredOn)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
