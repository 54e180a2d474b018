package debt

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// Installment is one EMI with what has been paid against it.
type Installment struct {
	domain.EMI
	Paid      decimal.Decimal
	Remaining decimal.Decimal
	Status    domain.RepaymentStatus
}

// View is a debt with its repayment position. Everything here is derived
// from the repayment transactions, so deleting one through the transaction
// manager also takes it off the debt.
type View struct {
	Debt         domain.Debt
	Paid         decimal.Decimal
	Outstanding  decimal.Decimal
	Status       domain.RepaymentStatus
	Installments []Installment
	Repayments   []domain.Transaction
}

func statusOf(paid, owed decimal.Decimal, due *time.Time, today time.Time) domain.RepaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(owed):
		return domain.RepaymentPaid
	case due != nil && due.Before(today):
		return domain.RepaymentOverdue
	case paid.IsPositive():
		return domain.RepaymentPartial
	default:
		return domain.RepaymentPending
	}
}

// buildView folds repayments into d as of today. Repayments tagged with an
// instalment count against it; untagged ones fill instalments in order.
func buildView(d domain.Debt, repayments []domain.Transaction, today time.Time) View {
	v := View{Debt: d, Paid: decimal.Zero, Repayments: repayments}
	byEMI := make(map[string]decimal.Decimal, len(d.EMIs))
	loose := decimal.Zero
	for _, r := range repayments {
		v.Paid = v.Paid.Add(r.Amount)
		if r.EMIID != "" {
			byEMI[r.EMIID] = byEMI[r.EMIID].Add(r.Amount)
		} else {
			loose = loose.Add(r.Amount)
		}
	}
	emis := append([]domain.EMI(nil), d.EMIs...)
	sort.Slice(emis, func(i, j int) bool { return emis[i].Installment < emis[j].Installment })
	for _, e := range emis {
		paid := byEMI[e.ID]
		if gap := e.Amount.Sub(paid); gap.IsPositive() && loose.IsPositive() {
			take := decimal.Min(gap, loose)
			paid = paid.Add(take)
			loose = loose.Sub(take)
		}
		due := e.DueOn
		v.Installments = append(v.Installments, Installment{
			EMI:       e,
			Paid:      paid,
			Remaining: decimal.Max(e.Amount.Sub(paid), decimal.Zero),
			Status:    statusOf(paid, e.Amount, &due, today),
		})
	}
	v.Outstanding = decimal.Max(d.Total.Sub(v.Paid), decimal.Zero)

	v.Status = statusOf(v.Paid, d.Total, d.DueOn, today)
	if v.Status != domain.RepaymentPaid {
		for _, in := range v.Installments {
			if in.Status == domain.RepaymentOverdue {
				v.Status = domain.RepaymentOverdue
				break
			}
		}
	}
	return v
}

func (v View) installment(id string) (Installment, bool) {
	for _, in := range v.Installments {
		if in.ID == id {
			return in, true
		}
	}
	return Installment{}, false
}

// nextOpen returns the earliest instalment with something left to pay.
func (v View) nextOpen() (Installment, bool) {
	for _, in := range v.Installments {
		if in.Remaining.IsPositive() {
			return in, true
		}
	}
	return Installment{}, false
}
