package debt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
)

// maxInstallments bounds a schedule to twenty years of monthly payments.
const maxInstallments = 240

// addMonths moves t by n calendar months, keeping the day of month where
// the target month has it and clamping to its last day otherwise.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return domain.PeriodOf(first).Day(t.Day())
}

// Schedule splits total into count monthly instalments starting one month
// after start. Every instalment is total/count truncated to paise; the last
// one absorbs the remainder so the schedule sums to total exactly.
func Schedule(debtID string, total decimal.Decimal, count int, start time.Time) []domain.EMI {
	if count <= 0 {
		return nil
	}
	base := total.Div(decimal.NewFromInt(int64(count))).Truncate(2)
	out := make([]domain.EMI, 0, count)
	for i := 1; i <= count; i++ {
		amount := base
		if i == count {
			amount = total.Sub(base.Mul(decimal.NewFromInt(int64(count - 1))))
		}
		out = append(out, domain.EMI{
			ID:          uuid.NewString(),
			DebtID:      debtID,
			Installment: i,
			DueOn:       addMonths(start, i),
			Amount:      amount,
		})
	}
	return out
}
