package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RecurringKind: fixed templates repeat their amount every month, variable
// ones need the month's amount supplied when they are run.
type RecurringKind string

const (
	RecurringFixed    RecurringKind = "fixed"
	RecurringVariable RecurringKind = "variable"
)

func (k RecurringKind) Valid() bool { return k == RecurringFixed || k == RecurringVariable }

// RecurringExpense is a monthly expense template owned by an owner.
type RecurringExpense struct {
	ID            string
	OwnerID       string
	Name          string
	Kind          RecurringKind
	Amount        decimal.Decimal
	PaymentDay    int
	Category      string
	Description   string
	PaymentMethod PaymentMethod
	WalletID      string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Period is a calendar month, formatted YYYY-MM.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod reads a YYYY-MM string.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, Validationf("period %q must look like 2006-01", s)
	}
	return PeriodOf(t), nil
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

// Day returns the given day of the period, clamped to the month's last day.
func (p Period) Day(day int) time.Time {
	last := time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// RecurringRun records that a template produced its expense for one period.
type RecurringRun struct {
	RecurringID   string
	OwnerID       string
	Period        string
	ExpenseID     string
	CorrelationID CorrelationID
	CreatedAt     time.Time
}
