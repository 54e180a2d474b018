package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Debt is money the owner lent to a counterparty, optionally repaid in
// equal monthly instalments.
type Debt struct {
	ID           string
	OwnerID      string
	Code         string
	Counterparty string
	Phone        string
	Total        decimal.Decimal
	InterestRate decimal.Decimal
	Purpose      string
	Notes        string
	StartOn      time.Time
	DueOn        *time.Time
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	EMIs         []EMI
}

// EMI is one scheduled instalment of a debt.
type EMI struct {
	ID          string
	DebtID      string
	Installment int
	DueOn       time.Time
	Amount      decimal.Decimal
}

// RepaymentStatus of a debt or instalment, derived from recorded repayments.
type RepaymentStatus string

const (
	RepaymentPending RepaymentStatus = "pending"
	RepaymentPartial RepaymentStatus = "partial"
	RepaymentPaid    RepaymentStatus = "paid"
	RepaymentOverdue RepaymentStatus = "overdue"
)
