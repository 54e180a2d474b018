package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletKind is either the single cash wallet or one of N bank wallets.
type WalletKind string

const (
	WalletCash WalletKind = "cash"
	WalletBank WalletKind = "bank"
)

func (k WalletKind) Valid() bool { return k == WalletCash || k == WalletBank }

// PaymentMethod selects which kind of wallet a movement hits.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentBank PaymentMethod = "bank"
)

func (m PaymentMethod) Valid() bool { return m == PaymentCash || m == PaymentBank }

// Direction of a wallet effect.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

func (d Direction) Valid() bool { return d == Credit || d == Debit }

// Inverse returns the direction that undoes d.
func (d Direction) Inverse() Direction {
	if d == Credit {
		return Debit
	}
	return Credit
}

// Signed returns amount with the sign of its effect on a balance.
func (d Direction) Signed(amount decimal.Decimal) decimal.Decimal {
	if d == Debit {
		return amount.Neg()
	}
	return amount
}

// Wallet holds the authoritative running balance of one cash box or bank account.
// Balance only changes through wallet.Service.Apply.
type Wallet struct {
	ID             string
	OwnerID        string
	Kind           WalletKind
	Name           string
	BankName       string
	AccountNumber  string
	RoutingCode    string
	Balance        decimal.Decimal
	OpeningBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WalletDelta is the signed change applied to one wallet.
type WalletDelta struct {
	WalletID string
	Delta    decimal.Decimal
}

// CheckScale rejects values carrying more than places decimal places, which
// the NUMERIC columns would otherwise round away.
func CheckScale(v decimal.Decimal, places int32, what string) error {
	if !v.Equal(v.Round(places)) {
		return Validationf("%s %s has more than %d decimal places", what, v.String(), places)
	}
	return nil
}

// CheckAmount accepts positive amounts with at most two decimal places.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Validationf("amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return Validationf("amount %s has more than two decimal places", amount.String())
	}
	return nil
}
