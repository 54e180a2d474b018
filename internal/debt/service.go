// Package debt tracks money lent by the owner and its repayment in monthly
// instalments. Repayments are ordinary credit transactions tagged with the
// debt, so wallets only ever move through the transaction manager.
package debt

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ids"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/transaction"
)

const codePrefix = "DEBT-"

// Service is the debt book.
type Service struct {
	store        ledger.Store
	transactions *transaction.Service
	logger       *slog.Logger
	now          func() time.Time
}

// NewService constructs a debt book that records repayments through transactions.
func NewService(store ledger.Store, transactions *transaction.Service, logger *slog.Logger) *Service {
	return &Service{
		store:        store,
		transactions: transactions,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) today() time.Time {
	n := s.now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// CreateInput describes a new debt. Installments of zero records a debt
// repaid at will before DueOn.
type CreateInput struct {
	Counterparty string
	Phone        string
	Total        decimal.Decimal
	InterestRate decimal.Decimal
	Purpose      string
	Notes        string
	StartOn      time.Time
	DueOn        *time.Time
	Installments int
}

func (in CreateInput) validate() error {
	if strings.TrimSpace(in.Counterparty) == "" {
		return domain.Validationf("counterparty is required")
	}
	if err := domain.CheckAmount(in.Total); err != nil {
		return err
	}
	if in.InterestRate.IsNegative() || in.InterestRate.GreaterThan(decimal.NewFromInt(100)) {
		return domain.Validationf("interest rate must be between 0 and 100")
	}
	if err := domain.CheckScale(in.InterestRate, 2, "interest rate"); err != nil {
		return err
	}
	if in.Installments < 0 || in.Installments > maxInstallments {
		return domain.Validationf("installments must be between 0 and %d", maxInstallments)
	}
	if in.Installments > 0 && in.Total.Div(decimal.NewFromInt(int64(in.Installments))).Truncate(2).IsZero() {
		return domain.Validationf("%d installments leave nothing per month", in.Installments)
	}
	if in.DueOn != nil && !in.StartOn.IsZero() && in.DueOn.Before(in.StartOn) {
		return domain.Validationf("due date is before the start date")
	}
	return nil
}

// Create records a debt under the next DEBT-NNNN code of the owner and lays
// out its instalments. No wallet moves: the debt is a receivable until it
// is repaid.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (domain.Debt, error) {
	if err := caller.RequireOwner("recording a debt"); err != nil {
		return domain.Debt{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Debt{}, err
	}
	now := s.now()
	start := in.StartOn
	if start.IsZero() {
		start = s.today()
	}
	d := domain.Debt{
		ID:           uuid.NewString(),
		OwnerID:      caller.OwnerID,
		Counterparty: strings.TrimSpace(in.Counterparty),
		Phone:        strings.TrimSpace(in.Phone),
		Total:        in.Total,
		InterestRate: in.InterestRate,
		Purpose:      strings.TrimSpace(in.Purpose),
		Notes:        in.Notes,
		StartOn:      start,
		DueOn:        in.DueOn,
		CreatedBy:    caller.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.EMIs = Schedule(d.ID, d.Total, in.Installments, start)
	if d.DueOn == nil && len(d.EMIs) > 0 {
		last := d.EMIs[len(d.EMIs)-1].DueOn
		d.DueOn = &last
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.LockDebtCodes(ctx, caller.OwnerID); err != nil {
			return fmt.Errorf("lock debt codes: %w", err)
		}
		codes, err := tx.DebtCodes(ctx, caller.OwnerID)
		if err != nil {
			return err
		}
		d.Code = fmt.Sprintf("%s%04d", codePrefix, ids.MaxSuffix(codes, codePrefix)+1)
		if err := tx.InsertDebt(ctx, d); err != nil {
			return fmt.Errorf("insert debt: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Debt{}, err
	}
	s.logger.Info("debt recorded",
		slog.String("owner_id", d.OwnerID),
		slog.String("code", d.Code),
		slog.String("total", d.Total.StringFixed(2)),
		slog.Int("installments", len(d.EMIs)),
	)
	return d, nil
}

// PaymentInput is one repayment received from the counterparty. EMIID
// picks the instalment; when empty the earliest open one is used.
type PaymentInput struct {
	Amount        decimal.Decimal
	EMIID         string
	PaymentMethod domain.PaymentMethod
	WalletID      string
	PaidOn        time.Time
	Note          string
}

// RecordPayment credits the chosen wallet through the transaction manager
// with a transaction tagged by the debt and instalment. The debt row is
// locked so concurrent repayments cannot overpay it.
func (s *Service) RecordPayment(ctx context.Context, caller domain.Caller, debtID string, in PaymentInput) (domain.Transaction, View, error) {
	if err := caller.RequireOwner("recording a repayment"); err != nil {
		return domain.Transaction{}, View{}, err
	}
	if err := domain.CheckAmount(in.Amount); err != nil {
		return domain.Transaction{}, View{}, err
	}
	var (
		t  domain.Transaction
		ev domain.Event
		v  View
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		d, err := tx.LockDebt(ctx, caller.OwnerID, debtID)
		if err != nil {
			return err
		}
		repayments, err := tx.RepaymentsByDebt(ctx, caller.OwnerID, d.ID)
		if err != nil {
			return err
		}
		before := buildView(d, repayments, s.today())
		if !before.Outstanding.IsPositive() {
			return domain.AlreadyProcessed("debt %s is fully repaid", d.Code)
		}
		if in.Amount.GreaterThan(before.Outstanding) {
			return domain.Validationf("repayment %s exceeds the outstanding %s", in.Amount.StringFixed(2), before.Outstanding.StringFixed(2))
		}
		emiID := in.EMIID
		if len(before.Installments) > 0 {
			target, ok := before.nextOpen()
			if emiID != "" {
				target, ok = before.installment(emiID)
				if !ok {
					return domain.NotFound("installment", emiID)
				}
			}
			if !target.Remaining.IsPositive() {
				return domain.AlreadyProcessed("installment %d of %s is already paid", target.Installment, d.Code)
			}
			if in.Amount.GreaterThan(target.Remaining) {
				return domain.Validationf("repayment %s exceeds installment %d's remaining %s",
					in.Amount.StringFixed(2), target.Installment, target.Remaining.StringFixed(2))
			}
			emiID = target.ID
		} else if emiID != "" {
			return domain.Validationf("debt %s has no installments", d.Code)
		}

		description := fmt.Sprintf("%s repayment from %s", d.Code, d.Counterparty)
		if note := strings.TrimSpace(in.Note); note != "" {
			description += ": " + note
		}
		t, ev, err = s.transactions.CreateInTx(ctx, tx, caller, "", transaction.CreateInput{
			Amount:        in.Amount,
			Direction:     domain.Credit,
			PaymentMethod: in.PaymentMethod,
			WalletID:      in.WalletID,
			Category:      "debt repayment",
			Description:   description,
			OccurredOn:    in.PaidOn,
			DebtID:        d.ID,
			EMIID:         emiID,
		})
		if err != nil {
			return err
		}
		v = buildView(d, append(repayments, t), s.today())
		return nil
	})
	if err != nil {
		s.logger.Debug("repayment rejected", slog.String("owner_id", caller.OwnerID), slog.String("debt_id", debtID), slog.Any("error", err))
		return domain.Transaction{}, View{}, err
	}
	s.transactions.Committed(ctx, ev)
	return t, v, nil
}

// Get returns a debt with its repayment position.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (View, error) {
	if err := caller.RequireOwner("viewing debts"); err != nil {
		return View{}, err
	}
	var v View
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		d, err := tx.GetDebt(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		repayments, err := tx.RepaymentsByDebt(ctx, caller.OwnerID, d.ID)
		if err != nil {
			return err
		}
		v = buildView(d, repayments, s.today())
		return nil
	})
	return v, err
}

// List returns every debt of the owner, newest first, optionally filtered
// by status.
func (s *Service) List(ctx context.Context, caller domain.Caller, status domain.RepaymentStatus) ([]View, error) {
	if err := caller.RequireOwner("viewing debts"); err != nil {
		return nil, err
	}
	var out []View
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		debts, err := tx.ListDebts(ctx, caller.OwnerID)
		if err != nil {
			return err
		}
		today := s.today()
		for _, d := range debts {
			repayments, err := tx.RepaymentsByDebt(ctx, caller.OwnerID, d.ID)
			if err != nil {
				return err
			}
			v := buildView(d, repayments, today)
			if status == "" || v.Status == status {
				out = append(out, v)
			}
		}
		return nil
	})
	return out, err
}

// Due is an open instalment with its debt.
type Due struct {
	Debt        domain.Debt
	Installment Installment
}

// Upcoming lists open instalments due within days from today, overdue ones
// included, earliest first.
func (s *Service) Upcoming(ctx context.Context, caller domain.Caller, days int) ([]Due, error) {
	if days < 0 {
		return nil, domain.Validationf("days cannot be negative")
	}
	views, err := s.List(ctx, caller, "")
	if err != nil {
		return nil, err
	}
	horizon := s.today().AddDate(0, 0, days)
	var out []Due
	for _, v := range views {
		for _, in := range v.Installments {
			if in.Remaining.IsPositive() && !in.DueOn.After(horizon) {
				out = append(out, Due{Debt: v.Debt, Installment: in})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Installment.DueOn.Before(out[j].Installment.DueOn)
	})
	return out, nil
}

// Delete removes a debt that has no repayments. Repayments are deleted
// first through the transaction manager so their credits are reversed.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) error {
	if err := caller.RequireOwner("deleting a debt"); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		d, err := tx.LockDebt(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		repayments, err := tx.RepaymentsByDebt(ctx, caller.OwnerID, d.ID)
		if err != nil {
			return err
		}
		if len(repayments) > 0 {
			return domain.Validationf("debt %s has %d repayments; delete them first", d.Code, len(repayments))
		}
		return tx.DeleteDebt(ctx, d.ID)
	})
}
