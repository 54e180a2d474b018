// Package recurring keeps monthly expense templates and turns them into
// ordinary expenses, at most once per template and month.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/expense"
	"github.com/kharcha-app/kharcha/internal/ledger"
)

// Service manages recurring expense templates.
type Service struct {
	store    ledger.Store
	expenses *expense.Service
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a recurring expense manager. Expenses are created
// through expenses so they debit exactly like hand-entered ones.
func NewService(store ledger.Store, expenses *expense.Service, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		expenses: expenses,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Input describes a template.
type Input struct {
	Name          string
	Kind          domain.RecurringKind
	Amount        decimal.Decimal
	PaymentDay    int
	Category      string
	Description   string
	PaymentMethod domain.PaymentMethod
	WalletID      string
	Active        *bool
}

func (in Input) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.Validationf("name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return domain.Validationf("category is required")
	}
	if !in.Kind.Valid() {
		return domain.Validationf("kind must be fixed or variable")
	}
	if in.PaymentDay < 1 || in.PaymentDay > 31 {
		return domain.Validationf("payment day must be between 1 and 31")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return domain.Validationf("unknown payment method %q", in.PaymentMethod)
	}
	switch {
	case in.Kind == domain.RecurringFixed:
		return domain.CheckAmount(in.Amount)
	case in.Amount.IsNegative():
		return domain.Validationf("amount cannot be negative")
	default:
		return domain.CheckScale(in.Amount, 2, "amount")
	}
}

func (in Input) apply(r *domain.RecurringExpense) {
	r.Name = strings.TrimSpace(in.Name)
	r.Kind = in.Kind
	r.Amount = in.Amount
	r.PaymentDay = in.PaymentDay
	r.Category = strings.TrimSpace(in.Category)
	r.Description = strings.TrimSpace(in.Description)
	r.PaymentMethod = in.PaymentMethod
	r.WalletID = in.WalletID
	if in.Active != nil {
		r.Active = *in.Active
	}
}

// Create stores an active template. Fixed templates need a positive
// amount; for variable ones the amount is only an estimate.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in Input) (domain.RecurringExpense, error) {
	if err := caller.RequireOwner("managing recurring expenses"); err != nil {
		return domain.RecurringExpense{}, err
	}
	if err := in.validate(); err != nil {
		return domain.RecurringExpense{}, err
	}
	now := s.now()
	r := domain.RecurringExpense{ID: uuid.NewString(), OwnerID: caller.OwnerID, Active: true, CreatedAt: now, UpdatedAt: now}
	in.apply(&r)
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := tx.InsertRecurring(ctx, r); err != nil {
			return fmt.Errorf("insert recurring expense: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.RecurringExpense{}, err
	}
	return r, nil
}

// Update replaces a template's fields. Expenses it already produced are
// left alone.
func (s *Service) Update(ctx context.Context, caller domain.Caller, id string, in Input) (domain.RecurringExpense, error) {
	if err := caller.RequireOwner("managing recurring expenses"); err != nil {
		return domain.RecurringExpense{}, err
	}
	if err := in.validate(); err != nil {
		return domain.RecurringExpense{}, err
	}
	var out domain.RecurringExpense
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		r, err := tx.GetRecurring(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		in.apply(&r)
		r.UpdatedAt = s.now()
		out = r
		return tx.UpdateRecurring(ctx, r)
	})
	return out, err
}

// Delete removes a template and its run history.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) error {
	if err := caller.RequireOwner("managing recurring expenses"); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if _, err := tx.GetRecurring(ctx, caller.OwnerID, id); err != nil {
			return err
		}
		return tx.DeleteRecurring(ctx, id)
	})
}

// Due is a template together with its run for one period, if any.
type Due struct {
	Template domain.RecurringExpense
	On       time.Time
	Run      *domain.RecurringRun
}

// Schedule lists every template with its payment date in period and the run
// that already materialized it.
func (s *Service) Schedule(ctx context.Context, caller domain.Caller, period domain.Period) ([]Due, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	var out []Due
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		list, err := tx.ListRecurring(ctx, caller.OwnerID)
		if err != nil {
			return err
		}
		runs, err := tx.RecurringRuns(ctx, caller.OwnerID, period.String())
		if err != nil {
			return err
		}
		byTemplate := make(map[string]domain.RecurringRun, len(runs))
		for _, run := range runs {
			byTemplate[run.RecurringID] = run
		}
		for _, r := range list {
			d := Due{Template: r, On: period.Day(r.PaymentDay)}
			if run, ok := byTemplate[r.ID]; ok {
				d.Run = &run
			}
			out = append(out, d)
		}
		return nil
	})
	return out, err
}

// Outcome of one template in a run.
type Outcome struct {
	RecurringID   string
	Name          string
	ExpenseID     string
	CorrelationID domain.CorrelationID
	Amount        decimal.Decimal
	Reason        string
}

// RunResult splits a run's templates by what happened to them.
type RunResult struct {
	Period  string
	Created []Outcome
	Skipped []Outcome
	Failed  []Outcome
}

// Run creates the period's expense for every active template that has not
// produced one yet. Each template commits on its own, so one failure does
// not hold back the rest. amounts supplies the month's figure for variable
// templates and may override fixed ones. A template whose expense was
// later deleted is not run again for that period.
func (s *Service) Run(ctx context.Context, caller domain.Caller, period domain.Period, amounts map[string]decimal.Decimal) (RunResult, error) {
	if err := caller.RequireOwner("running recurring expenses"); err != nil {
		return RunResult{}, err
	}
	var templates []domain.RecurringExpense
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		templates, err = tx.ListRecurring(ctx, caller.OwnerID)
		return err
	})
	if err != nil {
		return RunResult{}, err
	}

	res := RunResult{Period: period.String()}
	for _, r := range templates {
		o := Outcome{RecurringID: r.ID, Name: r.Name}
		if !r.Active {
			continue
		}
		amount, ok := amounts[r.ID]
		if !ok {
			if r.Kind == domain.RecurringVariable {
				o.Reason = "amount required for a variable expense"
				res.Skipped = append(res.Skipped, o)
				continue
			}
			amount = r.Amount
		}
		o.Amount = amount

		created, err := s.materialize(ctx, caller, r, period, amount)
		switch {
		case err == nil:
			o.ExpenseID = created.Expense.ID
			o.CorrelationID = created.Expense.CorrelationID
			res.Created = append(res.Created, o)
			s.expenses.Committed(ctx, created)
		case errors.Is(err, domain.ErrAlreadyProcessed):
			o.Reason = "already recorded for " + res.Period
			res.Skipped = append(res.Skipped, o)
		default:
			o.Reason = err.Error()
			res.Failed = append(res.Failed, o)
			s.logger.Warn("recurring expense failed",
				slog.String("owner_id", caller.OwnerID),
				slog.String("recurring_id", r.ID),
				slog.String("period", res.Period),
				slog.Any("error", err),
			)
		}
	}
	s.logger.Info("recurring expenses run",
		slog.String("owner_id", caller.OwnerID),
		slog.String("period", res.Period),
		slog.Int("created", len(res.Created)),
		slog.Int("skipped", len(res.Skipped)),
		slog.Int("failed", len(res.Failed)),
	)
	return res, nil
}

func (s *Service) materialize(ctx context.Context, caller domain.Caller, r domain.RecurringExpense, period domain.Period, amount decimal.Decimal) (expense.Result, error) {
	var out expense.Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		description := r.Description
		if description == "" {
			description = r.Name
		}
		res, err := s.expenses.CreateInTx(ctx, tx, caller, "", expense.CreateInput{
			Amount:        amount,
			Category:      r.Category,
			Description:   description,
			PaymentMethod: r.PaymentMethod,
			WalletID:      r.WalletID,
			SpentOn:       period.Day(r.PaymentDay),
		})
		if err != nil {
			return err
		}
		err = tx.InsertRecurringRun(ctx, domain.RecurringRun{
			RecurringID:   r.ID,
			OwnerID:       r.OwnerID,
			Period:        period.String(),
			ExpenseID:     res.Expense.ID,
			CorrelationID: res.Expense.CorrelationID,
			CreatedAt:     s.now(),
		})
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// Get returns one template.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (domain.RecurringExpense, error) {
	if err := caller.Validate(); err != nil {
		return domain.RecurringExpense{}, err
	}
	var out domain.RecurringExpense
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.GetRecurring(ctx, caller.OwnerID, id)
		return err
	})
	return out, err
}

// List returns the owner's templates by payment day.
func (s *Service) List(ctx context.Context, caller domain.Caller) ([]domain.RecurringExpense, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	var out []domain.RecurringExpense
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListRecurring(ctx, caller.OwnerID)
		return err
	})
	return out, err
}
