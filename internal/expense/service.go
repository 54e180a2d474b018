// Package expense records cash outflows together with their mirror
// transaction and, for invoice-backed expenses, the backing invoice.
package expense

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ids"
	"github.com/kharcha-app/kharcha/internal/invoice"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/notification"
	"github.com/kharcha-app/kharcha/internal/reversal"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// Service is the expense manager.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	invoices *invoice.Service
	ids      *ids.Generator
	reversal *reversal.Service
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs an expense manager.
func NewService(store ledger.Store, wallets *wallet.Service, invoices *invoice.Service, gen *ids.Generator, rev *reversal.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		wallets:  wallets,
		invoices: invoices,
		ids:      gen,
		reversal: rev,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes an outflow.
type CreateInput struct {
	Amount        decimal.Decimal
	Category      string
	Description   string
	PaymentMethod domain.PaymentMethod
	PaymentType   domain.PaymentType
	WalletID      string
	ReceiptRef    string
	SpentOn       time.Time
}

// Validate rejects input before any wallet is touched.
func (in CreateInput) Validate() error {
	if err := domain.CheckAmount(in.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(in.Category) == "" {
		return domain.Validationf("category is required")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return domain.Validationf("unknown payment method %q", in.PaymentMethod)
	}
	if in.PaymentType != "" && !in.PaymentType.Valid() {
		return domain.Validationf("unknown payment type %q", in.PaymentType)
	}
	return nil
}

// FromPayload converts an approved request payload into create input.
func FromPayload(p domain.ExpenseRequestPayload) CreateInput {
	return CreateInput{
		Amount:        p.Amount,
		Category:      p.Category,
		Description:   p.Description,
		PaymentMethod: p.PaymentMethod,
		PaymentType:   p.PaymentType,
		WalletID:      p.WalletID,
		ReceiptRef:    p.ReceiptRef,
		SpentOn:       p.SpentOn,
	}
}

// Result is everything one expense creation produced.
type Result struct {
	Expense     domain.Expense
	Transaction domain.Transaction
	Invoice     *domain.Invoice
	Event       domain.Event
}

// CreateInTx debits the resolved wallet exactly once and persists the
// expense, its mirror debit transaction and, when invoice-backed, a paid
// outbound invoice, all under one EXP correlation id. author is recorded as
// the creator; no permission check happens here.
func (s *Service) CreateInTx(ctx context.Context, tx ledger.Tx, author domain.Caller, requestID string, in CreateInput) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	if in.PaymentType == "" {
		in.PaymentType = domain.PaymentTypeCash
	}
	w, err := s.wallets.Resolve(ctx, tx, author.OwnerID, in.PaymentMethod, in.WalletID)
	if err != nil {
		return Result{}, err
	}
	corr, err := s.ids.NewID(ctx, tx, ids.KindExpense)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.wallets.Apply(ctx, tx, author.OwnerID, w.ID, domain.Debit, in.Amount); err != nil {
		return Result{}, err
	}

	now := s.now()
	spent := in.SpentOn
	if spent.IsZero() {
		spent = now
	}
	e := domain.Expense{
		ID:            uuid.NewString(),
		OwnerID:       author.OwnerID,
		CorrelationID: corr,
		Amount:        in.Amount,
		Category:      strings.TrimSpace(in.Category),
		Description:   strings.TrimSpace(in.Description),
		PaymentMethod: wallet.MethodOf(w),
		PaymentType:   in.PaymentType,
		WalletID:      w.ID,
		ReceiptRef:    in.ReceiptRef,
		SpentOn:       spent,
		CreatedBy:     author.ID,
		RequestID:     requestID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.InsertExpense(ctx, e); err != nil {
		return Result{}, fmt.Errorf("insert expense: %w", err)
	}

	res := Result{Expense: e}
	if e.PaymentType == domain.PaymentTypeInvoice {
		inv, err := s.invoices.SpawnForExpenseInTx(ctx, tx, author, e)
		if err != nil {
			return Result{}, err
		}
		res.Invoice = &inv
	}

	t := domain.Transaction{
		ID:            uuid.NewString(),
		OwnerID:       e.OwnerID,
		CorrelationID: corr,
		Amount:        e.Amount,
		Direction:     domain.Debit,
		PaymentMethod: e.PaymentMethod,
		WalletID:      w.ID,
		Category:      e.Category,
		Description:   e.Description,
		AttachmentRef: e.ReceiptRef,
		ExpenseID:     e.ID,
		CreatedBy:     author.ID,
		RequestID:     requestID,
		OccurredOn:    spent,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if res.Invoice != nil {
		t.InvoiceID = res.Invoice.ID
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return Result{}, fmt.Errorf("insert expense transaction: %w", err)
	}
	res.Transaction = t
	res.Event = domain.Event{
		Kind:          domain.EventExpenseCreated,
		OwnerID:       e.OwnerID,
		CallerID:      author.ID,
		CorrelationID: corr,
		Deltas:        []domain.WalletDelta{{WalletID: w.ID, Delta: t.Effect()}},
		At:            now,
	}
	return res, nil
}

// Create records an expense for the owner. Sub-accounts submit a delegation
// request instead.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (Result, error) {
	if err := caller.RequireOwner("recording an expense"); err != nil {
		return Result{}, err
	}
	var res Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		res, err = s.CreateInTx(ctx, tx, caller, "", in)
		return err
	})
	if err != nil {
		s.logger.Debug("expense rejected", slog.String("owner_id", caller.OwnerID), slog.Any("error", err))
		return Result{}, err
	}
	s.Committed(ctx, res)
	return res, nil
}

// Committed logs and publishes a created expense once its unit of work is durable.
func (s *Service) Committed(ctx context.Context, res Result) {
	s.logger.Info("expense recorded",
		slog.String("owner_id", res.Expense.OwnerID),
		slog.String("correlation_id", string(res.Expense.CorrelationID)),
		slog.String("wallet_id", res.Expense.WalletID),
		slog.String("delta", res.Event.NetDelta().StringFixed(2)),
		slog.Bool("invoice_backed", res.Invoice != nil),
	)
	notification.Deliver(ctx, s.notifier, s.logger, res.Event)
}

// UpdateInput changes descriptive fields only. Amount and payment method
// edits are not supported: the wallet would not be corrected.
type UpdateInput struct {
	Category    *string
	Description *string
	ReceiptRef  *string
	SpentOn     *time.Time
}

// Update edits descriptive fields of an expense.
func (s *Service) Update(ctx context.Context, caller domain.Caller, id string, in UpdateInput) (domain.Expense, error) {
	if err := caller.RequireOwner("editing an expense"); err != nil {
		return domain.Expense{}, err
	}
	if in.Category != nil && strings.TrimSpace(*in.Category) == "" {
		return domain.Expense{}, domain.Validationf("category is required")
	}
	var out domain.Expense
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		e, err := tx.GetExpense(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if in.Category != nil {
			e.Category = strings.TrimSpace(*in.Category)
		}
		if in.Description != nil {
			e.Description = strings.TrimSpace(*in.Description)
		}
		if in.ReceiptRef != nil {
			e.ReceiptRef = *in.ReceiptRef
		}
		if in.SpentOn != nil && !in.SpentOn.IsZero() {
			e.SpentOn = *in.SpentOn
		}
		e.UpdatedAt = s.now()
		out = e
		return tx.UpdateExpense(ctx, e)
	})
	return out, err
}

// Delete credits back the expense's debit once and removes the expense, its
// mirror transaction and any backing invoice. An approved request that
// produced the expense is marked deleted.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) (domain.Event, error) {
	if err := caller.RequireOwner("deleting an expense"); err != nil {
		return domain.Event{}, err
	}
	var ev domain.Event
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		e, err := tx.GetExpense(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		ev, err = s.reversal.ReverseAndDeleteInTx(ctx, tx, caller.OwnerID, e.CorrelationID)
		return err
	})
	if err != nil {
		return domain.Event{}, err
	}
	s.reversal.Committed(ctx, caller, ev)
	return ev, nil
}

// Get returns one expense. Sub-accounts only see their own.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (domain.Expense, error) {
	if err := caller.Validate(); err != nil {
		return domain.Expense{}, err
	}
	var out domain.Expense
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.GetExpense(ctx, caller.OwnerID, id)
		return err
	})
	if err != nil {
		return domain.Expense{}, err
	}
	if !caller.IsOwner() && out.CreatedBy != caller.ID {
		return domain.Expense{}, domain.NotFound("expense", id)
	}
	return out, nil
}

// List returns expenses of the caller's owner by spend date.
func (s *Service) List(ctx context.Context, caller domain.Caller, q domain.Query) ([]domain.Expense, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	q.OwnerID = caller.OwnerID
	if !caller.IsOwner() {
		q.CreatedBy = caller.ID
	}
	var out []domain.Expense
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListExpenses(ctx, q)
		return err
	})
	return out, err
}
