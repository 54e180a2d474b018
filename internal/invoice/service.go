// Package invoice manages inbound and outbound invoices: numbering, totals,
// status transitions and the wallet effects tied to them.
package invoice

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
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/notification"
	"github.com/kharcha-app/kharcha/internal/reversal"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// Service is the invoice manager.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	ids      *ids.Generator
	numbers  *ids.Allocator
	reversal *reversal.Service
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs an invoice manager.
func NewService(store ledger.Store, wallets *wallet.Service, gen *ids.Generator, numbers *ids.Allocator, rev *reversal.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		wallets:  wallets,
		ids:      gen,
		numbers:  numbers,
		reversal: rev,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WalletChoice picks the wallet an effect-bearing status hits. Empty means
// the wallet already recorded on the invoice, or cash when none is.
type WalletChoice struct {
	PaymentMethod domain.PaymentMethod
	WalletID      string
}

func (c WalletChoice) empty() bool { return c.PaymentMethod == "" && c.WalletID == "" }

// CreateInput describes a new invoice.
type CreateInput struct {
	Direction      domain.InvoiceDirection
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	ClientAddress  string
	Notes          string
	Items          []ItemInput
	Taxes          Taxes
	ReceivedAmount decimal.Decimal
	IssuedOn       time.Time
	DueOn          *time.Time
	// Status is the initial status; owners only. Sub-account invoices always
	// start pending.
	Status domain.InvoiceStatus
	Wallet WalletChoice
}

func (s *Service) initialStatus(caller domain.Caller, in CreateInput) (domain.InvoiceStatus, error) {
	if !caller.IsOwner() {
		return domain.InvoicePending, nil
	}
	switch in.Status {
	case "":
		return domain.InvoiceDraft, nil
	case domain.InvoiceDraft, domain.InvoicePending, domain.InvoiceSent, domain.InvoicePaid:
		return in.Status, nil
	case domain.InvoiceApproved:
		if in.Direction != domain.InvoiceOut {
			return "", domain.Validationf("only outbound invoices can be approved")
		}
		return in.Status, nil
	default:
		return "", domain.Validationf("an invoice cannot be created as %q", in.Status)
	}
}

// Create records an invoice. An owner may create it directly in an
// effect-bearing status, in which case the wallet effect and its mirror
// transaction are applied in the same unit of work.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (domain.Invoice, error) {
	if err := caller.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	if !in.Direction.Valid() {
		return domain.Invoice{}, domain.Validationf("direction must be in or out")
	}
	if in.ReceivedAmount.IsNegative() {
		return domain.Invoice{}, domain.Validationf("received amount cannot be negative")
	}
	if err := domain.CheckScale(in.ReceivedAmount, 2, "received amount"); err != nil {
		return domain.Invoice{}, err
	}
	status, err := s.initialStatus(caller, in)
	if err != nil {
		return domain.Invoice{}, err
	}
	var (
		inv domain.Invoice
		ev  domain.Event
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		items, err := priceFromCatalog(ctx, tx, caller.OwnerID, in.Items)
		if err != nil {
			return err
		}
		totals, err := Compute(items, in.Taxes)
		if err != nil {
			return err
		}
		corr, err := s.ids.NewID(ctx, tx, ids.KindInvoice)
		if err != nil {
			return err
		}
		number, err := s.numbers.Allocate(ctx, tx, caller.OwnerID, in.Direction)
		if err != nil {
			return err
		}
		now := s.now()
		issued := in.IssuedOn
		if issued.IsZero() {
			issued = now
		}
		inv = domain.Invoice{
			ID:             uuid.NewString(),
			OwnerID:        caller.OwnerID,
			CorrelationID:  corr,
			Direction:      in.Direction,
			Number:         number,
			Status:         domain.InvoiceDraft,
			ClientName:     strings.TrimSpace(in.ClientName),
			ClientEmail:    strings.TrimSpace(in.ClientEmail),
			ClientPhone:    strings.TrimSpace(in.ClientPhone),
			ClientAddress:  strings.TrimSpace(in.ClientAddress),
			Notes:          in.Notes,
			Subtotal:       totals.Subtotal,
			CGSTRate:       in.Taxes.CGSTRate,
			SGSTRate:       in.Taxes.SGSTRate,
			IGSTRate:       in.Taxes.IGSTRate,
			OtherTax:       in.Taxes.Other,
			TaxTotal:       totals.Tax,
			Total:          totals.Total,
			ReceivedAmount: in.ReceivedAmount,
			CreatedBy:      caller.ID,
			IssuedOn:       issued,
			DueOn:          in.DueOn,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		for _, it := range totals.Items {
			it.ID = uuid.NewString()
			it.InvoiceID = inv.ID
			inv.Items = append(inv.Items, it)
		}
		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		deltas, err := s.shift(ctx, tx, caller, &inv, status, in.Wallet)
		if err != nil {
			return err
		}
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		ev = s.event(caller, inv, deltas)
		return nil
	})
	if err != nil {
		s.logger.Debug("invoice rejected", slog.String("owner_id", caller.OwnerID), slog.Any("error", err))
		return domain.Invoice{}, err
	}
	s.committed(ctx, ev, inv)
	return inv, nil
}

// shift moves inv to status to and applies the difference between the old
// and new wallet effect: leaving an effect-bearing status records a reversal
// entry on the recorded wallet, entering one debits or credits the chosen
// wallet and records a mirror transaction.
func (s *Service) shift(ctx context.Context, tx ledger.Tx, author domain.Caller, inv *domain.Invoice, to domain.InvoiceStatus, choice WalletChoice) ([]domain.WalletDelta, error) {
	before := effectOf(inv.Direction, inv.Status)
	after := effectOf(inv.Direction, to)
	inv.Status = to
	inv.UpdatedAt = s.now()
	if before == after {
		return nil, nil
	}

	var deltas []domain.WalletDelta
	if before != effectNone {
		dir := domain.Direction(before).Inverse()
		d, err := s.post(ctx, tx, author, inv, inv.WalletID, dir, domain.TagReversal)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	if after != effectNone {
		w, err := s.pick(ctx, tx, inv, choice)
		if err != nil {
			return nil, err
		}
		inv.WalletID = w.ID
		d, err := s.post(ctx, tx, author, inv, w.ID, domain.Direction(after), domain.TagNone)
		if err != nil {
			return nil, err
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}

func (s *Service) pick(ctx context.Context, tx ledger.Tx, inv *domain.Invoice, choice WalletChoice) (domain.Wallet, error) {
	if choice.empty() && inv.WalletID != "" {
		return tx.GetWallet(ctx, inv.OwnerID, inv.WalletID)
	}
	return s.wallets.Resolve(ctx, tx, inv.OwnerID, choice.PaymentMethod, choice.WalletID)
}

func (s *Service) post(ctx context.Context, tx ledger.Tx, author domain.Caller, inv *domain.Invoice, walletID string, dir domain.Direction, tag domain.TransactionTag) (domain.WalletDelta, error) {
	w, err := s.wallets.Apply(ctx, tx, inv.OwnerID, walletID, dir, inv.Total)
	if err != nil {
		return domain.WalletDelta{}, err
	}
	now := s.now()
	t := domain.Transaction{
		ID:            uuid.NewString(),
		OwnerID:       inv.OwnerID,
		CorrelationID: inv.CorrelationID,
		Amount:        inv.Total,
		Direction:     dir,
		PaymentMethod: wallet.MethodOf(w),
		WalletID:      w.ID,
		Tag:           tag,
		Category:      "invoice",
		Description:   fmt.Sprintf("%s %s", inv.Number, inv.Status),
		InvoiceID:     inv.ID,
		CreatedBy:     author.ID,
		OccurredOn:    now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return domain.WalletDelta{}, fmt.Errorf("insert invoice transaction: %w", err)
	}
	return domain.WalletDelta{WalletID: w.ID, Delta: t.Effect()}, nil
}

// lockReviewable loads an invoice for a status change by its owner. The
// correlation lock comes first so a concurrent delete of the same id never
// works from a stale list of mirror transactions.
func lockReviewable(ctx context.Context, tx ledger.Tx, ownerID, id string) (domain.Invoice, error) {
	inv, err := tx.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := tx.LockCorrelation(ctx, ownerID, inv.CorrelationID); err != nil {
		return domain.Invoice{}, fmt.Errorf("lock correlation: %w", err)
	}
	inv, err = tx.LockInvoice(ctx, ownerID, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if inv.ExpenseID != "" {
		return domain.Invoice{}, domain.Validationf("invoice %s belongs to expense %s; delete the expense instead", inv.Number, inv.ExpenseID)
	}
	return inv, nil
}

// Approve is the delegated-approval entry point for an outbound invoice: the
// chosen wallet is recorded on the invoice, debited once and mirrored by one
// transaction. A second approval or an approval after rejection fails with
// domain.ErrAlreadyProcessed.
func (s *Service) Approve(ctx context.Context, caller domain.Caller, id string, choice WalletChoice) (domain.Invoice, domain.Event, error) {
	if err := caller.RequireOwner("approving an invoice"); err != nil {
		return domain.Invoice{}, domain.Event{}, err
	}
	var (
		inv domain.Invoice
		ev  domain.Event
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		inv, err = lockReviewable(ctx, tx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if inv.Direction != domain.InvoiceOut {
			return domain.Validationf("only outbound invoices can be approved")
		}
		if !reviewable(inv.Status) {
			return domain.AlreadyProcessed("invoice %s is already %s", inv.Number, inv.Status)
		}
		deltas, err := s.shift(ctx, tx, caller, &inv, domain.InvoiceApproved, choice)
		if err != nil {
			return err
		}
		s.reviewed(&inv, caller, "")
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		ev = s.event(caller, inv, deltas)
		return nil
	})
	if err != nil {
		return domain.Invoice{}, domain.Event{}, err
	}
	s.committed(ctx, ev, inv)
	return inv, ev, nil
}

// Reject closes a pending invoice without any wallet effect.
func (s *Service) Reject(ctx context.Context, caller domain.Caller, id, reason string) (domain.Invoice, error) {
	if err := caller.RequireOwner("rejecting an invoice"); err != nil {
		return domain.Invoice{}, err
	}
	var inv domain.Invoice
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		inv, err = lockReviewable(ctx, tx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if !reviewable(inv.Status) {
			return domain.AlreadyProcessed("invoice %s is already %s", inv.Number, inv.Status)
		}
		if _, err := s.shift(ctx, tx, caller, &inv, domain.InvoiceRejected, WalletChoice{}); err != nil {
			return err
		}
		s.reviewed(&inv, caller, reason)
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.committed(ctx, s.event(caller, inv, nil), inv)
	return inv, nil
}

// UpdateStatus moves an invoice along the status machine, applying or
// reversing its wallet effect exactly at the boundaries of paid/approved.
func (s *Service) UpdateStatus(ctx context.Context, caller domain.Caller, id string, to domain.InvoiceStatus, choice WalletChoice) (domain.Invoice, domain.Event, error) {
	if err := caller.RequireOwner("changing an invoice status"); err != nil {
		return domain.Invoice{}, domain.Event{}, err
	}
	var (
		inv domain.Invoice
		ev  domain.Event
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		inv, err = lockReviewable(ctx, tx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if err := Transition(inv.Direction, inv.Status, to); err != nil {
			return err
		}
		deltas, err := s.shift(ctx, tx, caller, &inv, to, choice)
		if err != nil {
			return err
		}
		if to == domain.InvoiceApproved || to == domain.InvoiceRejected {
			s.reviewed(&inv, caller, "")
		}
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		ev = s.event(caller, inv, deltas)
		return nil
	})
	if err != nil {
		return domain.Invoice{}, domain.Event{}, err
	}
	s.committed(ctx, ev, inv)
	return inv, ev, nil
}

// Delete reverses whatever the invoice's correlation id still holds on the
// wallets and removes the invoice, its items and its mirror transactions.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) (domain.Event, error) {
	if err := caller.RequireOwner("deleting an invoice"); err != nil {
		return domain.Event{}, err
	}
	var ev domain.Event
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		inv, err := tx.GetInvoice(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		ev, err = s.reversal.ReverseAndDeleteInTx(ctx, tx, caller.OwnerID, inv.CorrelationID)
		return err
	})
	if err != nil {
		return domain.Event{}, err
	}
	s.reversal.Committed(ctx, caller, ev)
	return ev, nil
}

// SpawnForExpenseInTx records the paid outbound invoice backing an expense.
// It carries the expense's correlation id and applies no wallet effect: the
// expense's own debit is the only one.
func (s *Service) SpawnForExpenseInTx(ctx context.Context, tx ledger.Tx, author domain.Caller, e domain.Expense) (domain.Invoice, error) {
	number, err := s.numbers.Allocate(ctx, tx, e.OwnerID, domain.InvoiceOut)
	if err != nil {
		return domain.Invoice{}, err
	}
	description := e.Category
	if e.Description != "" {
		description = e.Description
	}
	now := s.now()
	inv := domain.Invoice{
		ID:            uuid.NewString(),
		OwnerID:       e.OwnerID,
		CorrelationID: e.CorrelationID,
		Direction:     domain.InvoiceOut,
		Number:        number,
		Status:        domain.InvoicePaid,
		Subtotal:      e.Amount,
		TaxTotal:      decimal.Zero,
		Total:         e.Amount,
		WalletID:      e.WalletID,
		ExpenseID:     e.ID,
		CreatedBy:     author.ID,
		IssuedOn:      e.SpentOn,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	inv.Items = []domain.InvoiceItem{{
		ID:          uuid.NewString(),
		InvoiceID:   inv.ID,
		Position:    1,
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   e.Amount,
		Total:       e.Amount,
	}}
	if err := tx.InsertInvoice(ctx, inv); err != nil {
		return domain.Invoice{}, fmt.Errorf("insert expense invoice: %w", err)
	}
	return inv, nil
}

// Get returns an invoice with its items. Sub-accounts only see their own.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (domain.Invoice, error) {
	if err := caller.Validate(); err != nil {
		return domain.Invoice{}, err
	}
	var inv domain.Invoice
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		inv, err = tx.GetInvoice(ctx, caller.OwnerID, id)
		return err
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	if !caller.IsOwner() && inv.CreatedBy != caller.ID {
		return domain.Invoice{}, domain.NotFound("invoice", id)
	}
	return inv, nil
}

// List returns invoice headers; q.Status filters by invoice status.
func (s *Service) List(ctx context.Context, caller domain.Caller, q domain.Query) ([]domain.Invoice, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	if q.Status != "" && !domain.InvoiceStatus(q.Status).Valid() {
		return nil, domain.Validationf("unknown invoice status %q", q.Status)
	}
	q.OwnerID = caller.OwnerID
	if !caller.IsOwner() {
		q.CreatedBy = caller.ID
	}
	var out []domain.Invoice
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListInvoices(ctx, q)
		return err
	})
	return out, err
}

func (s *Service) reviewed(inv *domain.Invoice, caller domain.Caller, reason string) {
	at := s.now()
	inv.ReviewedBy = caller.ID
	inv.ReviewedAt = &at
	inv.RejectionReason = strings.TrimSpace(reason)
}

func (s *Service) event(caller domain.Caller, inv domain.Invoice, deltas []domain.WalletDelta) domain.Event {
	return domain.Event{
		Kind:          domain.EventInvoiceStatus,
		OwnerID:       inv.OwnerID,
		CallerID:      caller.ID,
		CorrelationID: inv.CorrelationID,
		Deltas:        deltas,
		At:            inv.UpdatedAt,
	}
}

func (s *Service) committed(ctx context.Context, ev domain.Event, inv domain.Invoice) {
	s.logger.Info("invoice saved",
		slog.String("owner_id", inv.OwnerID),
		slog.String("correlation_id", string(inv.CorrelationID)),
		slog.String("number", inv.Number),
		slog.String("status", string(inv.Status)),
		slog.String("wallet_id", inv.WalletID),
		slog.String("delta", ev.NetDelta().StringFixed(2)),
	)
	notification.Deliver(ctx, s.notifier, s.logger, ev)
}
