// Package reversal undoes the wallet effect of a correlation id and removes
// every record carrying it.
package reversal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/notification"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// Siblings are the records sharing one correlation id.
type Siblings struct {
	CorrelationID domain.CorrelationID
	Expenses      []domain.Expense
	Transactions  []domain.Transaction
	Invoices      []domain.Invoice
	Requests      []domain.DelegationRequest
}

// Empty reports whether no ledger record is left under the id. Requests do not count.
func (s Siblings) Empty() bool {
	return len(s.Expenses) == 0 && len(s.Transactions) == 0 && len(s.Invoices) == 0
}

// Items returns the line items of every sibling invoice.
func (s Siblings) Items() []domain.InvoiceItem {
	var out []domain.InvoiceItem
	for _, inv := range s.Invoices {
		out = append(out, inv.Items...)
	}
	return out
}

// Nets sums the effect already applied per wallet, ordered by wallet id.
// Adjustment rows are funding and never part of a net; wallets whose effects
// cancel out are omitted.
func (s Siblings) Nets() []domain.WalletDelta {
	sums := map[string]decimal.Decimal{}
	for _, t := range s.Transactions {
		if t.Tag == domain.TagAdjustment {
			continue
		}
		sums[t.WalletID] = sums[t.WalletID].Add(t.Effect())
	}
	out := make([]domain.WalletDelta, 0, len(sums))
	for id, d := range sums {
		if d.IsZero() {
			continue
		}
		out = append(out, domain.WalletDelta{WalletID: id, Delta: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WalletID < out[j].WalletID })
	return out
}

// Service is the only path that deletes correlated ledger records.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a reversal service.
func NewService(store ledger.Store, wallets *wallet.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{store: store, wallets: wallets, notifier: notifier, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// FindSiblings loads every record of ownerID carrying id. The correlation
// lock and the rows stay held for the rest of tx.
func (s *Service) FindSiblings(ctx context.Context, tx ledger.Tx, ownerID string, id domain.CorrelationID) (Siblings, error) {
	sib := Siblings{CorrelationID: id}
	if err := tx.LockCorrelation(ctx, ownerID, id); err != nil {
		return Siblings{}, fmt.Errorf("lock correlation: %w", err)
	}
	var err error
	if sib.Expenses, err = tx.ExpensesByCorrelation(ctx, ownerID, id); err != nil {
		return Siblings{}, fmt.Errorf("load expenses: %w", err)
	}
	if sib.Transactions, err = tx.TransactionsByCorrelation(ctx, ownerID, id); err != nil {
		return Siblings{}, fmt.Errorf("load transactions: %w", err)
	}
	if sib.Invoices, err = tx.InvoicesByCorrelation(ctx, ownerID, id); err != nil {
		return Siblings{}, fmt.Errorf("load invoices: %w", err)
	}
	if sib.Requests, err = tx.RequestsByCorrelation(ctx, ownerID, id); err != nil {
		return Siblings{}, fmt.Errorf("load requests: %w", err)
	}
	return sib, nil
}

// Lookup is FindSiblings in its own unit of work. Owner only.
func (s *Service) Lookup(ctx context.Context, caller domain.Caller, id domain.CorrelationID) (Siblings, error) {
	if err := caller.RequireOwner("inspecting a correlation"); err != nil {
		return Siblings{}, err
	}
	var sib Siblings
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		sib, err = s.FindSiblings(ctx, tx, caller.OwnerID, id)
		return err
	})
	if err != nil {
		return Siblings{}, err
	}
	if sib.Empty() {
		return Siblings{}, domain.NotFound("correlation", string(id))
	}
	return sib, nil
}

// ReverseAndDeleteInTx applies the inverse of each per-wallet net once, deletes
// every sibling and marks approved requests that produced them as deleted.
// An id with no records left fails with ErrAlreadyProcessed when a request
// shows it existed, ErrNotFound otherwise.
func (s *Service) ReverseAndDeleteInTx(ctx context.Context, tx ledger.Tx, ownerID string, id domain.CorrelationID) (domain.Event, error) {
	sib, err := s.FindSiblings(ctx, tx, ownerID, id)
	if err != nil {
		return domain.Event{}, err
	}
	if sib.Empty() {
		if len(sib.Requests) > 0 {
			return domain.Event{}, domain.AlreadyProcessed("correlation %s was already reversed", id)
		}
		return domain.Event{}, domain.NotFound("correlation", string(id))
	}

	var applied []domain.WalletDelta
	for _, net := range sib.Nets() {
		dir, amount := domain.Credit, net.Delta.Neg()
		if net.Delta.IsPositive() {
			dir, amount = domain.Debit, net.Delta
		}
		if _, err := s.wallets.Apply(ctx, tx, ownerID, net.WalletID, dir, amount); err != nil {
			return domain.Event{}, fmt.Errorf("reverse wallet %s: %w", net.WalletID, err)
		}
		applied = append(applied, domain.WalletDelta{WalletID: net.WalletID, Delta: net.Delta.Neg()})
	}

	for _, t := range sib.Transactions {
		if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
			return domain.Event{}, err
		}
	}
	for _, inv := range sib.Invoices {
		if err := tx.DeleteInvoice(ctx, inv.ID); err != nil {
			return domain.Event{}, err
		}
	}
	for _, e := range sib.Expenses {
		if err := tx.DeleteExpense(ctx, e.ID); err != nil {
			return domain.Event{}, err
		}
	}
	now := s.now()
	for _, r := range sib.Requests {
		if r.Status != domain.RequestApproved {
			continue
		}
		r.Status = domain.RequestDeleted
		r.UpdatedAt = now
		if err := tx.UpdateRequest(ctx, r); err != nil {
			return domain.Event{}, err
		}
	}

	return domain.Event{
		Kind:          domain.EventReversed,
		OwnerID:       ownerID,
		CorrelationID: id,
		Deltas:        applied,
		At:            now,
	}, nil
}

// ReverseAndDelete runs ReverseAndDeleteInTx in its own unit of work. Owner only.
func (s *Service) ReverseAndDelete(ctx context.Context, caller domain.Caller, id domain.CorrelationID) (domain.Event, error) {
	if err := caller.RequireOwner("deleting records"); err != nil {
		return domain.Event{}, err
	}
	var ev domain.Event
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		ev, err = s.ReverseAndDeleteInTx(ctx, tx, caller.OwnerID, id)
		return err
	})
	if err != nil {
		return domain.Event{}, err
	}
	s.Committed(ctx, caller, ev)
	return ev, nil
}

// Committed logs and publishes a reversal event once its unit of work is durable.
func (s *Service) Committed(ctx context.Context, caller domain.Caller, ev domain.Event) {
	ev.CallerID = caller.ID
	s.logger.Info("correlation reversed",
		slog.String("owner_id", ev.OwnerID),
		slog.String("correlation_id", string(ev.CorrelationID)),
		slog.String("delta", ev.NetDelta().StringFixed(2)),
	)
	notification.Deliver(ctx, s.notifier, s.logger, ev)
}
