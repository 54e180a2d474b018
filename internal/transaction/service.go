// Package transaction records generic wallet movements. It is the canonical
// place where user-initiated wallet effects are applied.
package transaction

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

// Service is the transaction manager.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	ids      *ids.Generator
	reversal *reversal.Service
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a transaction manager.
func NewService(store ledger.Store, wallets *wallet.Service, gen *ids.Generator, rev *reversal.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		wallets:  wallets,
		ids:      gen,
		reversal: rev,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput describes one movement against a wallet.
type CreateInput struct {
	Amount        decimal.Decimal
	Direction     domain.Direction
	PaymentMethod domain.PaymentMethod
	WalletID      string
	Category      string
	Description   string
	AttachmentRef string
	OccurredOn    time.Time
	// DebtID and EMIID tie a repayment to the debt instalment it settles.
	DebtID string
	EMIID  string
}

// Validate rejects input before any wallet is touched.
func (in CreateInput) Validate() error {
	if err := domain.CheckAmount(in.Amount); err != nil {
		return err
	}
	if !in.Direction.Valid() {
		return domain.Validationf("direction must be credit or debit")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return domain.Validationf("unknown payment method %q", in.PaymentMethod)
	}
	return nil
}

// FromPayload converts an approved request payload into create input.
func FromPayload(p domain.TransactionRequestPayload) CreateInput {
	return CreateInput{
		Amount:        p.Amount,
		Direction:     p.Direction,
		PaymentMethod: p.PaymentMethod,
		WalletID:      p.WalletID,
		Category:      p.Category,
		Description:   p.Description,
		AttachmentRef: p.AttachmentRef,
		OccurredOn:    p.OccurredOn,
	}
}

// CreateInTx applies exactly one wallet effect and persists the transaction
// under a fresh TXN correlation id. author is recorded as the creator; no
// permission check happens here.
func (s *Service) CreateInTx(ctx context.Context, tx ledger.Tx, author domain.Caller, requestID string, in CreateInput) (domain.Transaction, domain.Event, error) {
	if err := in.Validate(); err != nil {
		return domain.Transaction{}, domain.Event{}, err
	}
	w, err := s.wallets.Resolve(ctx, tx, author.OwnerID, in.PaymentMethod, in.WalletID)
	if err != nil {
		return domain.Transaction{}, domain.Event{}, err
	}
	corr, err := s.ids.NewID(ctx, tx, ids.KindTransaction)
	if err != nil {
		return domain.Transaction{}, domain.Event{}, err
	}
	if _, err := s.wallets.Apply(ctx, tx, author.OwnerID, w.ID, in.Direction, in.Amount); err != nil {
		return domain.Transaction{}, domain.Event{}, err
	}

	now := s.now()
	occurred := in.OccurredOn
	if occurred.IsZero() {
		occurred = now
	}
	t := domain.Transaction{
		ID:            uuid.NewString(),
		OwnerID:       author.OwnerID,
		CorrelationID: corr,
		Amount:        in.Amount,
		Direction:     in.Direction,
		PaymentMethod: wallet.MethodOf(w),
		WalletID:      w.ID,
		Category:      strings.TrimSpace(in.Category),
		Description:   strings.TrimSpace(in.Description),
		AttachmentRef: in.AttachmentRef,
		DebtID:        in.DebtID,
		EMIID:         in.EMIID,
		CreatedBy:     author.ID,
		RequestID:     requestID,
		OccurredOn:    occurred,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return domain.Transaction{}, domain.Event{}, fmt.Errorf("insert transaction: %w", err)
	}
	ev := domain.Event{
		Kind:          domain.EventTransactionCreated,
		OwnerID:       t.OwnerID,
		CallerID:      author.ID,
		CorrelationID: corr,
		Deltas:        []domain.WalletDelta{{WalletID: w.ID, Delta: t.Effect()}},
		At:            now,
	}
	return t, ev, nil
}

// Create records a movement on behalf of the owner. Sub-accounts submit a
// delegation request instead.
func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (domain.Transaction, error) {
	if err := caller.RequireOwner("recording a transaction"); err != nil {
		return domain.Transaction{}, err
	}
	var (
		t  domain.Transaction
		ev domain.Event
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		t, ev, err = s.CreateInTx(ctx, tx, caller, "", in)
		return err
	})
	if err != nil {
		s.logger.Debug("transaction rejected", slog.String("owner_id", caller.OwnerID), slog.Any("error", err))
		return domain.Transaction{}, err
	}
	s.committed(ctx, ev)
	return t, nil
}

// Adjust sets a wallet to target by recording one adjustment entry for the
// difference. Adjustments count as funding: deleting one never moves money.
func (s *Service) Adjust(ctx context.Context, caller domain.Caller, walletID string, target decimal.Decimal, note string) (domain.Transaction, error) {
	if err := caller.RequireOwner("adjusting a balance"); err != nil {
		return domain.Transaction{}, err
	}
	if err := domain.CheckScale(target, 2, "target balance"); err != nil {
		return domain.Transaction{}, err
	}
	var (
		t  domain.Transaction
		ev domain.Event
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, caller.OwnerID, walletID)
		if err != nil {
			return err
		}
		diff := target.Sub(w.Balance)
		if diff.IsZero() {
			return domain.Validationf("wallet %s is already at %s", w.ID, target.StringFixed(2))
		}
		dir := domain.Credit
		if diff.IsNegative() {
			dir = domain.Debit
		}
		amount := diff.Abs()
		corr, err := s.ids.NewID(ctx, tx, ids.KindAdjustment)
		if err != nil {
			return err
		}
		if _, err := s.wallets.Apply(ctx, tx, caller.OwnerID, w.ID, dir, amount); err != nil {
			return err
		}
		now := s.now()
		t = domain.Transaction{
			ID:            uuid.NewString(),
			OwnerID:       caller.OwnerID,
			CorrelationID: corr,
			Amount:        amount,
			Direction:     dir,
			PaymentMethod: wallet.MethodOf(w),
			WalletID:      w.ID,
			Tag:           domain.TagAdjustment,
			Category:      "adjustment",
			Description:   strings.TrimSpace(note),
			CreatedBy:     caller.ID,
			OccurredOn:    now,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return fmt.Errorf("insert adjustment: %w", err)
		}
		ev = domain.Event{
			Kind:          domain.EventAdjustment,
			OwnerID:       caller.OwnerID,
			CallerID:      caller.ID,
			CorrelationID: corr,
			Deltas:        []domain.WalletDelta{{WalletID: w.ID, Delta: t.Effect()}},
			At:            now,
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	s.committed(ctx, ev)
	return t, nil
}

// UpdateInput changes descriptive fields only. Amount, direction and wallet
// cannot be edited: the balance would not be corrected.
type UpdateInput struct {
	Category      *string
	Description   *string
	AttachmentRef *string
}

// Update edits descriptive fields of a transaction.
func (s *Service) Update(ctx context.Context, caller domain.Caller, id string, in UpdateInput) (domain.Transaction, error) {
	if err := caller.RequireOwner("editing a transaction"); err != nil {
		return domain.Transaction{}, err
	}
	var out domain.Transaction
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		t, err := tx.GetTransaction(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		if in.Category != nil {
			t.Category = strings.TrimSpace(*in.Category)
		}
		if in.Description != nil {
			t.Description = strings.TrimSpace(*in.Description)
		}
		if in.AttachmentRef != nil {
			t.AttachmentRef = *in.AttachmentRef
		}
		t.UpdatedAt = s.now()
		out = t
		return tx.UpdateTransaction(ctx, t)
	})
	return out, err
}

// Delete removes a transaction. A regular entry is deleted together with every
// record sharing its correlation id and the wallet effect is reversed once.
// An adjustment is removed without touching the wallet. Reversal entries only
// disappear with their correlation id.
func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) (domain.Event, error) {
	if err := caller.RequireOwner("deleting a transaction"); err != nil {
		return domain.Event{}, err
	}
	var ev domain.Event
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		t, err := tx.GetTransaction(ctx, caller.OwnerID, id)
		if err != nil {
			return err
		}
		switch t.Tag {
		case domain.TagAdjustment:
			ev = domain.Event{Kind: domain.EventReversed, OwnerID: t.OwnerID, CorrelationID: t.CorrelationID, At: s.now()}
			return tx.DeleteTransaction(ctx, t.ID)
		case domain.TagReversal:
			return domain.Validationf("reversal entry %s is removed with correlation %s", t.ID, t.CorrelationID)
		}
		ev, err = s.reversal.ReverseAndDeleteInTx(ctx, tx, caller.OwnerID, t.CorrelationID)
		return err
	})
	if err != nil {
		return domain.Event{}, err
	}
	s.reversal.Committed(ctx, caller, ev)
	return ev, nil
}

// Get returns one transaction. Sub-accounts only see their own entries.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (domain.Transaction, error) {
	if err := caller.Validate(); err != nil {
		return domain.Transaction{}, err
	}
	var out domain.Transaction
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.GetTransaction(ctx, caller.OwnerID, id)
		return err
	})
	if err != nil {
		return domain.Transaction{}, err
	}
	if !caller.IsOwner() && out.CreatedBy != caller.ID {
		return domain.Transaction{}, domain.NotFound("transaction", id)
	}
	return out, nil
}

// List returns transactions of the caller's owner; q.Status filters by direction.
func (s *Service) List(ctx context.Context, caller domain.Caller, q domain.Query) ([]domain.Transaction, error) {
	if err := caller.Validate(); err != nil {
		return nil, err
	}
	q.OwnerID = caller.OwnerID
	if !caller.IsOwner() {
		q.CreatedBy = caller.ID
	}
	var out []domain.Transaction
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.ListTransactions(ctx, q)
		return err
	})
	return out, err
}

func (s *Service) committed(ctx context.Context, ev domain.Event) {
	for _, d := range ev.Deltas {
		s.logger.Info("transaction recorded",
			slog.String("owner_id", ev.OwnerID),
			slog.String("correlation_id", string(ev.CorrelationID)),
			slog.String("wallet_id", d.WalletID),
			slog.String("delta", d.Delta.StringFixed(2)),
		)
	}
	notification.Deliver(ctx, s.notifier, s.logger, ev)
}

// Committed publishes an event produced by CreateInTx in a caller-owned unit of work.
func (s *Service) Committed(ctx context.Context, ev domain.Event) { s.committed(ctx, ev) }
