// Package transfer moves money between two wallets of the same owner.
package transfer

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
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// Service posts paired debit/credit transactions between own wallets.
type Service struct {
	store    ledger.Store
	wallets  *wallet.Service
	ids      *ids.Generator
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a transfer service.
func NewService(store ledger.Store, wallets *wallet.Service, gen *ids.Generator, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		wallets:  wallets,
		ids:      gen,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// TransferInput captures the data needed to move funds between wallets.
type TransferInput struct {
	FromWalletID string
	ToWalletID   string
	Amount       decimal.Decimal
	Description  string
	OccurredOn   time.Time
}

// Result describes both legs of a transfer.
type Result struct {
	CorrelationID domain.CorrelationID
	Debit         domain.Transaction
	Credit        domain.Transaction
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
	Event         domain.Event
}

// Transfer debits the source and credits the target under one TRF
// correlation id. Deleting either leg later reverses both.
func (s *Service) Transfer(ctx context.Context, caller domain.Caller, input TransferInput) (Result, error) {
	if err := caller.RequireOwner("transferring between wallets"); err != nil {
		return Result{}, err
	}
	if err := domain.CheckAmount(input.Amount); err != nil {
		return Result{}, err
	}
	if input.FromWalletID == "" || input.ToWalletID == "" {
		return Result{}, domain.Validationf("from_wallet_id and to_wallet_id are required")
	}
	if input.FromWalletID == input.ToWalletID {
		return Result{}, domain.Validationf("cannot transfer a wallet to itself")
	}

	var res Result
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		from, err := tx.GetWallet(ctx, caller.OwnerID, input.FromWalletID)
		if err != nil {
			return err
		}
		to, err := tx.GetWallet(ctx, caller.OwnerID, input.ToWalletID)
		if err != nil {
			return err
		}
		corr, err := s.ids.NewID(ctx, tx, ids.KindTransfer)
		if err != nil {
			return err
		}

		// Lock rows in id order so two opposite transfers cannot deadlock.
		legs := []struct {
			w   domain.Wallet
			dir domain.Direction
		}{{from, domain.Debit}, {to, domain.Credit}}
		if to.ID < from.ID {
			legs[0], legs[1] = legs[1], legs[0]
		}

		now := s.now()
		occurred := input.OccurredOn
		if occurred.IsZero() {
			occurred = now
		}
		description := strings.TrimSpace(input.Description)
		if description == "" {
			description = fmt.Sprintf("%s to %s", from.Name, to.Name)
		}
		res.CorrelationID = corr
		for _, leg := range legs {
			w, err := s.wallets.Apply(ctx, tx, caller.OwnerID, leg.w.ID, leg.dir, input.Amount)
			if err != nil {
				return err
			}
			t := domain.Transaction{
				ID:            uuid.NewString(),
				OwnerID:       caller.OwnerID,
				CorrelationID: corr,
				Amount:        input.Amount,
				Direction:     leg.dir,
				PaymentMethod: wallet.MethodOf(w),
				WalletID:      w.ID,
				Category:      "transfer",
				Description:   description,
				CreatedBy:     caller.ID,
				OccurredOn:    occurred,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.InsertTransaction(ctx, t); err != nil {
				return fmt.Errorf("insert transfer leg: %w", err)
			}
			if leg.dir == domain.Debit {
				res.Debit, res.FromBalance = t, w.Balance
			} else {
				res.Credit, res.ToBalance = t, w.Balance
			}
		}
		res.Event = domain.Event{
			Kind:          domain.EventTransferCreated,
			OwnerID:       caller.OwnerID,
			CallerID:      caller.ID,
			CorrelationID: corr,
			Deltas: []domain.WalletDelta{
				{WalletID: from.ID, Delta: res.Debit.Effect()},
				{WalletID: to.ID, Delta: res.Credit.Effect()},
			},
			At: now,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("transfer recorded",
		slog.String("owner_id", caller.OwnerID),
		slog.String("correlation_id", string(res.CorrelationID)),
		slog.String("from_wallet_id", input.FromWalletID),
		slog.String("to_wallet_id", input.ToWalletID),
		slog.String("amount", input.Amount.StringFixed(2)),
	)
	notification.Deliver(ctx, s.notifier, s.logger, res.Event)
	return res, nil
}
