package wallet

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
)

// Service is the wallet store: it owns every write to a wallet balance.
type Service struct {
	store  ledger.Store
	strict bool
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds a wallet service. With strict set, debits that would take
// a balance below zero fail with domain.ErrInsufficientFunds; otherwise
// balances may go negative.
func NewService(store ledger.Store, strict bool, logger *slog.Logger) *Service {
	return &Service{store: store, strict: strict, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Strict reports whether strict funds mode is enabled.
func (s *Service) Strict() bool { return s.strict }

// CreateBankInput captures data required to open a bank wallet.
type CreateBankInput struct {
	OwnerID        string
	Name           string
	BankName       string
	AccountNumber  string
	RoutingCode    string
	OpeningBalance decimal.Decimal
}

// EnsureCash provisions the owner's cash wallet if it does not exist yet.
func (s *Service) EnsureCash(ctx context.Context, ownerID string, opening decimal.Decimal) (domain.Wallet, error) {
	if ownerID == "" {
		return domain.Wallet{}, domain.Validationf("owner id is required")
	}
	if err := domain.CheckScale(opening, 2, "opening balance"); err != nil {
		return domain.Wallet{}, err
	}
	var out domain.Wallet
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		w, err := tx.CashWallet(ctx, ownerID)
		if err == nil {
			out = w
			return nil
		}
		if !isNotFound(err) {
			return err
		}
		out, err = s.insertCash(ctx, tx, ownerID, opening)
		return err
	})
	return out, err
}

// CreateBank opens a named bank wallet for the owner.
func (s *Service) CreateBank(ctx context.Context, input CreateBankInput) (domain.Wallet, error) {
	if input.OwnerID == "" {
		return domain.Wallet{}, domain.Validationf("owner id is required")
	}
	if strings.TrimSpace(input.BankName) == "" {
		return domain.Wallet{}, domain.Validationf("bank name is required")
	}
	if strings.TrimSpace(input.AccountNumber) == "" {
		return domain.Wallet{}, domain.Validationf("account number is required")
	}
	if err := domain.CheckScale(input.OpeningBalance, 2, "opening balance"); err != nil {
		return domain.Wallet{}, err
	}
	name := input.Name
	if name == "" {
		name = input.BankName
	}
	now := s.now()
	w := domain.Wallet{
		ID:             uuid.NewString(),
		OwnerID:        input.OwnerID,
		Kind:           domain.WalletBank,
		Name:           name,
		BankName:       strings.TrimSpace(input.BankName),
		AccountNumber:  strings.TrimSpace(input.AccountNumber),
		RoutingCode:    strings.ToUpper(strings.TrimSpace(input.RoutingCode)),
		Balance:        input.OpeningBalance,
		OpeningBalance: input.OpeningBalance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertWallet(ctx, w)
	})
	if err != nil {
		return domain.Wallet{}, err
	}
	s.logger.Info("bank wallet created", slog.String("owner_id", w.OwnerID), slog.String("wallet_id", w.ID))
	return w, nil
}

// Get retrieves one wallet of the owner.
func (s *Service) Get(ctx context.Context, ownerID, id string) (domain.Wallet, error) {
	var out domain.Wallet
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = tx.GetWallet(ctx, ownerID, id)
		return err
	})
	return out, err
}

// Summary lists an owner's wallets with their combined balance.
type Summary struct {
	Wallets []domain.Wallet
	Total   decimal.Decimal
	AsOf    time.Time
}

// List returns every wallet of the owner, cash first.
func (s *Service) List(ctx context.Context, ownerID string) (Summary, error) {
	var wallets []domain.Wallet
	err := s.store.Read(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		wallets, err = tx.ListWallets(ctx, ownerID)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	total := decimal.Zero
	for _, w := range wallets {
		total = total.Add(w.Balance)
	}
	return Summary{Wallets: wallets, Total: total, AsOf: s.now()}, nil
}

// Credit adds amount to one wallet in its own unit of work.
func (s *Service) Credit(ctx context.Context, ownerID, walletID string, amount decimal.Decimal) (domain.Wallet, error) {
	return s.applyAlone(ctx, ownerID, walletID, domain.Credit, amount)
}

// Debit removes amount from one wallet in its own unit of work.
func (s *Service) Debit(ctx context.Context, ownerID, walletID string, amount decimal.Decimal) (domain.Wallet, error) {
	return s.applyAlone(ctx, ownerID, walletID, domain.Debit, amount)
}

func (s *Service) applyAlone(ctx context.Context, ownerID, walletID string, dir domain.Direction, amount decimal.Decimal) (domain.Wallet, error) {
	var out domain.Wallet
	err := s.store.InTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		out, err = s.Apply(ctx, tx, ownerID, walletID, dir, amount)
		return err
	})
	return out, err
}

// Resolve picks the wallet a movement hits: the cash wallet when method is
// cash or no wallet id is given, otherwise the referenced wallet. The cash
// wallet is provisioned on first use.
func (s *Service) Resolve(ctx context.Context, tx ledger.Tx, ownerID string, method domain.PaymentMethod, walletID string) (domain.Wallet, error) {
	if method != "" && !method.Valid() {
		return domain.Wallet{}, domain.Validationf("unknown payment method %q", method)
	}
	if method == domain.PaymentCash || walletID == "" {
		w, err := tx.CashWallet(ctx, ownerID)
		if err == nil {
			return w, nil
		}
		if !isNotFound(err) {
			return domain.Wallet{}, err
		}
		return s.insertCash(ctx, tx, ownerID, decimal.Zero)
	}
	return tx.GetWallet(ctx, ownerID, walletID)
}

// Apply performs one atomic read-modify-write of a wallet balance inside tx.
// The wallet row stays locked until tx ends.
func (s *Service) Apply(ctx context.Context, tx ledger.Tx, ownerID, walletID string, dir domain.Direction, amount decimal.Decimal) (domain.Wallet, error) {
	if !amount.IsPositive() {
		return domain.Wallet{}, domain.Validationf("amount must be positive")
	}
	if !dir.Valid() {
		return domain.Wallet{}, domain.Validationf("unknown direction %q", dir)
	}
	w, err := tx.LockWallet(ctx, ownerID, walletID)
	if err != nil {
		return domain.Wallet{}, err
	}
	next := w.Balance.Add(dir.Signed(amount))
	if s.strict && dir == domain.Debit && next.IsNegative() {
		return domain.Wallet{}, domain.InsufficientFunds(w.ID)
	}
	now := s.now()
	if err := tx.SaveBalance(ctx, w.ID, next, now); err != nil {
		return domain.Wallet{}, err
	}
	w.Balance = next
	w.UpdatedAt = now
	return w, nil
}

func (s *Service) insertCash(ctx context.Context, tx ledger.Tx, ownerID string, opening decimal.Decimal) (domain.Wallet, error) {
	now := s.now()
	w := domain.Wallet{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		Kind:           domain.WalletCash,
		Name:           "Cash",
		Balance:        opening,
		OpeningBalance: opening,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.InsertWallet(ctx, w); err != nil {
		return domain.Wallet{}, err
	}
	return w, nil
}

// MethodOf maps a wallet to the payment method that reaches it.
func MethodOf(w domain.Wallet) domain.PaymentMethod {
	if w.Kind == domain.WalletBank {
		return domain.PaymentBank
	}
	return domain.PaymentCash
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
