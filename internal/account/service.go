// Package account manages primary account holders and their sub-accounts.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

// ErrInvalidCredentials hides whether the phone or the PIN was wrong.
var ErrInvalidCredentials = errors.New("invalid phone or PIN")

const minPINLength = 4

// Service manages the account lifecycle.
type Service struct {
	repo    Repository
	wallets *wallet.Service
	logger  *slog.Logger
	cost    int
	now     func() time.Time
}

// NewService creates a new account service.
func NewService(repo Repository, wallets *wallet.Service, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		wallets: wallets,
		logger:  logger,
		cost:    bcrypt.DefaultCost,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterInput captures a new account holder.
type RegisterInput struct {
	Phone       string
	PIN         string
	Name        string
	OpeningCash decimal.Decimal
}

// RegisterOwner creates a primary account and provisions its cash wallet.
func (s *Service) RegisterOwner(ctx context.Context, in RegisterInput) (User, domain.Wallet, error) {
	if in.OpeningCash.IsNegative() {
		return User{}, domain.Wallet{}, domain.Validationf("opening cash cannot be negative")
	}
	id := uuid.NewString()
	user, err := s.create(ctx, id, id, domain.RoleOwner, in)
	if err != nil {
		return User{}, domain.Wallet{}, err
	}
	cash, err := s.wallets.EnsureCash(ctx, user.ID, in.OpeningCash)
	if err != nil {
		return User{}, domain.Wallet{}, err
	}
	s.logger.Info("owner registered", slog.String("user_id", user.ID), slog.String("wallet_id", cash.ID))
	return user, cash, nil
}

// CreateSubAccount adds a sub-account under the calling owner.
func (s *Service) CreateSubAccount(ctx context.Context, caller domain.Caller, in RegisterInput) (User, error) {
	if err := caller.RequireOwner("creating a sub-account"); err != nil {
		return User{}, err
	}
	user, err := s.create(ctx, uuid.NewString(), caller.OwnerID, domain.RoleSubAccount, in)
	if err != nil {
		return User{}, err
	}
	s.logger.Info("sub-account created", slog.String("owner_id", caller.OwnerID), slog.String("user_id", user.ID))
	return user, nil
}

func (s *Service) create(ctx context.Context, id, ownerID string, role domain.Role, in RegisterInput) (User, error) {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		return User{}, domain.Validationf("phone is required")
	}
	if err := checkPIN(in.PIN); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.PIN), s.cost)
	if err != nil {
		return User{}, err
	}
	user := User{
		ID:        id,
		OwnerID:   ownerID,
		Role:      role,
		Phone:     phone,
		Name:      strings.TrimSpace(in.Name),
		PINHash:   hash,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrPhoneTaken) {
			return User{}, domain.Validationf("phone %s is already registered", phone)
		}
		return User{}, err
	}
	return user, nil
}

func checkPIN(pin string) error {
	if len(pin) < minPINLength {
		return domain.Validationf("PIN must be at least %d digits", minPINLength)
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return domain.Validationf("PIN must contain digits only")
		}
	}
	return nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByPhone(ctx, strings.TrimSpace(creds.Phone))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(creds.PIN)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	now := s.now()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("record login failed", slog.String("user_id", user.ID), slog.Any("error", err))
	} else {
		user.LastLogin = &now
	}
	return user, nil
}

// Get returns a user visible to the caller: itself, or for an owner any of
// its sub-accounts.
func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user.ID != caller.ID && (!caller.IsOwner() || user.OwnerID != caller.OwnerID) {
		return User{}, domain.NotFound("user", id)
	}
	return user, nil
}

// SubAccounts lists the owner's sub-accounts.
func (s *Service) SubAccounts(ctx context.Context, caller domain.Caller) ([]User, error) {
	if err := caller.RequireOwner("listing sub-accounts"); err != nil {
		return nil, err
	}
	return s.repo.ListSubAccounts(ctx, caller.OwnerID)
}
