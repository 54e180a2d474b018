// Package auth issues and verifies bearer tokens for accounts.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kharcha-app/kharcha/internal/account"
	"github.com/kharcha-app/kharcha/internal/config"
	"github.com/kharcha-app/kharcha/internal/domain"
)

// ErrUnauthorized covers every token or credential failure.
var ErrUnauthorized = errors.New("unauthorized")

// Service signs tokens and checks them against the stored token version.
type Service struct {
	cfg      config.Config
	accounts *account.Service
	users    account.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the token service.
func NewService(cfg config.Config, accounts *account.Service, users account.Repository, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, accounts: accounts, users: users, logger: logger, now: time.Now}
}

// TokenPair is returned on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login validates credentials and issues tokens.
func (s *Service) Login(ctx context.Context, creds account.Credentials) (account.User, TokenPair, error) {
	user, err := s.accounts.Authenticate(ctx, creds)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			return account.User{}, TokenPair{}, ErrUnauthorized
		}
		return account.User{}, TokenPair{}, err
	}
	pair, err := s.issue(user)
	if err != nil {
		return account.User{}, TokenPair{}, err
	}
	s.logger.Info("login succeeded", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	return user, pair, nil
}

func (s *Service) issue(user account.User) (TokenPair, error) {
	now := s.now()
	access, err := signToken(newClaims(user.ID, user.OwnerID, string(user.Role), user.TokenVersion, now, s.cfg.AccessTokenTTL), s.cfg.JWTSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := signToken(newClaims(user.ID, user.OwnerID, string(user.Role), user.TokenVersion, now, s.cfg.RefreshTokenTTL), s.cfg.RefreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.cfg.AccessTokenTTL.Seconds())}, nil
}

// Refresh verifies the refresh token and issues a new pair if its version is current.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	user, err := s.check(ctx, refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return s.issue(user)
}

// Verify resolves an access token to the caller it was issued to.
func (s *Service) Verify(ctx context.Context, accessToken string) (domain.Caller, error) {
	user, err := s.check(ctx, accessToken, s.cfg.JWTSecret)
	if err != nil {
		return domain.Caller{}, err
	}
	return user.Caller(), nil
}

func (s *Service) check(ctx context.Context, raw, secret string) (account.User, error) {
	claims, err := parseToken(raw, secret)
	if err != nil {
		return account.User{}, ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return account.User{}, ErrUnauthorized
		}
		return account.User{}, err
	}
	if user.TokenVersion != claims.Version || user.OwnerID != claims.Owner || string(user.Role) != claims.Role {
		return account.User{}, ErrUnauthorized
	}
	return user, nil
}

// Logout increments the token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, caller domain.Caller) error {
	user, err := s.users.FindByID(ctx, caller.ID)
	if err != nil {
		return err
	}
	return s.users.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}
