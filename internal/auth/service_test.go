package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/account"
	"github.com/kharcha-app/kharcha/internal/config"
	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/logging"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

func testConfig() config.Config {
	return config.Config{
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}
}

func setup(t *testing.T) (*Service, *account.Service, account.User) {
	t.Helper()
	logger := logging.Discard()
	users := account.NewMemoryRepository()
	accounts := account.NewService(users, wallet.NewService(ledger.NewInMemory(), false, logger), logger)
	owner, _, err := accounts.RegisterOwner(context.Background(), account.RegisterInput{Phone: "900", PIN: "2468"})
	require.NoError(t, err)
	return NewService(testConfig(), accounts, users, logger), accounts, owner
}

func TestLoginAndVerify(t *testing.T) {
	svc, _, owner := setup(t)
	ctx := context.Background()

	user, pair, err := svc.Login(ctx, account.Credentials{Phone: "900", PIN: "2468"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, user.ID)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	caller, err := svc.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.Owner(owner.ID), caller)

	_, err = svc.Verify(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Verify(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginRejectsWrongPIN(t *testing.T) {
	svc, _, _ := setup(t)
	_, _, err := svc.Login(context.Background(), account.Credentials{Phone: "900", PIN: "0000"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSubAccountTokenCarriesOwner(t *testing.T) {
	svc, accounts, owner := setup(t)
	ctx := context.Background()
	sub, err := accounts.CreateSubAccount(ctx, owner.Caller(), account.RegisterInput{Phone: "901", PIN: "1357"})
	require.NoError(t, err)

	_, pair, err := svc.Login(ctx, account.Credentials{Phone: "901", PIN: "1357"})
	require.NoError(t, err)
	caller, err := svc.Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.SubAccount(sub.ID, owner.ID), caller)
}

func TestLogoutRevokesTokens(t *testing.T) {
	svc, _, owner := setup(t)
	ctx := context.Background()
	_, pair, err := svc.Login(ctx, account.Credentials{Phone: "900", PIN: "2468"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	_, err = svc.Verify(ctx, refreshed.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, owner.Caller()))

	_, err = svc.Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, _, owner := setup(t)
	expired, err := signToken(newClaims(owner.ID, owner.ID, string(domain.RoleOwner), 0, time.Now().Add(-2*time.Hour), time.Minute), "access")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
