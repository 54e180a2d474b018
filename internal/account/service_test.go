package account

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
	"github.com/kharcha-app/kharcha/internal/logging"
	"github.com/kharcha-app/kharcha/internal/wallet"
)

func newService(t *testing.T) (*Service, *wallet.Service) {
	t.Helper()
	logger := logging.Discard()
	wallets := wallet.NewService(ledger.NewInMemory(), false, logger)
	svc := NewService(NewMemoryRepository(), wallets, logger)
	svc.cost = bcrypt.MinCost
	return svc, wallets
}

func TestRegisterOwnerProvisionsCash(t *testing.T) {
	svc, wallets := newService(t)
	ctx := context.Background()

	user, cash, err := svc.RegisterOwner(ctx, RegisterInput{Phone: " 9876543210 ", PIN: "1234", Name: "Asha", OpeningCash: decimal.NewFromInt(250)})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, user.Role)
	assert.Equal(t, user.ID, user.OwnerID)
	assert.Equal(t, "9876543210", user.Phone)
	assert.NoError(t, user.Caller().Validate())

	sum, err := wallets.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sum.Wallets, 1)
	assert.Equal(t, cash.ID, sum.Wallets[0].ID)
	assert.True(t, sum.Total.Equal(decimal.NewFromInt(250)))

	authed, err := svc.Authenticate(ctx, Credentials{Phone: "9876543210", PIN: "1234"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
	assert.NotNil(t, authed.LastLogin)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []RegisterInput{
		{Phone: "", PIN: "1234"},
		{Phone: "1", PIN: "12"},
		{Phone: "1", PIN: "12ab"},
	}
	for _, in := range cases {
		_, _, err := svc.RegisterOwner(ctx, in)
		assert.True(t, errors.Is(err, domain.ErrValidation), "input %+v", in)
	}

	_, _, err := svc.RegisterOwner(ctx, RegisterInput{Phone: "555", PIN: "1234"})
	require.NoError(t, err)
	_, _, err = svc.RegisterOwner(ctx, RegisterInput{Phone: "555", PIN: "9999"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, _, err := svc.RegisterOwner(ctx, RegisterInput{Phone: "555", PIN: "1234"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, Credentials{Phone: "555", PIN: "4321"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, Credentials{Phone: "556", PIN: "1234"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSubAccounts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	owner, _, err := svc.RegisterOwner(ctx, RegisterInput{Phone: "100", PIN: "1234"})
	require.NoError(t, err)
	other, _, err := svc.RegisterOwner(ctx, RegisterInput{Phone: "200", PIN: "1234"})
	require.NoError(t, err)

	sub, err := svc.CreateSubAccount(ctx, owner.Caller(), RegisterInput{Phone: "101", PIN: "5678", Name: "Clerk"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSubAccount, sub.Role)
	assert.Equal(t, owner.ID, sub.OwnerID)

	_, err = svc.CreateSubAccount(ctx, sub.Caller(), RegisterInput{Phone: "102", PIN: "5678"})
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	subs, err := svc.SubAccounts(ctx, owner.Caller())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)

	_, err = svc.Get(ctx, owner.Caller(), sub.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, other.Caller(), sub.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = svc.Get(ctx, sub.Caller(), owner.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
