package invoice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
)

func (f fixture) addProduct(t *testing.T, p domain.Product) {
	t.Helper()
	p.OwnerID = ownerID
	require.NoError(t, f.store.InTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.InsertProduct(ctx, p)
	}))
}

func TestCreatePricesLinesFromCatalogue(t *testing.T) {
	f := newFixture(t, false)
	f.addProduct(t, domain.Product{ID: "p-1", Name: "Consulting hour", UnitPrice: dec(1500), SACCode: "998311", Active: true})
	f.addProduct(t, domain.Product{ID: "p-2", Name: "Site visit", UnitPrice: dec(400), Active: true})

	inv, err := f.svc.Create(context.Background(), owner, CreateInput{
		Direction: domain.InvoiceOut,
		Items: []ItemInput{
			{ProductID: "p-1", Quantity: dec(2)},
			{ProductID: "p-2", Description: "Site visit, Pune", Quantity: dec(1), UnitPrice: dec(350)},
		},
	})
	require.NoError(t, err)
	require.Len(t, inv.Items, 2)

	assert.Equal(t, "Consulting hour", inv.Items[0].Description)
	assert.Equal(t, "998311", inv.Items[0].SACCode)
	assert.Equal(t, "p-1", inv.Items[0].ProductID)
	assert.True(t, inv.Items[0].Total.Equal(dec(3000)))

	assert.Equal(t, "Site visit, Pune", inv.Items[1].Description)
	assert.Equal(t, domain.DefaultSACCode, inv.Items[1].SACCode)
	assert.True(t, inv.Items[1].UnitPrice.Equal(dec(350)))
	assert.True(t, inv.Total.Equal(dec(3350)))
}

func TestCreateRejectsInactiveOrForeignProducts(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.addProduct(t, domain.Product{ID: "p-old", Name: "Retired", UnitPrice: dec(10), Active: false})

	_, err := f.svc.Create(ctx, owner, CreateInput{Direction: domain.InvoiceOut, Items: []ItemInput{{ProductID: "p-old", Quantity: dec(1)}}})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = f.svc.Create(ctx, domain.Owner("owner-2"), CreateInput{Direction: domain.InvoiceOut, Items: []ItemInput{{ProductID: "p-old", Quantity: dec(1)}}})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
