package services

import (
	"context"
	"testing"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/repository"
	"github.com/Mahaan-Amr/hs6tools-sub003/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := testutil.SeedProduct(t, env.db, "Saw", 5000, 5)
	b := testutil.SeedProduct(t, env.db, "Nails", 100, 1)

	items := []domain.OrderItem{
		{ProductID: a.ID, Name: "Saw", Quantity: 2},
		{ProductID: b.ID, Name: "Nails", Quantity: 3},
	}
	err := env.store.WithinTx(ctx, func(tx repository.Store) error {
		return ReserveStock(ctx, tx, items)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Nails")

	assert.Equal(t, 5, testutil.StockOf(t, env.db, a.ID))
	assert.Equal(t, 1, testutil.StockOf(t, env.db, b.ID))
}

func TestRestoreOrderStock_MissingProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o, p := env.placeOrder(t, 1)
	require.NoError(t, env.db.Delete(&domain.Product{}, p.ID).Error)

	stored := env.reload(t, o.ID)
	err := env.store.WithinTx(ctx, func(tx repository.Store) error {
		return RestoreOrderStock(ctx, tx, stored)
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindIntegrity, domain.KindOf(err))
	assert.ErrorIs(t, err, domain.ErrMissingStockTarget)
}

func TestReleaseReservation_OnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o, p := env.placeOrder(t, 4)

	stored := env.reload(t, o.ID)
	require.NoError(t, env.store.WithinTx(ctx, func(tx repository.Store) error {
		return releaseReservation(ctx, tx, stored)
	}))
	assert.Equal(t, TestProductStock, testutil.StockOf(t, env.db, p.ID))

	stored.Status = domain.StatusCancelled
	err := env.store.WithinTx(ctx, func(tx repository.Store) error {
		return releaseReservation(ctx, tx, stored)
	})
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.Equal(t, TestProductStock, testutil.StockOf(t, env.db, p.ID))
}
