package service

import (
	"context"
	"testing"

	"github.com/example/ecomshop/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItemUpserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "gina")
	p := f.product(t, "Mug", 30, 10)

	_, err := f.carts.AddItem(ctx, user, p.ID, 2)
	require.NoError(t, err)
	item, err := f.carts.AddItem(ctx, user, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.Quantity)

	lines, err := f.carts.ListItems(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []models.CartLine{{Name: "Mug", Quantity: 5}}, lines)

	total, err := f.carts.TotalPrice(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)
}

func TestAddItemRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "hank")
	p := f.product(t, "Chair", 80, 2)

	_, err := f.carts.AddItem(ctx, user, p.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.carts.AddItem(ctx, user, models.NewID(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.carts.AddItem(ctx, user, p.ID, 3)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, p.ID, stockErr.ProductID)
	assert.Equal(t, "Chair", stockErr.ProductName)
	assert.Equal(t, int64(3), stockErr.Requested)
	assert.Equal(t, int64(2), stockErr.Available)

	_, err = f.carts.ListItems(ctx, user)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestSetItemQuantity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "iris")
	p := f.product(t, "Pen", 2, 50)

	_, err := f.carts.SetItemQuantity(ctx, user, p.ID, 3)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = f.carts.AddItem(ctx, user, p.ID, 1)
	require.NoError(t, err)

	item, err := f.carts.SetItemQuantity(ctx, user, p.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.Quantity)

	_, err = f.carts.SetItemQuantity(ctx, user, p.ID, -1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.carts.SetItemQuantity(ctx, user, models.NewID(), 1)
	assert.ErrorIs(t, err, ErrItemNotFound)

	item, err = f.carts.SetItemQuantity(ctx, user, p.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, item.Quantity)

	lines, err := f.carts.ListItems(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []models.CartLine{{Name: "Pen", Quantity: 0}}, lines)

	_, err = f.carts.TotalPrice(ctx, user)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestRemoveItemAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signup(t, "jack")
	a := f.product(t, "A", 1, 5)
	b := f.product(t, "B", 1, 5)

	assert.NoError(t, f.carts.RemoveItem(ctx, user, a.ID), "no cart yet")
	assert.NoError(t, f.carts.Clear(ctx, user), "no cart yet")

	_, err := f.carts.AddItem(ctx, user, a.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, user, b.ID, 1)
	require.NoError(t, err)

	require.NoError(t, f.carts.RemoveItem(ctx, user, a.ID))
	require.NoError(t, f.carts.RemoveItem(ctx, user, a.ID))
	lines, err := f.carts.ListItems(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, []models.CartLine{{Name: "B", Quantity: 1}}, lines)

	require.NoError(t, f.carts.Clear(ctx, user))
	require.NoError(t, f.carts.Clear(ctx, user))
	_, err = f.carts.ListItems(ctx, user)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := f.signup(t, "kim")
	u2 := f.signup(t, "lee")
	p := f.product(t, "Cup", 3, 9)

	_, err := f.carts.AddItem(ctx, u1, p.ID, 2)
	require.NoError(t, err)

	_, err = f.carts.ListItems(ctx, u2)
	assert.ErrorIs(t, err, ErrEmptyCart)

	c1, err := f.store.GetOrCreateCart(ctx, u1.ID)
	require.NoError(t, err)
	again, err := f.store.GetOrCreateCart(ctx, u1.ID)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, again.ID)
}
