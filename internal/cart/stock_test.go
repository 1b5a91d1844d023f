package cart_test

import (
	"context"
	"testing"

	"github.com/mkarlsen/njord/internal/cart"
	"github.com/mkarlsen/njord/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Priceline 31 is seeded with 5 units of stock and inventory tracking on.

func Test_Stock_CombinedDemandReducesQuantity(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	// Two distinct entries (different custom data) drawing on the same
	// stock unit: 3 + 4 = 7 ordered against 5 in stock.
	a, err := c.AddItem(ctx, 3, 3, 31, "", map[string]string{"engraving": "A"}, nil)
	require.NoError(t, err)
	assert.False(t, a.LowStock)

	b, err := c.AddItem(ctx, 4, 3, 31, "", map[string]string{"engraving": "B"}, nil)

	require.NoError(t, err, "partial fulfillment is a warning, not a failure")
	assert.True(t, b.LowStock)
	assert.Equal(t, 2, b.QtyReduced)
	assert.Equal(t, 2, b.Item.Quantity, "reduced by the overage")
	assert.Equal(t, 2, c.Count())
	assert.True(t, dec("40.00").Equal(c.Totals().Subtotal), "5 units at 8.00")
}

func Test_Stock_FullOverageRejectsAdd(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	a, err := c.AddItem(ctx, 5, 3, 31, "", map[string]string{"engraving": "A"}, nil)
	require.NoError(t, err)

	_, err = c.AddItem(ctx, 2, 3, 31, "", map[string]string{"engraving": "B"}, nil)

	assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))
	assert.Equal(t, 1, c.Count(), "rejected add rolls back entirely")
	assert.True(t, dec("40.00").Equal(c.Totals().Subtotal))
	assert.Equal(t, 5, c.Item(a.Item.Fingerprint).Quantity)
}

func Test_Stock_RejectedMergeRestoresQuantity(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	a, err := c.AddItem(ctx, 5, 3, 31, "", nil, nil)
	require.NoError(t, err)

	// Same fingerprint: the merge would push the single entry to 11,
	// an overage of 6 at or above the added quantity.
	_, err = c.AddItem(ctx, 6, 3, 31, "", nil, nil)

	assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))
	assert.Equal(t, 5, c.Item(a.Item.Fingerprint).Quantity, "merge rolled back")
	assert.True(t, dec("40.00").Equal(c.Totals().Subtotal))
}

func Test_Stock_SingleItemOverageReduces(t *testing.T) {
	c := newTestCart()

	res, err := c.AddItem(context.Background(), 8, 3, 31, "", nil, nil)

	require.NoError(t, err)
	assert.True(t, res.LowStock)
	assert.Equal(t, 3, res.QtyReduced)
	assert.Equal(t, 5, res.Item.Quantity)
}

func Test_Stock_UpdateRevalidates(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	res, err := c.AddItem(ctx, 2, 3, 31, "", nil, nil)
	require.NoError(t, err)

	out, err := c.UpdateItem(ctx, res.Item.Fingerprint, 9)

	require.NoError(t, err)
	assert.True(t, out.LowStock)
	assert.Equal(t, 5, out.Item.Quantity)
}

func Test_Stock_UpdateAbsorbsOverage(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	a, err := c.AddItem(ctx, 3, 3, 31, "", map[string]string{"engraving": "A"}, nil)
	require.NoError(t, err)
	b, err := c.AddItem(ctx, 2, 3, 31, "", map[string]string{"engraving": "B"}, nil)
	require.NoError(t, err)

	// Raising A to 5 would put combined demand at 7 against 5 in stock;
	// the item under mutation absorbs the overage, the other entry is
	// untouched.
	out, err := c.UpdateItem(ctx, a.Item.Fingerprint, 5)

	require.NoError(t, err)
	assert.True(t, out.LowStock)
	assert.Equal(t, 2, out.QtyReduced)
	assert.Equal(t, 3, out.Item.Quantity)
	assert.Equal(t, 2, c.Item(b.Item.Fingerprint).Quantity)
}

func Test_Stock_SkippedWhenInventoryDisabled(t *testing.T) {
	c := newTestCart(func(cfg *cart.Config) {
		cfg.Settings.InventoryEnabled = false
	})

	res, err := c.AddItem(context.Background(), 50, 3, 31, "", nil, nil)

	require.NoError(t, err)
	assert.False(t, res.LowStock)
	assert.Equal(t, 50, res.Item.Quantity)
}

func Test_Stock_UntrackedItemsIgnored(t *testing.T) {
	c := newTestCart()

	// Priceline 11 has no inventory tracking.
	res, err := c.AddItem(context.Background(), 100, 1, 11, "", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 100, res.Item.Quantity)
}
