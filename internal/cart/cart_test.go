package cart_test

import (
	"context"
	"testing"

	"github.com/mkarlsen/njord/internal/cart"
	"github.com/mkarlsen/njord/internal/catalog"
	"github.com/mkarlsen/njord/internal/discount"
	"github.com/mkarlsen/njord/internal/domain"
	"github.com/mkarlsen/njord/internal/shipping"
	"github.com/mkarlsen/njord/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalog() *catalog.MemoryResolver {
	r := catalog.NewMemoryResolver()
	r.AddProduct(catalog.Product{ID: 1, Name: "Roast Sampler", Type: catalog.TypeGoods},
		catalog.Priceline{ID: 11, Label: "12oz", Price: dec("10.00"), TaxClass: "standard", Shipped: true, ProcessingMin: 1, ProcessingMax: 3},
		catalog.Priceline{ID: 12, Label: "5lb", Price: dec("38.00"), TaxClass: "standard", Shipped: true, ProcessingMin: 2, ProcessingMax: 5},
	)
	r.AddAddons(11, catalog.Addon{ID: 101, Label: "Gift wrap", Price: dec("2.00")})
	r.AddProduct(catalog.Product{ID: 2, Name: "Coffee Club", Type: catalog.TypeSubscription},
		catalog.Priceline{ID: 21, Label: "Monthly", Price: dec("15.00"), Recurring: true},
	)
	r.AddProduct(catalog.Product{ID: 3, Name: "Limited Mug", Type: catalog.TypeGoods},
		catalog.Priceline{ID: 31, Label: "Standard", Price: dec("8.00"), Shipped: true, Inventory: true, Stock: 5},
	)
	r.AddProduct(catalog.Product{ID: 4, Name: "Brew Guide", Type: catalog.TypeDownload},
		catalog.Priceline{ID: 41, Label: "PDF", Price: decimal.Zero, Download: true},
	)
	r.AddProduct(catalog.Product{ID: 5, Name: "Filter Refill Plan", Type: catalog.TypeGoods},
		catalog.Priceline{ID: 51, Label: "Every 30 days", Price: dec("9.00"), Shipped: true, Recurring: true},
	)
	return r
}

func newTestCart(mutate ...func(*cart.Config)) *cart.Cart {
	cfg := cart.Config{
		SessionID: "test-session",
		Settings:  cart.Settings{InventoryEnabled: true},
		Resolver:  seedCatalog(),
		Taxes:     tax.NewNoTaxCalculator(),
		Shipping:  shipping.NewMockEstimator(),
		Discounts: discount.New(nil),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return cart.New(cfg)
}

func Test_Cart_AddItem(t *testing.T) {
	c := newTestCart()

	res, err := c.AddItem(context.Background(), 2, 1, 11, "coffee", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, c.Count())
	assert.Equal(t, 2, res.Item.Quantity)
	assert.False(t, res.LowStock)
	assert.True(t, dec("20.00").Equal(c.Totals().Subtotal))
	assert.Same(t, res.Item, c.LastAdded())
}

func Test_Cart_AddItem_InvalidQuantity(t *testing.T) {
	c := newTestCart()

	_, err := c.AddItem(context.Background(), 0, 1, 11, "", nil, nil)

	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, 0, c.Count())
}

func Test_Cart_AddItem_UnknownProduct(t *testing.T) {
	c := newTestCart()

	_, err := c.AddItem(context.Background(), 1, 999, 11, "", nil, nil)

	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
	assert.Equal(t, 0, c.Count())
}

func Test_Cart_AddItem_MergesSameFingerprint(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	first, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)
	second, err := c.AddItem(ctx, 3, 1, 11, "", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, c.Count(), "same fingerprint is the same cart entry")
	assert.Equal(t, first.Item.Fingerprint, second.Item.Fingerprint)
	assert.Equal(t, 5, second.Item.Quantity)
	assert.True(t, dec("50.00").Equal(c.Totals().Subtotal))
}

func Test_Cart_AddItem_DistinctDataDistinctEntries(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	_, err := c.AddItem(ctx, 1, 1, 11, "", map[string]string{"engraving": "mom"}, nil)
	require.NoError(t, err)
	_, err = c.AddItem(ctx, 1, 1, 11, "", map[string]string{"engraving": "dad"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Count())
}

func Test_Cart_TotalsConsistency(t *testing.T) {
	est := shipping.NewMockEstimator()
	est.CalculateFunc = func(ctx context.Context, tracked map[string]any) (decimal.Decimal, error) {
		items, _ := tracked[shipping.DimItems].([]shipping.ShippableItem)
		if len(items) == 0 {
			return decimal.Zero, nil
		}
		return dec("5.00"), nil
	}
	c := newTestCart(func(cfg *cart.Config) {
		cfg.Taxes = tax.NewPercentageCalculator(dec("0.08"))
		cfg.Shipping = est
		cfg.Settings.TaxShipping = true
	})
	ctx := context.Background()

	_, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil) // 20.00 + 1.60 tax
	require.NoError(t, err)
	_, err = c.AddItem(ctx, 1, 1, 12, "", nil, nil) // 38.00 + 3.04 tax
	require.NoError(t, err)
	_, err = c.UpdateItem(ctx, c.Items()[0].Fingerprint, 1) // 10.00 + 0.80 tax
	require.NoError(t, err)

	got := c.Recompute(ctx)

	assert.True(t, dec("48.00").Equal(got.Subtotal))
	assert.True(t, dec("3.84").Equal(got.Tax))
	assert.True(t, dec("5.00").Equal(got.Shipping))
	assert.True(t, dec("0.40").Equal(got.ShippingTax))
	expected := got.Subtotal.Add(got.Tax).Add(got.Shipping).Add(got.ShippingTax).Sub(got.Discount)
	assert.True(t, expected.Equal(got.Total), "grand total must be derived, got %s want %s", got.Total, expected)

	// Idempotent: recomputing again without changes yields the same snapshot.
	again := c.Recompute(ctx)
	assert.True(t, got.Total.Equal(again.Total))
	assert.True(t, got.Shipping.Equal(again.Shipping))
	assert.True(t, got.Tax.Equal(again.Tax))
}

func Test_Cart_RemoveItem_CleansRegistry(t *testing.T) {
	c := newTestCart(func(cfg *cart.Config) {
		cfg.Taxes = tax.NewPercentageCalculator(dec("0.08"))
	})
	ctx := context.Background()

	res, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)
	fp := res.Item.Fingerprint

	c.RemoveItem(ctx, fp)

	assert.Equal(t, 0, c.Count())
	got := c.Totals()
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Total.IsZero())
	assert.Equal(t, 0, got.Quantity)
}

func Test_Cart_RemoveItem_UnknownIsNoOp(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil)
	require.NoError(t, err)

	c.RemoveItem(ctx, "deadbeef")

	assert.Equal(t, 1, c.Count())
}

func Test_Cart_UpdateItem_ZeroRemoves(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	res, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)

	out, err := c.UpdateItem(ctx, res.Item.Fingerprint, 0)

	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 0, c.Count())
	assert.True(t, c.Totals().Total.IsZero())
}

func Test_Cart_UpdateItem_SetsQuantity(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	res, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)

	out, err := c.UpdateItem(ctx, res.Item.Fingerprint, 6)

	require.NoError(t, err)
	assert.Equal(t, 6, out.Item.Quantity)
	assert.True(t, dec("60.00").Equal(c.Totals().Subtotal))
}

func Test_Cart_UpdateItem_UnknownIsNoOp(t *testing.T) {
	c := newTestCart()

	out, err := c.UpdateItem(context.Background(), "deadbeef", 3)

	assert.NoError(t, err)
	assert.Nil(t, out)
}

func Test_Cart_Exclusivity(t *testing.T) {
	ctx := context.Background()

	t.Run("subscription into non-empty cart", func(t *testing.T) {
		c := newTestCart()
		_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil)
		require.NoError(t, err)

		_, err = c.AddItem(ctx, 1, 2, 21, "", nil, nil)

		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, 1, c.Count())
	})

	t.Run("item into cart holding a subscription", func(t *testing.T) {
		c := newTestCart()
		_, err := c.AddItem(ctx, 1, 2, 21, "", nil, nil)
		require.NoError(t, err)

		_, err = c.AddItem(ctx, 1, 1, 11, "", nil, nil)

		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, 1, c.Count())
	})

	t.Run("more of the same subscription is allowed", func(t *testing.T) {
		c := newTestCart()
		_, err := c.AddItem(ctx, 1, 2, 21, "", nil, nil)
		require.NoError(t, err)

		res, err := c.AddItem(ctx, 1, 2, 21, "", nil, nil)

		require.NoError(t, err)
		assert.Equal(t, 2, res.Item.Quantity)
		assert.Equal(t, 1, c.Count())
	})

	// A goods product sold on a recurring priceline is just as exclusive
	// as a subscription product.
	t.Run("recurring priceline into non-empty cart", func(t *testing.T) {
		c := newTestCart()
		_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil)
		require.NoError(t, err)

		_, err = c.AddItem(ctx, 1, 5, 51, "", nil, nil)

		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, 1, c.Count())
	})

	t.Run("item into cart holding a recurring priceline", func(t *testing.T) {
		c := newTestCart()
		_, err := c.AddItem(ctx, 1, 5, 51, "", nil, nil)
		require.NoError(t, err)

		_, err = c.AddItem(ctx, 1, 1, 11, "", nil, nil)

		assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
		assert.Equal(t, 1, c.Count())
	})
}

func Test_Cart_Clear(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	_, err := c.AddItem(ctx, 1, 2, 21, "", nil, nil) // exclusive item
	require.NoError(t, err)

	c.Clear(ctx)

	assert.Equal(t, 0, c.Count())
	assert.True(t, c.Totals().Total.IsZero())
	assert.Nil(t, c.LastAdded())

	// A fresh add succeeds even though the cart previously held a
	// subscription.
	_, err = c.AddItem(ctx, 1, 1, 11, "", nil, nil)
	assert.NoError(t, err)
}

func Test_Cart_ChangeItem(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	_, err := c.AddItem(ctx, 1, 3, 31, "", nil, nil)
	require.NoError(t, err)
	res, err := c.AddItem(ctx, 2, 1, 11, "mugs", map[string]string{"note": "gift"}, nil)
	require.NoError(t, err)
	oldFP := res.Item.Fingerprint

	out, err := c.ChangeItem(ctx, oldFP, 1, 12, nil)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NotEqual(t, oldFP, out.Item.Fingerprint)
	assert.Equal(t, 2, out.Item.Quantity, "quantity preserved")
	assert.Equal(t, "mugs", out.Item.Category, "category preserved")
	assert.Equal(t, map[string]string{"note": "gift"}, out.Item.Data, "custom data preserved")
	assert.Equal(t, int64(12), out.Item.PricelineID)

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, out.Item.Fingerprint, items[1].Fingerprint, "ordinal position preserved")
	assert.Nil(t, c.Item(oldFP), "old entry gone")
	assert.True(t, dec("84.00").Equal(c.Totals().Subtotal), "8.00 + 2x38.00")
}

func Test_Cart_ChangeItem_NoOps(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	res, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil)
	require.NoError(t, err)

	t.Run("unknown fingerprint", func(t *testing.T) {
		out, err := c.ChangeItem(ctx, "deadbeef", 1, 12, nil)
		assert.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("already on requested selection", func(t *testing.T) {
		out, err := c.ChangeItem(ctx, res.Item.Fingerprint, 1, 11, nil)
		assert.NoError(t, err)
		assert.Nil(t, out)
		assert.Equal(t, 1, c.Count())
	})
}

func Test_Cart_ChangeItem_MergesAddons(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	res, err := c.AddItem(ctx, 1, 1, 11, "", map[string]string{"v": "1"}, nil)
	require.NoError(t, err)

	out, err := c.ChangeItem(ctx, res.Item.Fingerprint, 1, 11, []int64{101})

	require.NoError(t, err)
	require.NotNil(t, out)
	require.Len(t, out.Item.Addons, 1)
	assert.Equal(t, int64(101), out.Item.Addons[0].ID)
	assert.True(t, dec("12.00").Equal(out.Item.UnitPrice), "addon folded into unit price")
}

func Test_Cart_ChangeItem_StockFailureRollsBack(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	a, err := c.AddItem(ctx, 5, 3, 31, "", map[string]string{"engraving": "A"}, nil)
	require.NoError(t, err)
	b, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)

	// Stock on priceline 31 is exhausted by the first entry, so swapping
	// the second onto it has no units left to draw on.
	out, err := c.ChangeItem(ctx, b.Item.Fingerprint, 3, 31, nil)

	assert.Nil(t, out)
	assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))
	assert.Equal(t, 2, c.Count())
	restored := c.Item(b.Item.Fingerprint)
	require.NotNil(t, restored, "original item restored")
	assert.Equal(t, 2, restored.Quantity)
	assert.Equal(t, int64(11), restored.PricelineID)
	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, a.Item.Fingerprint, items[0].Fingerprint)
	assert.Equal(t, b.Item.Fingerprint, items[1].Fingerprint, "ordinal position preserved")
	assert.True(t, dec("60.00").Equal(c.Totals().Subtotal), "5x8.00 + 2x10.00")
	assert.Equal(t, 7, c.Totals().Quantity)
}

func Test_Cart_ChangeItem_CollisionFoldsQuantities(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	b, err := c.AddItem(ctx, 5, 3, 31, "", nil, nil)
	require.NoError(t, err)
	a, err := c.AddItem(ctx, 3, 1, 11, "", nil, nil)
	require.NoError(t, err)

	// The target selection already sits in the cart: quantities fold into
	// that entry (5+3 against 5 in stock) and the overage is absorbed as
	// a reduction rather than a failure.
	out, err := c.ChangeItem(ctx, a.Item.Fingerprint, 3, 31, nil)

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, b.Item.Fingerprint, out.Item.Fingerprint)
	assert.True(t, out.LowStock)
	assert.Equal(t, 3, out.QtyReduced)
	assert.Equal(t, 5, out.Item.Quantity)
	assert.Equal(t, 1, c.Count(), "old slot dropped")
	assert.Nil(t, c.Item(a.Item.Fingerprint))
	assert.True(t, dec("40.00").Equal(c.Totals().Subtotal))
}

func Test_Cart_ChangeItem_MergedRollbackRestoresOrder(t *testing.T) {
	resolver := seedCatalog()
	c := newTestCart(func(cfg *cart.Config) { cfg.Resolver = resolver })
	ctx := context.Background()

	a, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)
	b, err := c.AddItem(ctx, 2, 3, 31, "", nil, nil)
	require.NoError(t, err)
	d, err := c.AddItem(ctx, 1, 1, 12, "", nil, nil)
	require.NoError(t, err)

	// The mug sells out after it was carted. Folding the first item into
	// that entry now has no stock at all, so the change must roll back
	// without reshuffling the cart.
	resolver.SetStock(31, 0)
	out, err := c.ChangeItem(ctx, a.Item.Fingerprint, 3, 31, nil)

	assert.Nil(t, out)
	assert.Equal(t, domain.ESTOCK, domain.ErrorCode(err))
	assert.Equal(t, 2, c.Item(b.Item.Fingerprint).Quantity, "merge rolled back")
	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, a.Item.Fingerprint, items[0].Fingerprint, "slot preserved")
	assert.Equal(t, b.Item.Fingerprint, items[1].Fingerprint)
	assert.Equal(t, d.Item.Fingerprint, items[2].Fingerprint)
	assert.True(t, dec("74.00").Equal(c.Totals().Subtotal), "2x10.00 + 2x8.00 + 38.00")
}

func Test_Cart_FreeShippingOverride(t *testing.T) {
	est := shipping.NewMockEstimator()
	est.CalculateFunc = func(ctx context.Context, tracked map[string]any) (decimal.Decimal, error) {
		return dec("7.95"), nil
	}
	est.FreeFunc = func(tracked map[string]any) bool {
		subtotal, _ := tracked[shipping.DimSubtotal].(decimal.Decimal)
		return subtotal.GreaterThanOrEqual(dec("50.00"))
	}
	c := newTestCart(func(cfg *cart.Config) { cfg.Shipping = est })
	ctx := context.Background()

	_, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil) // 20.00
	require.NoError(t, err)
	assert.True(t, dec("7.95").Equal(c.Totals().Shipping))

	_, err = c.AddItem(ctx, 1, 1, 12, "", nil, nil) // 58.00, over the threshold
	require.NoError(t, err)
	assert.True(t, c.Totals().Shipping.IsZero(), "free shipping re-registers zero")
}

func Test_Cart_ShippingErrorDefaultsToZero(t *testing.T) {
	est := shipping.NewMockEstimator()
	est.CalculateFunc = func(ctx context.Context, tracked map[string]any) (decimal.Decimal, error) {
		return decimal.Zero, shipping.ErrNoRates
	}
	c := newTestCart(func(cfg *cart.Config) { cfg.Shipping = est })

	_, err := c.AddItem(context.Background(), 1, 1, 11, "", nil, nil)

	require.NoError(t, err, "a failing estimator must not fail the add")
	assert.True(t, c.Totals().Shipping.IsZero())
}

func Test_Cart_DiscountRegister(t *testing.T) {
	d := discount.New([]discount.Code{
		{Code: "SAVE5", Kind: discount.KindAmount, Value: dec("5.00")},
	})
	c := newTestCart(func(cfg *cart.Config) { cfg.Discounts = d })
	ctx := context.Background()

	_, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, d.Apply("SAVE5"))

	got := c.Recompute(ctx)

	assert.True(t, dec("5.00").Equal(got.Discount))
	assert.True(t, dec("15.00").Equal(got.Total))
}

func Test_Cart_IsOrderFree(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	assert.False(t, c.IsOrderFree(), "empty cart is not free")

	_, err := c.AddItem(ctx, 1, 4, 41, "", nil, nil) // zero-priced download
	require.NoError(t, err)
	assert.True(t, c.IsOrderFree())

	_, err = c.AddItem(ctx, 1, 1, 11, "", nil, nil)
	require.NoError(t, err)
	assert.False(t, c.IsOrderFree())
}

func Test_Cart_DerivedViews(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil) // shipped
	require.NoError(t, err)
	_, err = c.AddItem(ctx, 1, 4, 41, "", nil, nil) // download
	require.NoError(t, err)

	assert.Len(t, c.Shipped(), 1)
	assert.Len(t, c.Downloads(), 1)
	assert.Empty(t, c.Recurring())
}

func Test_Cart_ProcessingWindow(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	assert.Equal(t, cart.DayRange{}, c.Processing())

	_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil) // 1-3 days
	require.NoError(t, err)
	_, err = c.AddItem(ctx, 1, 1, 12, "", nil, nil) // 2-5 days
	require.NoError(t, err)

	assert.Equal(t, cart.DayRange{Min: 1, Max: 5}, c.Processing())
}

func Test_Cart_Snapshot(t *testing.T) {
	c := newTestCart()
	ctx := context.Background()

	res, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)

	snap := c.Snapshot()

	require.Len(t, snap.Items, 1)
	assert.Equal(t, res.Item.Fingerprint, snap.LastAdded)
	assert.Equal(t, 2, snap.Totals.Quantity)
	assert.True(t, dec("20.00").Equal(snap.Totals.Subtotal))
	assert.Equal(t, cart.DayRange{Min: 1, Max: 3}, snap.Processing)
	assert.False(t, snap.OrderFree)
}

func Test_Cart_TaxEntriesSubScopedToItem(t *testing.T) {
	c := newTestCart(func(cfg *cart.Config) {
		cfg.Taxes = tax.NewPercentageCalculator(dec("0.08"))
	})
	ctx := context.Background()

	res, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
	require.NoError(t, err)

	// 0.80 per unit at 8% on 10.00, times quantity 2.
	assert.True(t, dec("1.60").Equal(c.Totals().Tax))

	c.RemoveItem(ctx, res.Item.Fingerprint)
	assert.True(t, c.Totals().Tax.IsZero())
}

func Test_Cart_Recompute_EmptyCartAllZero(t *testing.T) {
	c := newTestCart()

	got := c.Recompute(context.Background())

	assert.Equal(t, 0, got.Quantity)
	assert.True(t, got.Subtotal.IsZero())
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Shipping.IsZero())
	assert.True(t, got.ShippingTax.IsZero())
	assert.True(t, got.Discount.IsZero())
	assert.True(t, got.Total.IsZero())
}
