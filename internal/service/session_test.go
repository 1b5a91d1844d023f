package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mkarlsen/njord/internal/cart"
	"github.com/mkarlsen/njord/internal/catalog"
	"github.com/mkarlsen/njord/internal/discount"
	"github.com/mkarlsen/njord/internal/service"
	"github.com/mkarlsen/njord/internal/shipping"
	"github.com/mkarlsen/njord/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFactory() service.CartFactory {
	resolver := catalog.NewMemoryResolver()
	resolver.AddProduct(catalog.Product{ID: 1, Name: "Roast Sampler", Type: catalog.TypeGoods},
		catalog.Priceline{ID: 11, Label: "12oz", Price: decimal.NewFromInt(10), Shipped: true},
	)

	return func(sessionID string) *cart.Cart {
		return cart.New(cart.Config{
			SessionID: sessionID,
			Resolver:  resolver,
			Taxes:     tax.NewNoTaxCalculator(),
			Shipping:  shipping.NewMockEstimator(),
			Discounts: discount.New(nil),
		})
	}
}

func Test_Sessions_CreatesCartOnFirstUse(t *testing.T) {
	s := service.NewSessions(testFactory(), nil)

	err := s.With("sess-1", func(c *cart.Cart) error {
		assert.Equal(t, 0, c.Count())
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}

func Test_Sessions_SameCartAcrossCalls(t *testing.T) {
	s := service.NewSessions(testFactory(), nil)
	ctx := context.Background()

	err := s.With("sess-1", func(c *cart.Cart) error {
		_, err := c.AddItem(ctx, 2, 1, 11, "", nil, nil)
		return err
	})
	require.NoError(t, err)

	err = s.With("sess-1", func(c *cart.Cart) error {
		assert.Equal(t, 1, c.Count())
		assert.Equal(t, 2, c.Totals().Quantity)
		return nil
	})
	assert.NoError(t, err)
}

func Test_Sessions_CrossSessionIsolation(t *testing.T) {
	s := service.NewSessions(testFactory(), nil)
	ctx := context.Background()

	err := s.With("sess-a", func(c *cart.Cart) error {
		_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil)
		return err
	})
	require.NoError(t, err)

	err = s.With("sess-b", func(c *cart.Cart) error {
		assert.Equal(t, 0, c.Count(), "carts must never share state")
		return nil
	})
	assert.NoError(t, err)
}

func Test_Sessions_SerializesConcurrentWriters(t *testing.T) {
	s := service.NewSessions(testFactory(), nil)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_ = s.With("sess-1", func(c *cart.Cart) error {
				_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil)
				return err
			})
		}()
	}
	wg.Wait()

	err := s.With("sess-1", func(c *cart.Cart) error {
		assert.Equal(t, 1, c.Count())
		assert.Equal(t, writers, c.Totals().Quantity)
		return nil
	})
	assert.NoError(t, err)
}

func Test_Sessions_Drop(t *testing.T) {
	s := service.NewSessions(testFactory(), nil)
	ctx := context.Background()

	err := s.With("sess-1", func(c *cart.Cart) error {
		_, err := c.AddItem(ctx, 1, 1, 11, "", nil, nil)
		return err
	})
	require.NoError(t, err)

	s.Drop("sess-1")
	assert.Equal(t, 0, s.Len())

	err = s.With("sess-1", func(c *cart.Cart) error {
		assert.Equal(t, 0, c.Count(), "dropped session starts fresh")
		return nil
	})
	assert.NoError(t, err)
}
