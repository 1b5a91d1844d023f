package catalog

import (
	"context"
	"sync"
)

// MemoryResolver is an in-memory catalog used in tests and when running
// without a database. Safe for concurrent reads after seeding.
type MemoryResolver struct {
	mu         sync.RWMutex
	products   map[int64]Product
	pricelines map[int64]Priceline
	addons     map[int64][]Addon // keyed by priceline id
}

// NewMemoryResolver creates an empty in-memory catalog.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{
		products:   make(map[int64]Product),
		pricelines: make(map[int64]Priceline),
		addons:     make(map[int64][]Addon),
	}
}

// AddProduct seeds a product and its pricelines.
func (m *MemoryResolver) AddProduct(p Product, pricelines ...Priceline) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products[p.ID] = p
	for _, pl := range pricelines {
		pl.ProductID = p.ID
		m.pricelines[pl.ID] = pl
	}
}

// AddAddons seeds addon options for a priceline.
func (m *MemoryResolver) AddAddons(pricelineID int64, addons ...Addon) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addons[pricelineID] = append(m.addons[pricelineID], addons...)
}

// SetStock adjusts the stock level of a seeded priceline.
func (m *MemoryResolver) SetStock(pricelineID int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pl, ok := m.pricelines[pricelineID]; ok {
		pl.Stock = stock
		m.pricelines[pricelineID] = pl
	}
}

// Resolve implements Resolver.
func (m *MemoryResolver) Resolve(ctx context.Context, productID, pricelineID int64) (*Product, *Priceline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, nil, ErrProductNotFound
	}

	pl, ok := m.pricelines[pricelineID]
	if !ok || pl.ProductID != productID {
		return nil, nil, ErrPricelineNotFound
	}

	return &p, &pl, nil
}

// ResolveAddons implements Resolver.
func (m *MemoryResolver) ResolveAddons(ctx context.Context, pricelineID int64, addonIDs []int64) ([]Addon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	available := m.addons[pricelineID]
	out := make([]Addon, 0, len(addonIDs))
	for _, id := range addonIDs {
		found := false
		for _, a := range available {
			if a.ID == id {
				out = append(out, a)
				found = true
				break
			}
		}
		if !found {
			return nil, ErrAddonNotFound
		}
	}
	return out, nil
}
