package catalog

import (
	"context"

	"github.com/mkarlsen/njord/internal/domain"
	"github.com/shopspring/decimal"
)

// Pre-defined resolver errors.
var (
	ErrProductNotFound   = domain.Errorf(domain.ENOTFOUND, "", "Product not found")
	ErrPricelineNotFound = domain.Errorf(domain.ENOTFOUND, "", "Price option not found for this product")
	ErrAddonNotFound     = domain.Errorf(domain.ENOTFOUND, "", "Add-on not found for this price option")
)

// ProductType classifies how a product is sold.
type ProductType string

const (
	TypeGoods        ProductType = "goods"
	TypeDownload     ProductType = "download"
	TypeSubscription ProductType = "subscription"
)

// Product is the catalog record a cart line item is built from.
type Product struct {
	ID   int64
	Name string
	Type ProductType
}

// Priceline is one purchasable price/variant selection of a product.
type Priceline struct {
	ID        int64
	ProductID int64
	Label     string
	Price     decimal.Decimal
	SalePrice decimal.Decimal
	OnSale    bool
	TaxClass  string

	// Inventory tracking. Stock is only meaningful when Inventory is true.
	Inventory bool
	Stock     int

	Shipped   bool
	Download  bool
	Recurring bool

	// Fulfillment lead time in days. Zero means no constraint.
	ProcessingMin int
	ProcessingMax int
}

// EffectivePrice returns the price a cart item pays per unit, before add-ons.
func (p *Priceline) EffectivePrice() decimal.Decimal {
	if p.OnSale {
		return p.SalePrice
	}
	return p.Price
}

// Addon is an optional add-on selection attached to a priceline.
type Addon struct {
	ID    int64
	Label string
	Price decimal.Decimal
}

// Resolver resolves product and price/variant selections for the cart.
// Implementations: PostgresResolver, MemoryResolver.
type Resolver interface {
	// Resolve returns the product and priceline for a selection.
	// Returns ErrProductNotFound or ErrPricelineNotFound when unresolved.
	Resolve(ctx context.Context, productID, pricelineID int64) (*Product, *Priceline, error)

	// ResolveAddons returns the addon records for the given ids, in the
	// order requested. Returns ErrAddonNotFound when any id is unknown.
	ResolveAddons(ctx context.Context, pricelineID int64, addonIDs []int64) ([]Addon, error)
}
