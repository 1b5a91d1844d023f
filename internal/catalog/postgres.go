package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mkarlsen/njord/internal/domain"
	"github.com/shopspring/decimal"
)

// PostgresResolver implements Resolver against the catalog schema.
type PostgresResolver struct {
	pool *pgxpool.Pool
}

// Compile-time check that PostgresResolver implements Resolver.
var _ Resolver = (*PostgresResolver)(nil)

// NewPostgresResolver creates a PostgreSQL-backed catalog resolver.
func NewPostgresResolver(pool *pgxpool.Pool) *PostgresResolver {
	return &PostgresResolver{pool: pool}
}

// Resolve implements Resolver.
func (r *PostgresResolver) Resolve(ctx context.Context, productID, pricelineID int64) (*Product, *Priceline, error) {
	var p Product
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, type FROM products WHERE id = $1`,
		productID,
	).Scan(&p.ID, &p.Name, &p.Type)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrProductNotFound
		}
		return nil, nil, domain.Internal(err, "catalog.resolve", "failed to get product")
	}

	var (
		pl               Priceline
		price, salePrice string
	)
	err = r.pool.QueryRow(ctx,
		`SELECT id, product_id, label, price::text, sale_price::text, on_sale, tax_class,
		        inventory, stock, shipped, download, recurring, processing_min, processing_max
		   FROM pricelines
		  WHERE id = $1 AND product_id = $2`,
		pricelineID, productID,
	).Scan(&pl.ID, &pl.ProductID, &pl.Label, &price, &salePrice, &pl.OnSale, &pl.TaxClass,
		&pl.Inventory, &pl.Stock, &pl.Shipped, &pl.Download, &pl.Recurring,
		&pl.ProcessingMin, &pl.ProcessingMax)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrPricelineNotFound
		}
		return nil, nil, domain.Internal(err, "catalog.resolve", "failed to get priceline")
	}

	if pl.Price, err = decimal.NewFromString(price); err != nil {
		return nil, nil, domain.Internal(err, "catalog.resolve", "invalid price value")
	}
	if pl.SalePrice, err = decimal.NewFromString(salePrice); err != nil {
		return nil, nil, domain.Internal(err, "catalog.resolve", "invalid sale price value")
	}

	return &p, &pl, nil
}

// ResolveAddons implements Resolver.
func (r *PostgresResolver) ResolveAddons(ctx context.Context, pricelineID int64, addonIDs []int64) ([]Addon, error) {
	out := make([]Addon, 0, len(addonIDs))
	for _, id := range addonIDs {
		var (
			a     Addon
			price string
		)
		err := r.pool.QueryRow(ctx,
			`SELECT id, label, price::text FROM addons WHERE id = $1 AND priceline_id = $2`,
			id, pricelineID,
		).Scan(&a.ID, &a.Label, &price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrAddonNotFound
			}
			return nil, domain.Internal(err, "catalog.resolve_addons", "failed to get addon")
		}
		if a.Price, err = decimal.NewFromString(price); err != nil {
			return nil, domain.Internal(err, "catalog.resolve_addons", "invalid addon price value")
		}
		out = append(out, a)
	}
	return out, nil
}
