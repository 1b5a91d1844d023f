package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// Calculator supplies per-unit tax amounts for cart line items and, when
// shipping is taxable, a tax amount for the shipping charge.
// Implementations: PercentageCalculator, NoTaxCalculator, MockCalculator.
type Calculator interface {
	// ItemTaxes returns the per-unit tax amounts that apply to an item,
	// one entry per applicable rate.
	ItemTaxes(ctx context.Context, item Taxable) ([]RateAmount, error)

	// ShippingTax returns the tax amount on a shipping charge.
	ShippingTax(ctx context.Context, shipping decimal.Decimal) (decimal.Decimal, error)
}

// Taxable describes a line item for tax purposes.
type Taxable struct {
	UnitPrice decimal.Decimal
	TaxClass  string // "standard", "food", "exempt", ...
	Quantity  int
	Shipped   bool
}

// RateAmount is one applicable tax rate and its per-unit amount.
type RateAmount struct {
	Label  string          // e.g. "Sales Tax (8%)"
	Rate   decimal.Decimal // e.g. 0.08
	Amount decimal.Decimal // per-unit tax amount, rounded to the cent
}
