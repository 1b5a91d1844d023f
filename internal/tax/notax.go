package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// NoTaxCalculator applies no tax at all.
type NoTaxCalculator struct{}

// NewNoTaxCalculator creates a calculator that never applies tax.
func NewNoTaxCalculator() Calculator {
	return &NoTaxCalculator{}
}

// ItemTaxes returns no tax entries.
func (c *NoTaxCalculator) ItemTaxes(ctx context.Context, item Taxable) ([]RateAmount, error) {
	return nil, nil
}

// ShippingTax returns zero.
func (c *NoTaxCalculator) ShippingTax(ctx context.Context, shipping decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
