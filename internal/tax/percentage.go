package tax

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ClassExempt marks items no tax applies to.
const ClassExempt = "exempt"

// PercentageCalculator applies a single flat percentage rate.
type PercentageCalculator struct {
	rate  decimal.Decimal
	label string
}

// NewPercentageCalculator creates a flat-rate tax calculator.
// rate is fractional, e.g. 0.08 for 8%.
func NewPercentageCalculator(rate decimal.Decimal) Calculator {
	pct := rate.Mul(decimal.NewFromInt(100))
	return &PercentageCalculator{
		rate:  rate,
		label: fmt.Sprintf("Sales Tax (%s%%)", pct.String()),
	}
}

// ItemTaxes computes the per-unit tax at the configured rate, rounded to
// the cent. Exempt items and a zero rate produce no entries.
func (c *PercentageCalculator) ItemTaxes(ctx context.Context, item Taxable) ([]RateAmount, error) {
	if c.rate.IsZero() || item.TaxClass == ClassExempt {
		return nil, nil
	}

	return []RateAmount{{
		Label:  c.label,
		Rate:   c.rate,
		Amount: item.UnitPrice.Mul(c.rate).Round(2),
	}}, nil
}

// ShippingTax computes tax on the shipping charge at the configured rate.
func (c *PercentageCalculator) ShippingTax(ctx context.Context, shipping decimal.Decimal) (decimal.Decimal, error) {
	if c.rate.IsZero() {
		return decimal.Zero, nil
	}
	return shipping.Mul(c.rate).Round(2), nil
}
