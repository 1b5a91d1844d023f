package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// MockCalculator is a test implementation of Calculator.
type MockCalculator struct {
	ItemTaxesFunc   func(ctx context.Context, item Taxable) ([]RateAmount, error)
	ShippingTaxFunc func(ctx context.Context, shipping decimal.Decimal) (decimal.Decimal, error)
}

// ItemTaxes delegates to the configured function or returns no entries.
func (m *MockCalculator) ItemTaxes(ctx context.Context, item Taxable) ([]RateAmount, error) {
	if m.ItemTaxesFunc != nil {
		return m.ItemTaxesFunc(ctx, item)
	}
	return nil, nil
}

// ShippingTax delegates to the configured function or returns zero.
func (m *MockCalculator) ShippingTax(ctx context.Context, shipping decimal.Decimal) (decimal.Decimal, error) {
	if m.ShippingTaxFunc != nil {
		return m.ShippingTaxFunc(ctx, shipping)
	}
	return decimal.Zero, nil
}
