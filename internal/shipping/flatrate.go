package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// FlatRate defines a single flat-rate shipping option.
type FlatRate struct {
	ServiceName string
	ServiceCode string
	Cost        decimal.Decimal
	DaysMin     int
	DaysMax     int
}

// FlatRateEstimator estimates shipping from a predefined rate table,
// always quoting the cheapest configured rate. A non-zero free-shipping
// threshold waives shipping once the tracked subtotal reaches it.
type FlatRateEstimator struct {
	rates         []FlatRate
	freeThreshold decimal.Decimal
	tracked       map[string]any
}

// NewFlatRateEstimator creates a flat-rate estimator. A zero freeThreshold
// disables free shipping.
func NewFlatRateEstimator(rates []FlatRate, freeThreshold decimal.Decimal) *FlatRateEstimator {
	return &FlatRateEstimator{
		rates:         rates,
		freeThreshold: freeThreshold,
		tracked:       make(map[string]any),
	}
}

// Track implements Estimator.
func (e *FlatRateEstimator) Track(dimension string, value any) {
	e.tracked[dimension] = value
}

// Calculate implements Estimator. Returns zero when no shippable items are
// tracked, otherwise the cheapest configured rate.
func (e *FlatRateEstimator) Calculate(ctx context.Context) (decimal.Decimal, error) {
	items, _ := e.tracked[DimItems].([]ShippableItem)
	if len(items) == 0 {
		return decimal.Zero, nil
	}

	if len(e.rates) == 0 {
		return decimal.Zero, ErrNoRates
	}

	lowest := e.rates[0].Cost
	for _, r := range e.rates[1:] {
		if r.Cost.LessThan(lowest) {
			lowest = r.Cost
		}
	}
	return lowest, nil
}

// Free implements Estimator.
func (e *FlatRateEstimator) Free() bool {
	if e.freeThreshold.IsZero() {
		return false
	}
	subtotal, ok := e.tracked[DimSubtotal].(decimal.Decimal)
	if !ok {
		return false
	}
	return subtotal.GreaterThanOrEqual(e.freeThreshold)
}
