package shipping

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoRates is returned when an estimator has no rate that can serve
	// the tracked shipment.
	ErrNoRates = errors.New("no shipping rates available")
)

// Tracked dimension names. Estimators read whichever dimensions affect
// their rate computation and ignore the rest.
const (
	DimItems    = "items"        // []ShippableItem
	DimSubtotal = "subtotal"     // decimal.Decimal
	DimCountry  = "shipcountry"  // string
	DimState    = "shipstate"    // string
	DimPostcode = "shippostcode" // string
)

// ShippableItem is the shipping-relevant view of a cart line item.
type ShippableItem struct {
	Fingerprint string
	Quantity    int
}

// Estimator computes a lowest-cost shipping estimate from tracked inputs.
// The cart tracks the dimensions that affect rates (destination, shippable
// items, order subtotal) and asks for a recalculation whenever it retotals.
// Implementations: FlatRateEstimator, MockEstimator.
type Estimator interface {
	// Track registers an input dimension that affects rate computation.
	// Tracking the same dimension again replaces the previous value.
	Track(dimension string, value any)

	// Calculate recomputes and returns the lowest-cost shipping estimate
	// for the currently tracked inputs. Zero when nothing needs shipping.
	Calculate(ctx context.Context) (decimal.Decimal, error)

	// Free reports whether the free-shipping threshold is met for the
	// currently tracked inputs.
	Free() bool
}
