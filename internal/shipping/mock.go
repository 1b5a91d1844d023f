package shipping

import (
	"context"

	"github.com/shopspring/decimal"
)

// MockEstimator is a test implementation of Estimator.
type MockEstimator struct {
	CalculateFunc func(ctx context.Context, tracked map[string]any) (decimal.Decimal, error)
	FreeFunc      func(tracked map[string]any) bool

	Tracked map[string]any
}

// NewMockEstimator creates a mock estimator for testing.
func NewMockEstimator() *MockEstimator {
	return &MockEstimator{Tracked: make(map[string]any)}
}

// Track records the dimension so tests can assert on tracked inputs.
func (m *MockEstimator) Track(dimension string, value any) {
	m.Tracked[dimension] = value
}

// Calculate delegates to the configured function or returns zero.
func (m *MockEstimator) Calculate(ctx context.Context) (decimal.Decimal, error) {
	if m.CalculateFunc != nil {
		return m.CalculateFunc(ctx, m.Tracked)
	}
	return decimal.Zero, nil
}

// Free delegates to the configured function or returns false.
func (m *MockEstimator) Free() bool {
	if m.FreeFunc != nil {
		return m.FreeFunc(m.Tracked)
	}
	return false
}
