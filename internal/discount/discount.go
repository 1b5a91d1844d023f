package discount

import (
	"context"
	"strings"

	"github.com/mkarlsen/njord/internal/domain"
	"github.com/shopspring/decimal"
)

// Pre-defined discount errors.
var (
	ErrCodeNotFound       = domain.Errorf(domain.ENOTFOUND, "", "Promo code not found")
	ErrCodeAlreadyApplied = domain.Errorf(domain.ECONFLICT, "", "Promo code already applied")
)

// Kind classifies how a promo code discounts the order.
type Kind string

const (
	KindAmount  Kind = "amount"  // fixed amount off the subtotal
	KindPercent Kind = "percent" // percentage off the subtotal
)

// Code is one promotional code.
type Code struct {
	Code  string
	Kind  Kind
	Value decimal.Decimal // amount, or fractional rate for KindPercent
}

// Discounts holds the promo codes applied to one cart and derives the
// discount total from them. Owned by a single cart; not safe for
// concurrent use.
type Discounts struct {
	available map[string]Code
	applied   []Code
}

// New creates a discounts collaborator with the given redeemable codes.
func New(available []Code) *Discounts {
	m := make(map[string]Code, len(available))
	for _, c := range available {
		m[normalize(c.Code)] = c
	}
	return &Discounts{available: m}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply redeems a promo code. Unknown codes fail with ErrCodeNotFound;
// applying the same code twice fails with ErrCodeAlreadyApplied.
func (d *Discounts) Apply(code string) error {
	key := normalize(code)
	c, ok := d.available[key]
	if !ok {
		return ErrCodeNotFound
	}
	for _, a := range d.applied {
		if normalize(a.Code) == key {
			return ErrCodeAlreadyApplied
		}
	}
	d.applied = append(d.applied, c)
	return nil
}

// Remove drops an applied promo code. No-op when not applied.
func (d *Discounts) Remove(code string) {
	key := normalize(code)
	for i, a := range d.applied {
		if normalize(a.Code) == key {
			d.applied = append(d.applied[:i], d.applied[i+1:]...)
			return
		}
	}
}

// Codes returns the currently applied promo codes in application order.
func (d *Discounts) Codes() []string {
	out := make([]string, len(d.applied))
	for i, a := range d.applied {
		out[i] = a.Code
	}
	return out
}

// Clear drops all applied codes.
func (d *Discounts) Clear() {
	d.applied = nil
}

// Amount returns the discount total for the given order subtotal.
// The result never exceeds the subtotal.
func (d *Discounts) Amount(ctx context.Context, subtotal decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range d.applied {
		switch a.Kind {
		case KindPercent:
			total = total.Add(subtotal.Mul(a.Value).Round(2))
		default:
			total = total.Add(a.Value)
		}
	}
	if total.GreaterThan(subtotal) {
		return subtotal
	}
	return total
}
