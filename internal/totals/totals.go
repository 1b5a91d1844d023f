package totals

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Register names an order amount register. Every monetary contribution to
// the order lives in exactly one register, keyed by its owner.
type Register string

const (
	RegisterQuantity    Register = "quantity"
	RegisterSubtotal    Register = "subtotal"
	RegisterTax         Register = "tax"
	RegisterShipping    Register = "shipping"
	RegisterShippingTax Register = "shippingtax"
	RegisterDiscount    Register = "discount"

	// RegisterTotal is the derived grand total. It has no entries of its
	// own; Total recomputes it from the other registers on every call.
	RegisterTotal Register = "total"
)

// CartOwner is the owner id for cart-level entries not scoped to a line item.
const CartOwner = "cart"

// OwnerKey builds a sub-scoped owner id for entries that an item owns more
// than one of, such as per-rate tax amounts. TakeoffOwner removes sub-scoped
// entries along with the item's direct entries.
func OwnerKey(owner, sub string) string {
	return owner + "/" + sub
}

// Entry is a single registered amount: a contribution of a given kind,
// owned by a line item (or the cart itself).
type Entry struct {
	Register Register
	Owner    string
	Amount   decimal.Decimal
}

// OrderTotals is the registry of amount contributors for one cart.
// Named totals are always derived by summing the currently registered
// entries; nothing here is cached or incrementally patched.
//
// OrderTotals is not safe for concurrent use. A cart and its totals are
// session-scoped, single-writer state; the service layer serializes access.
type OrderTotals struct {
	entries map[Register]map[string]decimal.Decimal
}

// New creates an empty, zeroed aggregator.
func New() *OrderTotals {
	return &OrderTotals{
		entries: make(map[Register]map[string]decimal.Decimal),
	}
}

// Register inserts an entry keyed by (register, owner). Registering again
// under the same key overwrites the previous amount, so repeated
// registration for the same owner is idempotent.
func (t *OrderTotals) Register(e Entry) {
	owners, ok := t.entries[e.Register]
	if !ok {
		owners = make(map[string]decimal.Decimal)
		t.entries[e.Register] = owners
	}
	owners[e.Owner] = e.Amount
}

// Takeoff removes the entry for (register, owner). No-op when absent.
func (t *OrderTotals) Takeoff(r Register, owner string) {
	if owners, ok := t.entries[r]; ok {
		delete(owners, owner)
	}
}

// TakeoffOwnerRegister removes the owner's direct and sub-scoped entries
// from one register only. Used to clear an item's per-rate tax entries
// before re-registering a changed set.
func (t *OrderTotals) TakeoffOwnerRegister(r Register, owner string) {
	prefix := owner + "/"
	owners := t.entries[r]
	for key := range owners {
		if key == owner || strings.HasPrefix(key, prefix) {
			delete(owners, key)
		}
	}
}

// TakeoffOwner removes every entry, in every register, owned by the given
// id, including sub-scoped entries created with OwnerKey. Used when a line
// item leaves the cart so no contribution of it survives.
func (t *OrderTotals) TakeoffOwner(owner string) {
	prefix := owner + "/"
	for _, owners := range t.entries {
		for key := range owners {
			if key == owner || strings.HasPrefix(key, prefix) {
				delete(owners, key)
			}
		}
	}
}

// Total sums the registered amounts of one register. RegisterTotal derives
// the grand total: subtotal + tax + shipping + shipping tax - discount.
// Returns zero when nothing is registered.
func (t *OrderTotals) Total(r Register) decimal.Decimal {
	if r == RegisterTotal {
		return t.sum(RegisterSubtotal).
			Add(t.sum(RegisterTax)).
			Add(t.sum(RegisterShipping)).
			Add(t.sum(RegisterShippingTax)).
			Sub(t.sum(RegisterDiscount))
	}
	return t.sum(r)
}

func (t *OrderTotals) sum(r Register) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range t.entries[r] {
		total = total.Add(amount)
	}
	return total
}

// Entries returns the current entries of a register, sorted by owner.
// Intended for snapshots and tests; mutating the result has no effect on
// the registry.
func (t *OrderTotals) Entries(r Register) []Entry {
	owners := t.entries[r]
	out := make([]Entry, 0, len(owners))
	for owner, amount := range owners {
		out = append(out, Entry{Register: r, Owner: owner, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// Totals is a point-in-time view of every named total.
type Totals struct {
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Shipping    decimal.Decimal `json:"shipping"`
	ShippingTax decimal.Decimal `json:"shipping_tax"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Snapshot derives the full set of named totals from the registry.
func (t *OrderTotals) Snapshot() Totals {
	return Totals{
		Quantity:    int(t.sum(RegisterQuantity).IntPart()),
		Subtotal:    t.sum(RegisterSubtotal),
		Tax:         t.sum(RegisterTax),
		Shipping:    t.sum(RegisterShipping),
		ShippingTax: t.sum(RegisterShippingTax),
		Discount:    t.sum(RegisterDiscount),
		Total:       t.Total(RegisterTotal),
	}
}
