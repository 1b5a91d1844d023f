package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mkarlsen/njord/internal/catalog"
	"github.com/shopspring/decimal"
)

// DayRange is a fulfillment lead-time window in days. A zero bound means
// no constraint.
type DayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Merge folds another range into this one. Unset bounds never tighten
// the merged window.
func (r DayRange) Merge(other DayRange) DayRange {
	out := r
	if other.Min != 0 && (out.Min == 0 || other.Min < out.Min) {
		out.Min = other.Min
	}
	if other.Max != 0 && (out.Max == 0 || other.Max > out.Max) {
		out.Max = other.Max
	}
	return out
}

// Addon is an add-on selection carried by a line item. Its price is
// folded into the item's effective unit price.
type Addon struct {
	ID    int64           `json:"id"`
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

// Item is one cart line: an immutable-identity, mutable-quantity record
// for a product and price selection plus custom data and add-ons.
//
// Identity is the Fingerprint, a deterministic hash over the
// identity-bearing fields. Quantity, taxes, and stock bookkeeping are
// mutable and excluded from it.
type Item struct {
	Fingerprint string `json:"fingerprint"`

	ProductID   int64               `json:"product_id"`
	PricelineID int64               `json:"priceline_id"`
	Name        string              `json:"name"`
	Option      string              `json:"option,omitempty"`
	Type        catalog.ProductType `json:"type"`

	Quantity  int               `json:"quantity"`
	UnitPrice decimal.Decimal   `json:"unit_price"` // includes add-on prices
	Category  string            `json:"category,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	Addons    []Addon           `json:"addons,omitempty"`

	// Taxes maps a rate label to the per-unit tax amount. Attached by the
	// cart from the tax calculator at creation and update time.
	Taxes map[string]decimal.Decimal `json:"taxes,omitempty"`

	TaxClass string `json:"-"`

	Shipped   bool `json:"shipped"`
	Download  bool `json:"download"`
	Recurring bool `json:"recurring"`

	// Inventory tracking. Stock is the priceline's available units at the
	// time the item was resolved; only meaningful when Inventory is true.
	Inventory bool `json:"-"`
	Stock     int  `json:"-"`

	Processing DayRange `json:"processing"`

	// QtyReduced records how much stock validation trimmed the requested
	// quantity on the last mutation. Transient, never persisted.
	QtyReduced int `json:"-"`
}

// NewItem builds a line item from resolved catalog records. Fails when
// the product or priceline is missing, the quantity is negative, or a
// zero-priced selection is requested with zero quantity.
func NewItem(product *catalog.Product, price *catalog.Priceline, quantity int, category string, data map[string]string, addons []catalog.Addon) (*Item, error) {
	if product == nil || price == nil {
		return nil, ErrInvalidItem
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if quantity == 0 && price.EffectivePrice().IsZero() {
		return nil, ErrInvalidItem
	}

	unit := price.EffectivePrice()
	selected := make([]Addon, 0, len(addons))
	for _, a := range addons {
		unit = unit.Add(a.Price)
		selected = append(selected, Addon{ID: a.ID, Label: a.Label, Price: a.Price})
	}

	item := &Item{
		ProductID:   product.ID,
		PricelineID: price.ID,
		Name:        product.Name,
		Option:      price.Label,
		Type:        product.Type,
		Quantity:    quantity,
		UnitPrice:   unit,
		Category:    category,
		Data:        data,
		Addons:      selected,
		TaxClass:    price.TaxClass,
		Shipped:     price.Shipped,
		Download:    price.Download,
		Recurring:   price.Recurring || product.Type == catalog.TypeSubscription,
		Inventory:   price.Inventory,
		Stock:       price.Stock,
		Processing:  DayRange{Min: price.ProcessingMin, Max: price.ProcessingMax},
	}
	item.Fingerprint = item.fingerprint()
	return item, nil
}

// fingerprint hashes the identity-bearing fields: product, priceline,
// custom data, and add-on selections. Quantity and display fields are
// excluded so the hash is stable across quantity changes and restarts.
func (i *Item) fingerprint() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(i.ProductID, 10))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(i.PricelineID, 10))

	if len(i.Data) > 0 {
		keys := make([]string, 0, len(i.Data))
		for k := range i.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "|%s=%s", k, i.Data[k])
		}
	}

	for _, a := range i.Addons {
		fmt.Fprintf(&b, "|+%d", a.ID)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// SetQuantity sets the item quantity. Zero signals the caller to remove
// the item; negative quantities are rejected.
func (i *Item) SetQuantity(n int) error {
	if n < 0 {
		return ErrInvalidQuantity
	}
	i.Quantity = n
	return nil
}

// AddQuantity increments the quantity, never below zero.
func (i *Item) AddQuantity(delta int) {
	i.Quantity += delta
	if i.Quantity < 0 {
		i.Quantity = 0
	}
}

// Subtotal is the item's line total before tax.
func (i *Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TaxTotal is the item's line tax across all attached rates.
func (i *Item) TaxTotal() decimal.Decimal {
	total := decimal.Zero
	qty := decimal.NewFromInt(int64(i.Quantity))
	for _, perUnit := range i.Taxes {
		total = total.Add(perUnit.Mul(qty))
	}
	return total
}

// Shippable reports whether the item needs physical shipping.
func (i *Item) Shippable() bool {
	return i.Shipped && !i.Download
}
