// Package cart implements the shopping cart and its order-totaling core:
// an ordered, fingerprint-keyed collection of line items driving a
// registry-based totals aggregator, with cross-item stock validation and
// recurring-item exclusivity enforced at the operation boundary.
package cart

import (
	"context"
	"log/slog"
	"time"

	"github.com/mkarlsen/njord/internal/catalog"
	"github.com/mkarlsen/njord/internal/discount"
	"github.com/mkarlsen/njord/internal/events"
	"github.com/mkarlsen/njord/internal/shipping"
	"github.com/mkarlsen/njord/internal/tax"
	"github.com/mkarlsen/njord/internal/totals"
	"github.com/shopspring/decimal"
)

// Settings are the cart-level behavior toggles.
type Settings struct {
	// InventoryEnabled turns cross-item stock validation on. When false,
	// stock is never checked.
	InventoryEnabled bool

	// TaxShipping applies the tax calculator to the shipping charge.
	TaxShipping bool
}

// Config wires a cart to its collaborators. Resolver, Taxes, Shipping,
// and Discounts are required; Events and Logger default to no-ops.
type Config struct {
	SessionID string
	Settings  Settings
	Resolver  catalog.Resolver
	Taxes     tax.Calculator
	Shipping  shipping.Estimator
	Discounts *discount.Discounts
	Events    events.Sink
	Logger    *slog.Logger
}

// Cart is one session's cart. It owns its item mapping and totals
// registry exclusively and is single-writer state: the service layer
// serializes access per session, so no locking happens here.
type Cart struct {
	sessionID string
	settings  Settings

	resolver  catalog.Resolver
	taxes     tax.Calculator
	shiprates shipping.Estimator
	discounts *discount.Discounts
	events    events.Sink
	logger    *slog.Logger

	// Insertion-ordered fingerprints plus the authoritative item mapping.
	// Everything else (shipped/download/recurring views, processing
	// window, last-added pointer) is derived from these on demand.
	order []string
	items map[string]*Item

	totals *totals.OrderTotals
	added  string
}

// New creates an empty cart.
func New(cfg Config) *Cart {
	if cfg.Events == nil {
		cfg.Events = events.Discard{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Cart{
		sessionID: cfg.SessionID,
		settings:  cfg.Settings,
		resolver:  cfg.Resolver,
		taxes:     cfg.Taxes,
		shiprates: cfg.Shipping,
		discounts: cfg.Discounts,
		events:    cfg.Events,
		logger:    cfg.Logger,
		items:     make(map[string]*Item),
		totals:    totals.New(),
	}
}

// AddResult reports the outcome of an add or update.
type AddResult struct {
	Item *Item

	// QtyReduced is how many units stock validation trimmed from the
	// request. Non-zero implies LowStock.
	QtyReduced int

	// LowStock is the recoverable warning: the item stayed in the cart
	// but at a reduced quantity.
	LowStock bool
}

// AddItem resolves the selection, builds or merges a line item, registers
// its amounts, and validates stock. The operation is atomic: a hard stock
// failure rolls the cart back to its prior state.
func (c *Cart) AddItem(ctx context.Context, quantity int, productID, pricelineID int64, category string, data map[string]string, addonIDs []int64) (*AddResult, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, price, err := c.resolver.Resolve(ctx, productID, pricelineID)
	if err != nil {
		return nil, err
	}
	addons, err := c.resolver.ResolveAddons(ctx, pricelineID, addonIDs)
	if err != nil {
		return nil, err
	}

	candidate, err := NewItem(product, price, quantity, category, data, addons)
	if err != nil {
		return nil, err
	}

	if err := c.checkExclusivity(candidate); err != nil {
		return nil, err
	}

	fp := candidate.Fingerprint
	existing, merged := c.items[fp]

	var prevQuantity int
	if merged {
		// Same fingerprint is the same cart entry: increment, don't insert.
		prevQuantity = existing.Quantity
		existing.AddQuantity(quantity)
		candidate = existing
	} else {
		c.items[fp] = candidate
		c.order = append(c.order, fp)
	}

	c.attachTaxes(ctx, candidate)
	c.registerItem(candidate)

	reduced, err := c.validateStock(candidate)
	if err != nil {
		// Roll back the whole add.
		if merged {
			existing.Quantity = prevQuantity
			c.registerItem(existing)
		} else {
			c.unlinkItem(fp)
		}
		c.Recompute(ctx)
		return nil, err
	}
	if reduced > 0 {
		candidate.AddQuantity(-reduced)
		candidate.QtyReduced = reduced
		c.registerItem(candidate)
		c.logger.WarnContext(ctx, "item quantity reduced to available stock",
			slog.String("fingerprint", fp),
			slog.Int("reduced_by", reduced),
			slog.Int("quantity", candidate.Quantity))
	} else {
		candidate.QtyReduced = 0
	}

	c.added = fp
	c.Recompute(ctx)
	c.emit(ctx, events.Event{Name: events.ItemAdded, Fingerprint: fp, Payload: candidate})

	return &AddResult{Item: candidate, QtyReduced: reduced, LowStock: reduced > 0}, nil
}

// RemoveItem removes the item with the given fingerprint and takes every
// amount it registered off the totals. Removing an absent fingerprint is
// an intentional no-op.
func (c *Cart) RemoveItem(ctx context.Context, fingerprint string) {
	item, ok := c.items[fingerprint]
	if !ok {
		return
	}
	c.unlinkItem(fingerprint)
	c.Recompute(ctx)
	c.emit(ctx, events.Event{Name: events.ItemRemoved, Fingerprint: fingerprint, Payload: item})
}

// UpdateItem sets an item's quantity. Zero removes the item. The new
// quantity is stock-validated; a hard failure removes the item, a partial
// overage reduces the quantity and reports LowStock. Unknown fingerprints
// are a no-op.
func (c *Cart) UpdateItem(ctx context.Context, fingerprint string, quantity int) (*AddResult, error) {
	item, ok := c.items[fingerprint]
	if !ok {
		return nil, nil
	}
	if quantity == 0 {
		c.RemoveItem(ctx, fingerprint)
		return nil, nil
	}
	if err := item.SetQuantity(quantity); err != nil {
		return nil, err
	}

	c.attachTaxes(ctx, item)
	c.registerItem(item)

	reduced, err := c.validateStock(item)
	if err != nil {
		c.unlinkItem(fingerprint)
		c.Recompute(ctx)
		c.emit(ctx, events.Event{Name: events.ItemRemoved, Fingerprint: fingerprint, Payload: item})
		return nil, err
	}
	if reduced > 0 {
		item.AddQuantity(-reduced)
		item.QtyReduced = reduced
		c.registerItem(item)
	} else {
		item.QtyReduced = 0
	}

	c.Recompute(ctx)
	c.emit(ctx, events.Event{Name: events.CartUpdated, Fingerprint: fingerprint, Payload: item})

	return &AddResult{Item: item, QtyReduced: reduced, LowStock: reduced > 0}, nil
}

// ChangeItem swaps an item to a different product or price selection in
// place, keeping its ordinal position, quantity, category, and custom
// data, and merging its add-ons with any newly supplied ones. A no-op if
// the fingerprint is unknown or already on the requested selection.
func (c *Cart) ChangeItem(ctx context.Context, fingerprint string, productID, pricelineID int64, addonIDs []int64) (*AddResult, error) {
	old, ok := c.items[fingerprint]
	if !ok {
		return nil, nil
	}
	if old.ProductID == productID && old.PricelineID == pricelineID && len(addonIDs) == 0 {
		return nil, nil
	}

	product, price, err := c.resolver.Resolve(ctx, productID, pricelineID)
	if err != nil {
		return nil, err
	}

	mergedIDs := mergeAddonIDs(old.Addons, addonIDs)
	addons, err := c.resolver.ResolveAddons(ctx, pricelineID, mergedIDs)
	if err != nil {
		return nil, err
	}

	replacement, err := NewItem(product, price, old.Quantity, old.Category, old.Data, addons)
	if err != nil {
		return nil, err
	}
	if replacement.Fingerprint == fingerprint {
		return nil, nil
	}
	if err := c.checkExclusivityOfChange(fingerprint, replacement); err != nil {
		return nil, err
	}

	c.totals.TakeoffOwner(fingerprint)
	delete(c.items, fingerprint)

	merged := false
	oldSlot := -1
	if existing, collides := c.items[replacement.Fingerprint]; collides {
		// The new selection already sits in the cart: fold quantities into
		// that entry and drop the old slot. The fresh resolve carries the
		// current stock level.
		existing.Stock = replacement.Stock
		existing.AddQuantity(replacement.Quantity)
		oldSlot = c.orderIndex(fingerprint)
		c.dropFromOrder(fingerprint)
		merged = true
		replacement = existing
	} else {
		c.items[replacement.Fingerprint] = replacement
		c.replaceInOrder(fingerprint, replacement.Fingerprint)
	}

	c.attachTaxes(ctx, replacement)
	c.registerItem(replacement)

	reduced, err := c.validateStock(replacement)
	if err != nil {
		// Restore the original item so the failed change leaves no trace.
		if merged {
			replacement.AddQuantity(-old.Quantity)
			c.registerItem(replacement)
			c.items[old.Fingerprint] = old
			c.insertInOrder(oldSlot, old.Fingerprint)
		} else {
			c.totals.TakeoffOwner(replacement.Fingerprint)
			delete(c.items, replacement.Fingerprint)
			c.items[old.Fingerprint] = old
			c.replaceInOrder(replacement.Fingerprint, old.Fingerprint)
		}
		c.registerItem(old)
		c.Recompute(ctx)
		return nil, err
	}
	if reduced > 0 {
		replacement.AddQuantity(-reduced)
		replacement.QtyReduced = reduced
		c.registerItem(replacement)
	} else {
		replacement.QtyReduced = 0
	}

	c.Recompute(ctx)
	c.emit(ctx, events.Event{Name: events.CartUpdated, Fingerprint: replacement.Fingerprint, Payload: replacement})

	return &AddResult{Item: replacement, QtyReduced: reduced, LowStock: reduced > 0}, nil
}

// Clear empties the cart and resets the totals to a fresh aggregator.
func (c *Cart) Clear(ctx context.Context) {
	c.order = nil
	c.items = make(map[string]*Item)
	c.totals = totals.New()
	c.added = ""
	c.Recompute(ctx)
	c.emit(ctx, events.Event{Name: events.CartCleared})
}

// Recompute re-derives the cart-level registers (shipping, shipping tax,
// discount) from the collaborators and returns the refreshed totals.
// Idempotent: with no registry changes, repeated calls yield the same
// snapshot. A failing collaborator defaults its component to zero rather
// than failing the pass.
func (c *Cart) Recompute(ctx context.Context) totals.Totals {
	subtotal := c.totals.Total(totals.RegisterSubtotal)

	shippables := make([]shipping.ShippableItem, 0, len(c.order))
	for _, fp := range c.order {
		if item := c.items[fp]; item.Shippable() {
			shippables = append(shippables, shipping.ShippableItem{
				Fingerprint: item.Fingerprint,
				Quantity:    item.Quantity,
			})
		}
	}
	c.shiprates.Track(shipping.DimItems, shippables)
	c.shiprates.Track(shipping.DimSubtotal, subtotal)

	shipcost, err := c.shiprates.Calculate(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "shipping estimate unavailable, defaulting to zero",
			slog.String("error", err.Error()))
		shipcost = decimal.Zero
	}
	if c.shiprates.Free() {
		shipcost = decimal.Zero
	}
	c.totals.Register(totals.Entry{Register: totals.RegisterShipping, Owner: totals.CartOwner, Amount: shipcost})

	shiptax := decimal.Zero
	if c.settings.TaxShipping && shipcost.IsPositive() {
		shiptax, err = c.taxes.ShippingTax(ctx, shipcost)
		if err != nil {
			c.logger.WarnContext(ctx, "shipping tax unavailable, defaulting to zero",
				slog.String("error", err.Error()))
			shiptax = decimal.Zero
		}
	}
	c.totals.Register(totals.Entry{Register: totals.RegisterShippingTax, Owner: totals.CartOwner, Amount: shiptax})

	disc := decimal.Zero
	if c.discounts != nil {
		disc = c.discounts.Amount(ctx, subtotal)
	}
	c.totals.Register(totals.Entry{Register: totals.RegisterDiscount, Owner: totals.CartOwner, Amount: disc})

	return c.totals.Snapshot()
}

// ApplyDiscount redeems a promo code and retotals.
func (c *Cart) ApplyDiscount(ctx context.Context, code string) error {
	if c.discounts == nil {
		return discount.ErrCodeNotFound
	}
	if err := c.discounts.Apply(code); err != nil {
		return err
	}
	c.Recompute(ctx)
	c.emit(ctx, events.Event{Name: events.CartUpdated})
	return nil
}

// RemoveDiscount drops an applied promo code and retotals. No-op when
// the code is not applied.
func (c *Cart) RemoveDiscount(ctx context.Context, code string) {
	if c.discounts == nil {
		return
	}
	c.discounts.Remove(code)
	c.Recompute(ctx)
	c.emit(ctx, events.Event{Name: events.CartUpdated})
}

// IsOrderFree reports whether the cart holds items yet owes nothing.
func (c *Cart) IsOrderFree() bool {
	return len(c.items) > 0 && c.totals.Total(totals.RegisterTotal).IsZero()
}

// Count returns the number of distinct line items.
func (c *Cart) Count() int {
	return len(c.items)
}

// Item returns the line item for a fingerprint, or nil.
func (c *Cart) Item(fingerprint string) *Item {
	return c.items[fingerprint]
}

// Items returns the line items in insertion order.
func (c *Cart) Items() []*Item {
	out := make([]*Item, 0, len(c.order))
	for _, fp := range c.order {
		out = append(out, c.items[fp])
	}
	return out
}

// LastAdded returns the most recently added item, or nil. Transient
// state, re-derivable and never persisted.
func (c *Cart) LastAdded() *Item {
	if c.added == "" {
		return nil
	}
	return c.items[c.added]
}

// Shipped returns the items needing physical shipping, in cart order.
func (c *Cart) Shipped() []*Item {
	return c.filter(func(i *Item) bool { return i.Shippable() })
}

// Downloads returns the downloadable items, in cart order.
func (c *Cart) Downloads() []*Item {
	return c.filter(func(i *Item) bool { return i.Download })
}

// Recurring returns the recurring (subscription) items, in cart order.
func (c *Cart) Recurring() []*Item {
	return c.filter(func(i *Item) bool { return i.Recurring })
}

func (c *Cart) filter(keep func(*Item) bool) []*Item {
	var out []*Item
	for _, fp := range c.order {
		if item := c.items[fp]; keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Processing folds each shipped item's lead-time range into the order's
// processing window.
func (c *Cart) Processing() DayRange {
	var window DayRange
	for _, item := range c.Shipped() {
		window = window.Merge(item.Processing)
	}
	return window
}

// Totals returns the current totals snapshot without recomputing
// cart-level registers.
func (c *Cart) Totals() totals.Totals {
	return c.totals.Snapshot()
}

// Snapshot is the read-only view handed to presentation layers. Items,
// processing window, and promo codes are derived from authoritative
// state on each call.
type Snapshot struct {
	Items      []*Item       `json:"items"`
	Totals     totals.Totals `json:"totals"`
	Processing DayRange      `json:"processing"`
	PromoCodes []string      `json:"promo_codes,omitempty"`
	LastAdded  string        `json:"last_added,omitempty"`
	OrderFree  bool          `json:"order_free"`
}

// Snapshot builds the read-only cart view.
func (c *Cart) Snapshot() Snapshot {
	var codes []string
	if c.discounts != nil {
		codes = c.discounts.Codes()
	}
	return Snapshot{
		Items:      c.Items(),
		Totals:     c.totals.Snapshot(),
		Processing: c.Processing(),
		PromoCodes: codes,
		LastAdded:  c.added,
		OrderFree:  c.IsOrderFree(),
	}
}

// checkExclusivity enforces the recurring-purchase rule for adds: a
// recurring item (a subscription product, or any priceline billed on a
// schedule) must be the sole cart content, in both directions. Merging
// more quantity into the lone recurring entry is allowed.
func (c *Cart) checkExclusivity(candidate *Item) error {
	if len(c.items) == 0 {
		return nil
	}
	_, sameEntry := c.items[candidate.Fingerprint]
	if candidate.Recurring {
		if sameEntry && len(c.items) == 1 {
			return nil
		}
		return ErrExclusive
	}
	for _, item := range c.items {
		if item.Recurring {
			return ErrExclusive
		}
	}
	return nil
}

// checkExclusivityOfChange enforces the recurring-purchase rule when an
// item is swapped in place, ignoring the slot being replaced.
func (c *Cart) checkExclusivityOfChange(replacing string, candidate *Item) error {
	rest := 0
	for fp, item := range c.items {
		if fp == replacing {
			continue
		}
		rest++
		if item.Recurring {
			return ErrExclusive
		}
	}
	if candidate.Recurring && rest > 0 {
		return ErrExclusive
	}
	return nil
}

// registerItem (re)registers the item's quantity, subtotal, and per-rate
// tax amounts. Registration is keyed by owner, so repeated calls after a
// quantity change overwrite rather than accumulate.
func (c *Cart) registerItem(item *Item) {
	fp := item.Fingerprint
	qty := decimal.NewFromInt(int64(item.Quantity))

	c.totals.Register(totals.Entry{Register: totals.RegisterQuantity, Owner: fp, Amount: qty})
	c.totals.Register(totals.Entry{Register: totals.RegisterSubtotal, Owner: fp, Amount: item.Subtotal()})

	// Per-rate tax entries are sub-scoped under the item so TakeoffOwner
	// unlinks them with everything else the item registered. Stale rate
	// labels are cleared first.
	c.totals.TakeoffOwnerRegister(totals.RegisterTax, fp)
	for label, perUnit := range item.Taxes {
		c.totals.Register(totals.Entry{
			Register: totals.RegisterTax,
			Owner:    totals.OwnerKey(fp, label),
			Amount:   perUnit.Mul(qty),
		})
	}
}

// unlinkItem removes the item and every amount it registered.
func (c *Cart) unlinkItem(fingerprint string) {
	c.totals.TakeoffOwner(fingerprint)
	delete(c.items, fingerprint)
	c.dropFromOrder(fingerprint)
	if c.added == fingerprint {
		c.added = ""
	}
}

func (c *Cart) dropFromOrder(fingerprint string) {
	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

func (c *Cart) orderIndex(fingerprint string) int {
	for i, fp := range c.order {
		if fp == fingerprint {
			return i
		}
	}
	return -1
}

// insertInOrder puts a fingerprint back at a former slot. Out-of-range
// slots append.
func (c *Cart) insertInOrder(i int, fingerprint string) {
	if i < 0 || i >= len(c.order) {
		c.order = append(c.order, fingerprint)
		return
	}
	c.order = append(c.order[:i], append([]string{fingerprint}, c.order[i:]...)...)
}

func (c *Cart) replaceInOrder(oldFP, newFP string) {
	for i, fp := range c.order {
		if fp == oldFP {
			c.order[i] = newFP
			return
		}
	}
	c.order = append(c.order, newFP)
}

// attachTaxes asks the calculator for the item's per-unit tax amounts.
// A failing calculator leaves the item untaxed rather than failing the
// operation.
func (c *Cart) attachTaxes(ctx context.Context, item *Item) {
	rates, err := c.taxes.ItemTaxes(ctx, tax.Taxable{
		UnitPrice: item.UnitPrice,
		TaxClass:  item.TaxClass,
		Quantity:  item.Quantity,
		Shipped:   item.Shipped,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "item tax unavailable, defaulting to zero",
			slog.String("fingerprint", item.Fingerprint),
			slog.String("error", err.Error()))
		item.Taxes = nil
		return
	}
	taxes := make(map[string]decimal.Decimal, len(rates))
	for _, r := range rates {
		taxes[r.Label] = r.Amount
	}
	item.Taxes = taxes
}

// emit sends a cart event; failures are logged, never surfaced.
func (c *Cart) emit(ctx context.Context, e events.Event) {
	e.SessionID = c.sessionID
	e.OccurredAt = time.Now().UTC()
	if err := c.events.Emit(ctx, e); err != nil {
		c.logger.WarnContext(ctx, "event emission failed",
			slog.String("event", e.Name),
			slog.String("error", err.Error()))
	}
}

func mergeAddonIDs(existing []Addon, extra []int64) []int64 {
	out := make([]int64, 0, len(existing)+len(extra))
	seen := make(map[int64]bool, len(existing)+len(extra))
	for _, a := range existing {
		if !seen[a.ID] {
			seen[a.ID] = true
			out = append(out, a.ID)
		}
	}
	for _, id := range extra {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
