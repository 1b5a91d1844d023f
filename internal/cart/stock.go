package cart

// validateStock runs cross-item stock validation for the item under
// mutation. Distinct line items (same variant, different custom data)
// can draw on the same inventory unit, so demand is aggregated per
// priceline across every inventory-tracked item in the cart, the
// candidate included.
//
// Outcomes:
//   - nothing tracked, or combined demand within stock: (0, nil)
//   - overage smaller than the item's quantity: (overage, nil) and the
//     caller reduces the quantity, keeping the item (low stock)
//   - overage at or above the item's quantity: (0, ErrOutOfStock) and
//     the caller rolls the mutation back
func (c *Cart) validateStock(item *Item) (int, error) {
	if !c.settings.InventoryEnabled || !item.Inventory {
		return 0, nil
	}

	stock := 0
	ordered := 0
	tracked := false
	for _, fp := range c.order {
		other := c.items[fp]
		if !other.Inventory || other.PricelineID != item.PricelineID {
			continue
		}
		tracked = true
		stock = other.Stock
		ordered += other.Quantity
	}
	if !tracked {
		return 0, nil
	}

	overage := ordered - stock
	if overage < 1 {
		return 0, nil
	}
	if overage < item.Quantity {
		return overage, nil
	}
	return 0, ErrOutOfStock
}
