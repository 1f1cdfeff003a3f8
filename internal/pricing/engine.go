package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Total    Money
}

// Compute calculates register totals in a fixed order: subtotal, discount
// clamp, tax on the discounted subtotal, total. Tax is rounded half up to the
// nearest minor unit. Pure function: identical inputs always yield identical
// output.
func Compute(items []Item, discount Money, taxBps int) Summary {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	taxable := subtotal - discount
	var tax Money
	if taxBps > 0 {
		tax = (taxable*Money(taxBps) + 5000) / 10000
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    taxable + tax,
	}
}
