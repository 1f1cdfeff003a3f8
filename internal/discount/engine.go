package discount

import (
	"errors"
	"time"
)

var (
	// ErrNotEligible is returned when the code does not match any usable definition.
	ErrNotEligible = errors.New("discount not eligible")
	// ErrInactive is returned when the definition is disabled or its window has not opened.
	ErrInactive = errors.New("discount not active")
	// ErrExpired is returned when the definition's window has closed.
	ErrExpired = errors.New("discount expired")
	// ErrUsageLimitReached indicates the definition exhausted its global quota.
	ErrUsageLimitReached = errors.New("discount usage limit reached")
	// ErrMinimumPurchaseUnmet indicates the cart subtotal did not meet the requirement.
	ErrMinimumPurchaseUnmet = errors.New("discount minimum purchase not met")
)

// Discount kinds.
const (
	KindPercentage = "percentage"
	KindFixed      = "fixed"
	KindBuyXGetY   = "buy_x_get_y"
)

// Rule captures the runtime constraints of a discount definition. Amounts are
// minor currency units, percentages basis points.
type Rule struct {
	Code        string
	Kind        string
	Value       int64
	PercentBps  *int32
	BuyQty      int32
	GetQty      int32
	MinPurchase *int64
	MaxDiscount *int64
	StartsAt    time.Time
	EndsAt      time.Time
	Active      bool
	UsageLimit  *int32
	UsedCount   int32
}

// Item represents a cart line eligible for discount calculation.
type Item struct {
	Qty       int32
	UnitPrice int64
}

// Validate ensures the rule can be applied at the provided instant and cart
// subtotal. Eligibility checks run before the minimum-purchase check so the
// caller can distinguish a dead code from a too-small cart.
func (r Rule) Validate(now time.Time, subtotal int64) error {
	if !r.Active {
		return ErrInactive
	}
	if now.Before(r.StartsAt) {
		return ErrInactive
	}
	if now.After(r.EndsAt) {
		return ErrExpired
	}
	if r.UsageLimit != nil && *r.UsageLimit >= 0 && r.UsedCount >= *r.UsageLimit {
		return ErrUsageLimitReached
	}
	if r.MinPurchase != nil && subtotal < *r.MinPurchase {
		return ErrMinimumPurchaseUnmet
	}
	return nil
}

// Compute determines the discount amount for the cart. The result is always
// within [0, subtotal].
func Compute(r Rule, subtotal int64, items []Item) int64 {
	if subtotal <= 0 {
		return 0
	}
	var discount int64
	switch r.Kind {
	case KindPercentage:
		if r.PercentBps == nil || *r.PercentBps <= 0 {
			return 0
		}
		discount = (subtotal * int64(*r.PercentBps)) / 10000
		if r.MaxDiscount != nil && discount > *r.MaxDiscount {
			discount = *r.MaxDiscount
		}
	case KindFixed:
		discount = r.Value
	case KindBuyXGetY:
		discount = computeBuyXGetY(r, items)
	default:
		return 0
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// computeBuyXGetY grants GetQty free units per complete group of
// BuyQty+GetQty units on each line, priced at that line's unit price.
func computeBuyXGetY(r Rule, items []Item) int64 {
	if r.BuyQty <= 0 || r.GetQty <= 0 {
		return 0
	}
	group := r.BuyQty + r.GetQty
	var discount int64
	for _, it := range items {
		if it.Qty < group || it.UnitPrice <= 0 {
			continue
		}
		free := (it.Qty / group) * r.GetQty
		discount += int64(free) * it.UnitPrice
	}
	return discount
}
