package pricing

import "testing"

func TestComputeTwoItemsWithTax(t *testing.T) {
	// 2 x 2.99 at 8% tax: subtotal 5.98, tax 0.4784 rounds to 0.48, total 6.46.
	items := []Item{{Qty: 2, UnitPrice: 299}}
	got := Compute(items, 0, 800)
	if got.Subtotal != 598 {
		t.Fatalf("subtotal = %d, want 598", got.Subtotal)
	}
	if got.Tax != 48 {
		t.Fatalf("tax = %d, want 48", got.Tax)
	}
	if got.Total != 646 {
		t.Fatalf("total = %d, want 646", got.Total)
	}
}

func TestComputePercentageDiscountFlow(t *testing.T) {
	// subtotal 100.00, discount 10.00, 8% tax on 90.00 = 7.20, total 97.20.
	items := []Item{{Qty: 4, UnitPrice: 2500}}
	got := Compute(items, 1000, 800)
	if got.Subtotal != 10000 || got.Discount != 1000 {
		t.Fatalf("subtotal/discount = %d/%d, want 10000/1000", got.Subtotal, got.Discount)
	}
	if got.Tax != 720 {
		t.Fatalf("tax = %d, want 720", got.Tax)
	}
	if got.Total != 9720 {
		t.Fatalf("total = %d, want 9720", got.Total)
	}
}

func TestComputeDiscountClampsAtSubtotal(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 500}}
	got := Compute(items, 900, 800)
	if got.Discount != 500 {
		t.Fatalf("discount = %d, want clamp at 500", got.Discount)
	}
	if got.Tax != 0 || got.Total != 0 {
		t.Fatalf("tax/total = %d/%d, want 0/0", got.Tax, got.Total)
	}
}

func TestComputeOrderIndependent(t *testing.T) {
	a := []Item{{Qty: 2, UnitPrice: 299}, {Qty: 1, UnitPrice: 1250}, {Qty: 3, UnitPrice: 75}}
	b := []Item{{Qty: 3, UnitPrice: 75}, {Qty: 2, UnitPrice: 299}, {Qty: 1, UnitPrice: 1250}}
	if Compute(a, 100, 800) != Compute(b, 100, 800) {
		t.Fatal("summary should not depend on line order")
	}
}

func TestComputeIdempotent(t *testing.T) {
	items := []Item{{Qty: 7, UnitPrice: 333}}
	first := Compute(items, 250, 825)
	second := Compute(items, 250, 825)
	if first != second {
		t.Fatalf("identical inputs produced %+v then %+v", first, second)
	}
}

func TestComputeIgnoresNonPositiveQty(t *testing.T) {
	items := []Item{{Qty: 0, UnitPrice: 10000}, {Qty: -3, UnitPrice: 10000}, {Qty: 1, UnitPrice: 100}}
	got := Compute(items, 0, 0)
	if got.Subtotal != 100 {
		t.Fatalf("subtotal = %d, want 100", got.Subtotal)
	}
}

func TestComputeNegativeDiscountTreatedAsZero(t *testing.T) {
	got := Compute([]Item{{Qty: 1, UnitPrice: 100}}, -50, 0)
	if got.Discount != 0 || got.Total != 100 {
		t.Fatalf("discount/total = %d/%d, want 0/100", got.Discount, got.Total)
	}
}
