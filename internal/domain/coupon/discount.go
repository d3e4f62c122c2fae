package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CartDiscount is the result of evaluating one coupon against a cart.
type CartDiscount struct {
	// Discount is the amount subtracted from the cart total.
	Discount decimal.Decimal
	// EligibleSubtotal is the sum of price*quantity over the items the
	// coupon's rules matched. The discount never exceeds it.
	EligibleSubtotal decimal.Decimal
}

// Compute evaluates the coupon's discount over the cart.
//
// Only eligible items contribute: a "full" coupon scoped to prewedding
// waives the prewedding items, not the whole cart. Percentage values are
// clamped to [0,100] and the result rounded half-up to whole currency
// units; fixed values are clamped at zero and capped at the eligible
// subtotal. An unrecognized discount type yields zero.
func Compute(c *Coupon, items []Item) CartDiscount {
	eligible := decimal.Zero
	for _, it := range items {
		if !Applies(c.AppliesTo, it) {
			continue
		}
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		eligible = eligible.Add(it.Price.Mul(decimal.NewFromInt(int64(qty))))
	}

	if !eligible.IsPositive() {
		return CartDiscount{Discount: decimal.Zero, EligibleSubtotal: eligible}
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountFull:
		discount = eligible
	case DiscountPercentage:
		rate := clamp(c.Value, decimal.Zero, hundred)
		// Round is half-away-from-zero, i.e. half-up for the non-negative
		// amounts produced here.
		discount = eligible.Mul(rate).Div(hundred).Round(0)
	case DiscountFixed:
		value := c.Value
		if value.IsNegative() {
			value = decimal.Zero
		}
		discount = decimal.Min(value, eligible)
	default:
		discount = decimal.Zero
	}

	return CartDiscount{Discount: discount, EligibleSubtotal: eligible}
}

// BestForItem picks the active coupon giving the single item the greatest
// discount. The item is evaluated with quantity forced to 1.
//
// Only a strictly greater discount displaces the current best; a coupon
// yielding zero never wins. Equal discounts break ties on the lexically
// smallest coupon ID so the result does not depend on input order.
func BestForItem(coupons []Coupon, it Item, now time.Time) (*Coupon, decimal.Decimal) {
	it.Quantity = 1

	var (
		best     *Coupon
		bestDisc = decimal.Zero
	)
	for i := range coupons {
		c := &coupons[i]
		if !c.ActiveAt(now) || !Applies(c.AppliesTo, it) {
			continue
		}

		d := Compute(c, []Item{it}).Discount
		switch {
		case d.GreaterThan(bestDisc):
			best, bestDisc = c, d
		case best != nil && d.Equal(bestDisc) && c.ID < best.ID:
			best = c
		}
	}
	return best, bestDisc
}

func clamp(d, lo, hi decimal.Decimal) decimal.Decimal {
	if d.LessThan(lo) {
		return lo
	}
	if d.GreaterThan(hi) {
		return hi
	}
	return d
}
