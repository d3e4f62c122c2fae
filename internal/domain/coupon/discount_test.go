package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCompute(t *testing.T) {
	prewedding := Item{ID: "prewedding-classic", Type: "prewedding", Price: dec("300"), Quantity: 1}
	album := Item{ID: "album-30x30", Type: "store", Price: dec("50"), Quantity: 1}

	tests := []struct {
		name         string
		coupon       Coupon
		items        []Item
		wantDiscount string
		wantEligible string
	}{
		{
			name:         "percentage over full cart",
			coupon:       Coupon{DiscountType: DiscountPercentage, Value: dec("10")},
			items:        []Item{prewedding, album},
			wantDiscount: "35",
			wantEligible: "350",
		},
		{
			name:         "percentage above 100 clamps to 100",
			coupon:       Coupon{DiscountType: DiscountPercentage, Value: dec("150")},
			items:        []Item{{ID: "x", Price: dec("200"), Quantity: 1}},
			wantDiscount: "200",
			wantEligible: "200",
		},
		{
			name:         "negative percentage clamps to zero",
			coupon:       Coupon{DiscountType: DiscountPercentage, Value: dec("-10")},
			items:        []Item{{ID: "x", Price: dec("200"), Quantity: 1}},
			wantDiscount: "0",
			wantEligible: "200",
		},
		{
			name:         "percentage rounds half-up to whole units",
			coupon:       Coupon{DiscountType: DiscountPercentage, Value: dec("15")},
			items:        []Item{{ID: "x", Price: dec("30"), Quantity: 1}},
			wantDiscount: "5", // 4.50 rounds up
			wantEligible: "30",
		},
		{
			name:         "fixed capped at eligible subtotal",
			coupon:       Coupon{DiscountType: DiscountFixed, Value: dec("500")},
			items:        []Item{{ID: "x", Price: dec("120"), Quantity: 1}},
			wantDiscount: "120",
			wantEligible: "120",
		},
		{
			name:         "fixed below subtotal applies as-is",
			coupon:       Coupon{DiscountType: DiscountFixed, Value: dec("30")},
			items:        []Item{{ID: "x", Price: dec("120"), Quantity: 1}},
			wantDiscount: "30",
			wantEligible: "120",
		},
		{
			name:         "negative fixed clamps to zero",
			coupon:       Coupon{DiscountType: DiscountFixed, Value: dec("-5")},
			items:        []Item{{ID: "x", Price: dec("120"), Quantity: 1}},
			wantDiscount: "0",
			wantEligible: "120",
		},
		{
			name:         "full waives only eligible items",
			coupon:       Coupon{DiscountType: DiscountFull, AppliesTo: []string{"prewedding"}},
			items:        []Item{prewedding, album},
			wantDiscount: "300",
			wantEligible: "300",
		},
		{
			name:         "quantity multiplies the line",
			coupon:       Coupon{DiscountType: DiscountPercentage, Value: dec("10")},
			items:        []Item{{ID: "x", Price: dec("100"), Quantity: 3}},
			wantDiscount: "30",
			wantEligible: "300",
		},
		{
			name:         "missing quantity counts as one",
			coupon:       Coupon{DiscountType: DiscountPercentage, Value: dec("10")},
			items:        []Item{{ID: "x", Price: dec("100")}},
			wantDiscount: "10",
			wantEligible: "100",
		},
		{
			name:         "no eligible items yields zero",
			coupon:       Coupon{DiscountType: DiscountFull, AppliesTo: []string{"maternity"}},
			items:        []Item{album},
			wantDiscount: "0",
			wantEligible: "0",
		},
		{
			name:         "zero subtotal short-circuits",
			coupon:       Coupon{DiscountType: DiscountFixed, Value: dec("50")},
			items:        []Item{{ID: "x", Price: decimal.Zero, Quantity: 1}},
			wantDiscount: "0",
			wantEligible: "0",
		},
		{
			name:         "unknown discount type fails safe",
			coupon:       Coupon{DiscountType: "bogus", Value: dec("50")},
			items:        []Item{{ID: "x", Price: dec("120"), Quantity: 1}},
			wantDiscount: "0",
			wantEligible: "120",
		},
		{
			name:         "empty cart",
			coupon:       Coupon{DiscountType: DiscountPercentage, Value: dec("10")},
			items:        nil,
			wantDiscount: "0",
			wantEligible: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(&tt.coupon, tt.items)

			assert.True(t, dec(tt.wantDiscount).Equal(got.Discount),
				"discount = %s, want %s", got.Discount, tt.wantDiscount)
			assert.True(t, dec(tt.wantEligible).Equal(got.EligibleSubtotal),
				"eligible = %s, want %s", got.EligibleSubtotal, tt.wantEligible)
		})
	}
}

func TestBestForItem(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	item := Item{ID: "portrait-studio", Type: "portrait", Price: dec("200"), Quantity: 4}

	t.Run("picks greatest discount among active applicable coupons", func(t *testing.T) {
		coupons := []Coupon{
			{ID: "a", Code: "TEN", DiscountType: DiscountPercentage, Value: dec("10"), Enabled: true},
			{ID: "b", Code: "HALF", DiscountType: DiscountPercentage, Value: dec("50"), Enabled: true},
			{ID: "c", Code: "FIVE", DiscountType: DiscountFixed, Value: dec("5"), Enabled: true},
		}

		best, disc := BestForItem(coupons, item, now)
		require.NotNil(t, best)
		assert.Equal(t, "b", best.ID)
		// Quantity is forced to 1: 50% of 200, not of 800.
		assert.True(t, dec("100").Equal(disc), "discount = %s", disc)
	})

	t.Run("inactive coupons are skipped", func(t *testing.T) {
		coupons := []Coupon{
			{ID: "a", DiscountType: DiscountPercentage, Value: dec("50"), Enabled: false},
			{ID: "b", DiscountType: DiscountPercentage, Value: dec("10"), Enabled: true},
		}

		best, disc := BestForItem(coupons, item, now)
		require.NotNil(t, best)
		assert.Equal(t, "b", best.ID)
		assert.True(t, dec("20").Equal(disc))
	})

	t.Run("inapplicable coupons are skipped", func(t *testing.T) {
		coupons := []Coupon{
			{ID: "a", DiscountType: DiscountFull, AppliesTo: []string{"store"}, Enabled: true},
		}

		best, disc := BestForItem(coupons, item, now)
		assert.Nil(t, best)
		assert.True(t, disc.IsZero())
	})

	t.Run("equal discounts break ties on smallest id", func(t *testing.T) {
		coupons := []Coupon{
			{ID: "z", DiscountType: DiscountPercentage, Value: dec("20"), Enabled: true},
			{ID: "m", DiscountType: DiscountPercentage, Value: dec("20"), Enabled: true},
			{ID: "q", DiscountType: DiscountPercentage, Value: dec("20"), Enabled: true},
		}

		best, _ := BestForItem(coupons, item, now)
		require.NotNil(t, best)
		assert.Equal(t, "m", best.ID)
	})

	t.Run("zero discount never wins", func(t *testing.T) {
		coupons := []Coupon{
			{ID: "a", DiscountType: DiscountPercentage, Value: dec("0"), Enabled: true},
		}

		best, disc := BestForItem(coupons, item, now)
		assert.Nil(t, best)
		assert.True(t, disc.IsZero())
	})

	t.Run("no coupons", func(t *testing.T) {
		best, disc := BestForItem(nil, item, now)
		assert.Nil(t, best)
		assert.True(t, disc.IsZero())
	})
}
