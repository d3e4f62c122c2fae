package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"

	"github.com/mirante-studio/studio-api/internal/domain/coupon"
	"github.com/mirante-studio/studio-api/pkg/money"
)

// couponView is the public shape of a coupon. Usage counters and the
// enabled flag stay internal.
type couponView struct {
	ID           string   `json:"id"`
	Code         string   `json:"code"`
	DiscountType string   `json:"discount_type"`
	Value        string   `json:"value"`
	AppliesTo    []string `json:"applies_to"`
	Combinable   bool     `json:"combinable"`
}

func toCouponView(c *coupon.Coupon) couponView {
	return couponView{
		ID:           c.ID,
		Code:         c.Code,
		DiscountType: string(c.DiscountType),
		Value:        c.Value.String(),
		AppliesTo:    c.AppliesTo,
		Combinable:   c.Combinable,
	}
}

// ListActiveCoupons returns every coupon redeemable right now.
func (h *Handler) ListActiveCoupons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	all, err := h.coupons.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("Listing coupons", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "listing coupons")
		return
	}

	now := time.Now().UTC()
	views := make([]couponView, 0, len(all))
	for i := range all {
		if all[i].ActiveAt(now) {
			views = append(views, toCouponView(&all[i]))
		}
	}
	writeJSON(w, r, http.StatusOK, views)
}

// quoteItem is one cart line in a quote request. Price accepts both JSON
// numbers and localized strings like "1.234,56".
type quoteItem struct {
	ItemID      string       `json:"item_id"`
	ItemName    string       `json:"item_name"`
	ItemType    string       `json:"item_type"`
	Price       money.Amount `json:"price"`
	Quantity    int          `json:"quantity"`
	VariantName string       `json:"variant_name"`
}

type quoteRequest struct {
	Items      []quoteItem `json:"items"`
	CouponCode string      `json:"coupon_code"`
}

// itemQuote is the best available discount for one cart line.
type itemQuote struct {
	ItemID     string `json:"item_id"`
	CouponID   string `json:"coupon_id,omitempty"`
	CouponCode string `json:"coupon_code,omitempty"`
	Discount   string `json:"discount"`
	FinalPrice string `json:"final_price"`
}

type quoteResponse struct {
	Items       []itemQuote `json:"items"`
	CouponValid *bool       `json:"coupon_valid,omitempty"`
	Subtotal    string      `json:"subtotal"`
	Discount    string      `json:"discount"`
	Total       string      `json:"total"`
}

// QuoteCoupon prices a cart for the storefront. With a coupon code the
// cart discount for that coupon is computed; without one, each item gets
// the best active coupon individually. The preview is lenient: an unknown
// or inactive code quotes a zero discount instead of failing, since
// redemption is only enforced when the order is placed.
func (h *Handler) QuoteCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req quoteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, r, http.StatusBadRequest, "items required")
		return
	}

	items := make([]coupon.Item, len(req.Items))
	subtotal := decimal.Zero
	for i, it := range req.Items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		items[i] = coupon.Item{
			ID:          it.ItemID,
			Name:        it.ItemName,
			Type:        it.ItemType,
			Price:       it.Price.Decimal,
			Quantity:    qty,
			VariantName: it.VariantName,
		}
		subtotal = subtotal.Add(it.Price.Decimal.Mul(decimal.NewFromInt(int64(qty))))
	}

	now := time.Now().UTC()
	resp := quoteResponse{Subtotal: subtotal.String()}

	var cartDiscount decimal.Decimal
	if req.CouponCode != "" {
		resp.Items, cartDiscount, resp.CouponValid = h.quoteWithCode(r.Context(), req.CouponCode, items, now)
	} else {
		all, err := h.coupons.List(r.Context())
		if err != nil {
			zctx.From(r.Context()).Error("Listing coupons", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "quoting cart")
			return
		}

		resp.Items = make([]itemQuote, len(items))
		for i, it := range items {
			best, discount := coupon.BestForItem(all, it, now)
			q := itemQuote{
				ItemID:     it.ID,
				Discount:   discount.String(),
				FinalPrice: it.Price.Sub(discount).String(),
			}
			if best != nil {
				q.CouponID = best.ID
				q.CouponCode = best.Code
			}
			resp.Items[i] = q
			cartDiscount = cartDiscount.Add(discount.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}

	total := subtotal.Sub(cartDiscount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	resp.Discount = cartDiscount.String()
	resp.Total = total.String()
	writeJSON(w, r, http.StatusOK, resp)
}

// quoteWithCode evaluates one named coupon against the cart.
func (h *Handler) quoteWithCode(
	ctx context.Context, code string, items []coupon.Item, now time.Time,
) (quotes []itemQuote, discount decimal.Decimal, valid *bool) {
	ok := false
	valid = &ok

	c, err := h.coupons.FindByCode(ctx, code)
	if err != nil || !c.ActiveAt(now) {
		if err != nil && !errors.Is(err, coupon.ErrNotFound) {
			zctx.From(ctx).Warn("Looking up coupon for quote", zap.Error(err))
		}
		return itemQuotesWithout(items), decimal.Zero, valid
	}
	ok = true

	quotes = make([]itemQuote, len(items))
	for i, it := range items {
		d := coupon.Compute(c, []coupon.Item{{
			ID: it.ID, Name: it.Name, Type: it.Type,
			Price: it.Price, Quantity: 1, VariantName: it.VariantName,
		}}).Discount
		q := itemQuote{
			ItemID:     it.ID,
			Discount:   d.String(),
			FinalPrice: it.Price.Sub(d).String(),
		}
		if d.IsPositive() {
			q.CouponID = c.ID
			q.CouponCode = c.Code
		}
		quotes[i] = q
	}
	return quotes, coupon.Compute(c, items).Discount, valid
}

// itemQuotesWithout renders a cart with no discount applied.
func itemQuotesWithout(items []coupon.Item) []itemQuote {
	out := make([]itemQuote, len(items))
	for i, it := range items {
		out[i] = itemQuote{
			ItemID:     it.ID,
			Discount:   "0",
			FinalPrice: it.Price.String(),
		}
	}
	return out
}

// createCouponRequest accepts the admin shape. Validity bounds are loosely
// typed on purpose: epoch seconds, millis, and several date-string formats
// all occur in existing data.
type createCouponRequest struct {
	Code         string       `json:"code"`
	DiscountType string       `json:"discount_type"`
	Value        money.Amount `json:"value"`
	AppliesTo    []string     `json:"applies_to"`
	Combinable   bool         `json:"combinable"`
	ValidFrom    any          `json:"valid_from"`
	ValidTo      any          `json:"valid_to"`
	UsageLimit   int          `json:"usage_limit"`
	Enabled      *bool        `json:"enabled"`
}

// CreateCoupon registers a new coupon rule.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createCouponRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "coupon code is required")
		return
	}
	dt := coupon.DiscountType(req.DiscountType)
	switch dt {
	case coupon.DiscountPercentage, coupon.DiscountFixed, coupon.DiscountFull:
	default:
		writeError(w, r, http.StatusBadRequest, "unknown discount type")
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	c := &coupon.Coupon{
		ID:           uuid.NewString(),
		Code:         code,
		DiscountType: dt,
		Value:        req.Value.Decimal,
		AppliesTo:    normalizeAppliesTo(req.AppliesTo),
		Combinable:   req.Combinable,
		ValidFrom:    coupon.ParseBound(req.ValidFrom),
		ValidTo:      coupon.ParseBound(req.ValidTo),
		UsageLimit:   req.UsageLimit,
		Enabled:      enabled,
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		if errors.Is(err, coupon.ErrCodeTaken) {
			writeError(w, r, http.StatusConflict, "coupon code already in use")
			return
		}
		zctx.From(r.Context()).Error("Creating coupon", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "creating coupon")
		return
	}

	writeJSON(w, r, http.StatusCreated, toCouponView(c))
}

// normalizeAppliesTo trims and drops blank rule tokens at the boundary so
// the engine only ever sees clean rules.
func normalizeAppliesTo(rules []string) []string {
	out := make([]string, 0, len(rules))
	for _, rule := range rules {
		if t := strings.TrimSpace(rule); t != "" {
			out = append(out, t)
		}
	}
	return out
}
