package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mirante-studio/studio-api/internal/domain/coupon"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems    = errors.New("items required")
	ErrNotFound      = errors.New("order not found")
	ErrCouponInvalid = errors.New("coupon is not valid for this order")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.ItemID)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerName  string
	CustomerEmail string
	Items         []Item
	CouponCode    string
}

// Service encapsulates order placement business logic.
type Service struct {
	coupons coupon.Repository
	orders  Repository
	now     func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(coupons coupon.Repository, orders Repository) *Service {
	return &Service{
		coupons: coupons,
		orders:  orders,
		now:     time.Now,
	}
}

// PlaceOrder validates the cart, applies the coupon when a code is given,
// persists the order in pending payment status, and consumes one coupon
// use. Unlike the storefront preview, redemption is strict: an unknown or
// inactive code rejects the order instead of silently charging full price.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	subtotal := decimal.Zero
	couponItems := make([]coupon.Item, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ItemID: it.ItemID}
		}
		couponItems[i] = coupon.Item{
			ID:          it.ItemID,
			Name:        it.Name,
			Type:        it.Type,
			Price:       it.Price,
			Quantity:    it.Quantity,
			VariantName: it.VariantName,
		}
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	discount := decimal.Zero
	var redeemed *coupon.Coupon
	if req.CouponCode != "" {
		c, err := s.coupons.FindByCode(ctx, req.CouponCode)
		if err != nil {
			if errors.Is(err, coupon.ErrNotFound) {
				return nil, ErrCouponInvalid
			}
			return nil, errors.Wrap(err, "lookup coupon")
		}
		if !c.ActiveAt(s.now()) {
			return nil, ErrCouponInvalid
		}

		discount = coupon.Compute(c, couponItems).Discount
		redeemed = c
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:            uuid.New().String(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         req.Items,
		Subtotal:      subtotal.Round(2),
		Discount:      discount.Round(2),
		Total:         total.Round(2),
		CouponCode:    req.CouponCode,
		PaymentStatus: PaymentStatusPending,
		CreatedAt:     s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if redeemed != nil {
		if err := s.coupons.IncrementUsage(ctx, redeemed.ID); err != nil {
			return nil, errors.Wrap(err, "increment coupon usage")
		}
	}

	return o, nil
}

// GetOrder fetches one order by id. Returns ErrNotFound when absent.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}
