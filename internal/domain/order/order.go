// Package order holds booking/store orders and the placement logic that
// prices a cart, applies a coupon, and persists the resulting contract
// record. The order id doubles as the external reference sent to the
// payment gateway, which is how the webhook reconciler finds its way back.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatusPending is the status every order starts in; the webhook
// reconciler overwrites it with the gateway's status once payment settles.
const PaymentStatusPending = "pending"

// Order is a persisted booking or store order.
type Order struct {
	ID            string // also the gateway external_reference
	CustomerName  string
	CustomerEmail string
	Items         []Item
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CouponCode    string
	PaymentStatus string
	MPPaymentID   string
	CreatedAt     time.Time
}

// Item is a single line of an order.
type Item struct {
	ItemID      string          `json:"itemId"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	VariantName string          `json:"variantName,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
}
