// Package coupon implements discount rule evaluation for the studio's
// services, booking packages, and store products.
//
// The engine is pure: it holds no state, performs no I/O, and never
// returns an error. Malformed input degrades to "no discount" because the
// evaluation sits on the critical path of showing a price to a paying
// customer.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the eligible subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the eligible subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFull waives the entire eligible subtotal.
	DiscountFull DiscountType = "full"
)

var (
	// ErrNotFound is returned by repositories when no coupon matches a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrCodeTaken is returned when creating a coupon whose code is already in use.
	ErrCodeTaken = errors.New("coupon code already in use")
)

// Coupon is a discount rule with eligibility, value, validity window, and
// usage cap. "Active now" is a derived predicate (see ActiveAt), never a
// stored state.
type Coupon struct {
	ID           string
	Code         string // matched case-insensitively, unique at creation time
	DiscountType DiscountType
	Value        decimal.Decimal
	AppliesTo    []string // rule tokens; empty means "applies to everything"
	Combinable   bool     // advisory for the storefront, not enforced here
	ValidFrom    *time.Time
	ValidTo      *time.Time
	UsageLimit   int // 0 means unlimited
	UsedCount    int
	Enabled      bool
}

// ActiveAt reports whether the coupon can be redeemed at the given instant:
// it must be enabled, under its usage cap, and inside its validity window.
func (c *Coupon) ActiveAt(now time.Time) bool {
	if !c.Enabled {
		return false
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return false
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidTo != nil && now.After(*c.ValidTo) {
		return false
	}
	return true
}

// Item is the coupon-evaluation view of a cart line: a service, booking
// package, or store product.
type Item struct {
	ID          string
	Name        string
	Type        string // category: portrait, maternity, events, prewedding, store
	Price       decimal.Decimal
	Quantity    int // non-positive counts as 1
	VariantName string
}

// Repository provides persistence for coupon rules.
type Repository interface {
	// List returns every coupon, active or not.
	List(ctx context.Context) ([]Coupon, error)
	// FindByCode looks up a coupon by code, case-insensitively.
	// Returns ErrNotFound when no such coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// Create persists a new coupon. Returns ErrCodeTaken when the code is
	// already used by another coupon, active or not.
	Create(ctx context.Context, c *Coupon) error
	// IncrementUsage atomically bumps the redemption counter.
	IncrementUsage(ctx context.Context, id string) error
}
