package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mirante-studio/studio-api/internal/domain/coupon"
)

const (
	listCouponsSQL = `SELECT id, code, discount_type, value, applies_to, combinable,
		valid_from, valid_to, usage_limit, used_count, enabled
		FROM coupons ORDER BY created_at`

	findCouponByCodeSQL = `SELECT id, code, discount_type, value, applies_to, combinable,
		valid_from, valid_to, usage_limit, used_count, enabled
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	createCouponSQL = `INSERT INTO coupons
		(id, code, discount_type, value, applies_to, combinable, valid_from, valid_to, usage_limit, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	incrementCouponUsageSQL = `UPDATE coupons
		SET used_count = used_count + 1, updated_at = now() WHERE id = $1`
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// List returns every coupon, enabled or not, in creation order.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return coupons, nil
}

// FindByCode looks up a coupon by its code, case-insensitively.
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// Create persists a new coupon. The unique index on UPPER(code) enforces
// code uniqueness regardless of the coupon's enabled state; a collision
// maps to coupon.ErrCodeTaken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	appliesTo, err := json.Marshal(c.AppliesTo)
	if err != nil {
		return fmt.Errorf("marshaling applies_to: %w", err)
	}

	_, err = r.pool.Exec(ctx, createCouponSQL,
		c.ID, c.Code, string(c.DiscountType), c.Value, appliesTo,
		c.Combinable, c.ValidFrom, c.ValidTo, c.UsageLimit, c.Enabled,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrCodeTaken
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// IncrementUsage atomically bumps the redemption counter.
func (r *CouponRepository) IncrementUsage(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, incrementCouponUsageSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", id, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		value        decimal.Decimal
		appliesTo    []byte
		validFrom    *time.Time
		validTo      *time.Time
		usageLimit   int32
		usedCount    int32
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &value, &appliesTo, &c.Combinable,
		&validFrom, &validTo, &usageLimit, &usedCount, &c.Enabled,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	c.DiscountType = coupon.DiscountType(discountType)
	c.Value = value
	c.ValidFrom = validFrom
	c.ValidTo = validTo
	c.UsageLimit = int(usageLimit)
	c.UsedCount = int(usedCount)

	if len(appliesTo) > 0 {
		// Tolerate legacy rows where applies_to was stored as a single
		// string instead of an array.
		if err := json.Unmarshal(appliesTo, &c.AppliesTo); err != nil {
			var single string
			if json.Unmarshal(appliesTo, &single) == nil && single != "" {
				c.AppliesTo = []string{single}
			}
		}
	}
	return c, nil
}
