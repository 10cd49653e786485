package services

import (
	"slices"
	"time"

	"github.com/Mahaan-Amr/hs6tools-sub003/internal/domain"

	"github.com/shopspring/decimal"
)

// pricedLine is what coupon scoping needs to know about an order line.
type pricedLine struct {
	ProductID  uint64
	CategoryID *uint64
	Total      int64
}

// CouponCheck is the input of EvaluateCoupon. UserUsage is the number of
// live orders the customer already placed with the coupon.
type CouponCheck struct {
	Now       time.Time
	Subtotal  int64
	Lines     []pricedLine
	UserID    *uint64
	UserUsage int64
}

// EvaluateCoupon validates c against the order and returns the discount in
// the smallest currency unit.
func EvaluateCoupon(c *domain.Coupon, in CouponCheck) (int64, error) {
	if !c.IsActive {
		return 0, domain.Validation("coupon %s is not active", c.Code)
	}
	if c.ValidFrom != nil && in.Now.Before(*c.ValidFrom) {
		return 0, domain.Validation("coupon %s is not valid yet", c.Code)
	}
	if c.ValidUntil != nil && in.Now.After(*c.ValidUntil) {
		return 0, domain.Validation("coupon %s has expired", c.Code)
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return 0, domain.ErrCouponExhausted
	}
	if c.MinimumAmount != nil && in.Subtotal < *c.MinimumAmount {
		return 0, domain.Validation("coupon %s requires a minimum order of %d", c.Code, *c.MinimumAmount)
	}
	if c.UserUsageLimit != nil {
		if in.UserID == nil {
			return 0, domain.Validation("coupon %s is limited per customer, sign in to use it", c.Code)
		}
		if in.UserUsage >= int64(*c.UserUsageLimit) {
			return 0, domain.Conflict("coupon %s was already used the maximum number of times", c.Code)
		}
	}

	applicable := applicableSubtotal(c, in.Lines)
	if applicable <= 0 {
		return 0, domain.Validation("coupon %s does not apply to any item in the order", c.Code)
	}
	return couponDiscount(c, applicable), nil
}

func applicableSubtotal(c *domain.Coupon, lines []pricedLine) int64 {
	var sum int64
	for _, l := range lines {
		switch c.ApplicableTo {
		case domain.ScopeProducts:
			if !slices.Contains(c.ProductIDs, l.ProductID) {
				continue
			}
		case domain.ScopeCategories:
			if l.CategoryID == nil || !slices.Contains(c.CategoryIDs, *l.CategoryID) {
				continue
			}
		}
		sum += l.Total
	}
	return sum
}

func couponDiscount(c *domain.Coupon, applicable int64) int64 {
	var discount int64
	switch c.DiscountType {
	case domain.DiscountPercentage:
		discount = decimal.NewFromInt(applicable).
			Mul(decimal.NewFromInt(c.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Truncate(0).
			IntPart()
		if c.MaximumDiscount != nil && discount > *c.MaximumDiscount {
			discount = *c.MaximumDiscount
		}
	default:
		discount = c.DiscountValue
	}
	if discount > applicable {
		discount = applicable
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
