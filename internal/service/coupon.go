package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IsValid зависит только от now и полей купона, результат не кэшируется.
func IsValid(c *models.Coupon, now time.Time) bool {
	return validityReason(c, now) == ""
}

func validityReason(c *models.Coupon, now time.Time) CouponReason {
	if !c.IsActive {
		return CouponInactiveOrExpired
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return CouponInactiveOrExpired
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return CouponInactiveOrExpired
	}
	if c.UsageLimit != nil && c.TimesUsed >= *c.UsageLimit {
		return CouponUsageLimitReached
	}
	return ""
}

// CalculateDiscount: процент от orderValue с потолком MaxDiscount либо фиксированная сумма.
// Результат всегда в [0, orderValue].
func CalculateDiscount(c *models.Coupon, orderValue decimal.Decimal) decimal.Decimal {
	if !orderValue.IsPositive() || !c.DiscountValue.IsPositive() {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercentage:
		d = orderValue.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscount.Valid && d.GreaterThan(c.MaxDiscount.Decimal) {
			d = c.MaxDiscount.Decimal
		}
	case models.DiscountFixed:
		d = decimal.Min(c.DiscountValue, orderValue)
	default:
		return decimal.Zero
	}
	return clamp(round2(d), decimal.Zero, orderValue)
}

// EligibleValue — сумма строк корзины, на которые действует купон.
// Для купона без ограничений это весь подытог.
func EligibleValue(c *models.Coupon, items []models.CartItem) (decimal.Decimal, bool) {
	total := decimal.Zero
	matched := false
	for i := range items {
		it := &items[i]
		var categoryID *uuid.UUID
		if it.Product != nil {
			categoryID = it.Product.CategoryID
		}
		if c.AppliesTo(it.ProductID, categoryID) {
			total = total.Add(it.LineTotal())
			matched = true
		}
	}
	return total, matched
}

type CouponEvaluator struct {
	now func() time.Time
}

func NewCouponEvaluator() *CouponEvaluator {
	return &CouponEvaluator{now: time.Now}
}

// Check — проверки, не требующие истории пользователя: срок, лимит, минимальная сумма, применимость.
func (e *CouponEvaluator) Check(c *models.Coupon, subtotal decimal.Decimal, items []models.CartItem) error {
	if reason := validityReason(c, e.now()); reason != "" {
		return &CouponError{Reason: reason}
	}
	if subtotal.LessThan(c.MinOrderValue) {
		return &CouponError{Reason: CouponMinOrderNotMet, MinOrder: c.MinOrderValue}
	}
	if c.Restricted() {
		if _, ok := EligibleValue(c, items); !ok {
			return &CouponError{Reason: CouponNotApplicable}
		}
	}
	return nil
}

// CanUse дополняет Check историей пользователя: первая покупка и лимит на пользователя.
func (e *CouponEvaluator) CanUse(ctx context.Context, repo *repository.Repository, c *models.Coupon, userID uuid.UUID, subtotal decimal.Decimal, items []models.CartItem) error {
	if err := e.Check(c, subtotal, items); err != nil {
		return err
	}

	if c.FirstPurchaseOnly {
		n, err := repo.Orders.CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		if n > 0 {
			return &CouponError{Reason: CouponFirstPurchaseOnly}
		}
	}

	used, err := repo.Coupons.CountUsageByUser(ctx, c.ID, userID)
	if err != nil {
		return err
	}
	if used >= int64(c.UsageLimitPerUser) {
		return &CouponError{Reason: CouponPerUserLimit}
	}
	return nil
}

// Discount — скидка корзины: 0 без купона или при недействительном купоне.
func (e *CouponEvaluator) Discount(c *models.Coupon, items []models.CartItem) decimal.Decimal {
	if c == nil || !IsValid(c, e.now()) {
		return decimal.Zero
	}
	base, ok := EligibleValue(c, items)
	if !ok {
		return decimal.Zero
	}
	return CalculateDiscount(c, base)
}
