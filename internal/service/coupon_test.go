package service

import (
	"errors"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculateDiscount(t *testing.T) {
	capped := decimal.NewNullDecimal(dec("15"))

	tests := []struct {
		name   string
		coupon models.Coupon
		value  string
		want   string
	}{
		{"percentage", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("10")}, "200", "20"},
		{"percentage rounded", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("15")}, "33.33", "5"},
		{"percentage capped", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("50"), MaxDiscount: capped}, "100", "15"},
		{"percentage over 100", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("150")}, "80", "80"},
		{"fixed", models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec("25")}, "100", "25"},
		{"fixed above order value", models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec("25")}, "10", "10"},
		{"zero order value", models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec("25")}, "0", "0"},
		{"negative order value", models.Coupon{DiscountType: models.DiscountPercentage, DiscountValue: dec("10")}, "-5", "0"},
		{"negative coupon value", models.Coupon{DiscountType: models.DiscountFixed, DiscountValue: dec("-5")}, "50", "0"},
		{"unknown type", models.Coupon{DiscountType: "bogo", DiscountValue: dec("5")}, "50", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateDiscount(&tt.coupon, dec(tt.value))
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestCalculateDiscount_NeverOutOfBounds(t *testing.T) {
	coupons := []models.Coupon{
		{DiscountType: models.DiscountPercentage, DiscountValue: dec("0.01")},
		{DiscountType: models.DiscountPercentage, DiscountValue: dec("99.99")},
		{DiscountType: models.DiscountPercentage, DiscountValue: dec("1000")},
		{DiscountType: models.DiscountFixed, DiscountValue: dec("0.01")},
		{DiscountType: models.DiscountFixed, DiscountValue: dec("100000")},
	}
	values := []string{"0", "0.01", "0.99", "1", "19.99", "150.50", "99999.99"}
	for _, c := range coupons {
		for _, v := range values {
			got := CalculateDiscount(&c, dec(v))
			assert.False(t, got.IsNegative(), "%s %s -> %s", c.DiscountValue, v, got)
			assert.True(t, got.LessThanOrEqual(dec(v)), "%s %s -> %s", c.DiscountValue, v, got)
		}
	}
}

func TestIsValid(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	before, after := now.Add(-time.Hour), now.Add(time.Hour)
	limit := int32(5)

	assert.True(t, IsValid(&models.Coupon{IsActive: true}, now))
	assert.True(t, IsValid(&models.Coupon{IsActive: true, ValidFrom: &before, ValidUntil: &after}, now))
	assert.False(t, IsValid(&models.Coupon{IsActive: false}, now))
	assert.False(t, IsValid(&models.Coupon{IsActive: true, ValidFrom: &after}, now))
	assert.False(t, IsValid(&models.Coupon{IsActive: true, ValidUntil: &before}, now))
	assert.False(t, IsValid(&models.Coupon{IsActive: true, UsageLimit: &limit, TimesUsed: 5}, now))
	assert.True(t, IsValid(&models.Coupon{IsActive: true, UsageLimit: &limit, TimesUsed: 4}, now))
}

func TestCouponEvaluator_Check(t *testing.T) {
	e := NewCouponEvaluator()
	productID, otherID := uuid.New(), uuid.New()
	items := []models.CartItem{{ProductID: productID, Quantity: 1, UnitPrice: dec("60")}}

	c := &models.Coupon{IsActive: true, DiscountType: models.DiscountPercentage, DiscountValue: dec("10"), MinOrderValue: dec("100")}
	err := e.Check(c, dec("60"), items)
	var ce *CouponError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CouponMinOrderNotMet, ce.Reason)
	assert.Equal(t, "minimum order value for this coupon is 100.00", err.Error())
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	expired := &models.Coupon{IsActive: false}
	err = e.Check(expired, dec("60"), items)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CouponInactiveOrExpired, ce.Reason)

	restricted := &models.Coupon{IsActive: true, Products: []models.CouponProduct{{ProductID: otherID}}}
	err = e.Check(restricted, dec("60"), items)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CouponNotApplicable, ce.Reason)

	restricted.Products = append(restricted.Products, models.CouponProduct{ProductID: productID})
	assert.NoError(t, e.Check(restricted, dec("60"), items))
}

func TestCouponEvaluator_DiscountOnEligibleLines(t *testing.T) {
	e := NewCouponEvaluator()
	a, b := uuid.New(), uuid.New()
	items := []models.CartItem{
		{ProductID: a, Quantity: 2, UnitPrice: dec("50")},
		{ProductID: b, Quantity: 1, UnitPrice: dec("300")},
	}
	c := &models.Coupon{
		IsActive:      true,
		DiscountType:  models.DiscountPercentage,
		DiscountValue: dec("10"),
		Products:      []models.CouponProduct{{ProductID: a}},
	}
	assert.True(t, e.Discount(c, items).Equal(dec("10")))
	assert.True(t, e.Discount(nil, items).IsZero())
}
