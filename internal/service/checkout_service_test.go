package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckout_ScenarioWithCoupon(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, "100.00", 100)
	coupon := env.percentCoupon(t, "SAVE10", "10", "50")
	userID := uuid.New()
	ctx := customerCtx(userID)

	var confirmed *models.Order
	env.notifier.SendOrderConfirmationFunc = func(_ context.Context, o *models.Order) error {
		confirmed = o
		return nil
	}

	_, err := env.carts.AddItem(ctx, p.ID, nil, 2)
	require.NoError(t, err)
	_, err = env.carts.ApplyCoupon(ctx, "SAVE10")
	require.NoError(t, err)

	ord, err := env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: env.address(t, userID).ID, Notes: "leave at door"})
	require.NoError(t, err)

	assert.True(t, ord.Subtotal.Equal(dec("200.00")), ord.Subtotal.String())
	assert.True(t, ord.Discount.Equal(dec("20.00")), ord.Discount.String())
	assert.True(t, ord.ShippingCost.IsZero())
	assert.True(t, ord.Total.Equal(dec("180.00")), ord.Total.String())
	assert.True(t, ord.Total.Equal(ord.Subtotal.Sub(ord.Discount).Add(ord.ShippingCost)))
	assert.Equal(t, models.OrderStatusPending, ord.Status)
	assert.Equal(t, models.StockReserved, ord.StockState)
	assert.Equal(t, "SAVE10", ord.CouponCode)
	assert.Equal(t, "customer@example.com", ord.ContactEmail)
	assert.Equal(t, "leave at door", ord.CustomerNotes)
	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{4}-[A-Z0-9_-]{8}$`), ord.Number)

	require.Len(t, ord.Items, 1)
	sum := decimal.Zero
	for _, it := range ord.Items {
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, sum.Equal(ord.Subtotal))
	assert.Equal(t, p.Name, ord.Items[0].ProductName)
	assert.Equal(t, p.SKU, ord.Items[0].ProductSKU)
	require.Len(t, ord.History, 1)
	assert.Equal(t, models.OrderStatusPending, ord.History[0].Status)
	assert.Equal(t, "Rua Augusta", ord.ShippingAddress["street"])

	updated, err := env.repo.Coupons.GetByID(context.Background(), coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, coupon.TimesUsed+1, updated.TimesUsed)

	rec := env.stockOf(t, p.ID)
	assert.Equal(t, int32(100), rec.Quantity)
	assert.Equal(t, int32(2), rec.ReservedQuantity)

	view, err := env.carts.View(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Cart.Items)
	assert.Empty(t, view.CouponCode)

	require.NotNil(t, confirmed)
	assert.Equal(t, ord.ID, confirmed.ID)
	require.Len(t, env.events.Created, 1)
	assert.Equal(t, ord.Number, env.events.Created[0].Number)
	assert.Equal(t, "BRL", env.events.Created[0].Currency)
}

func TestCheckout_EmptyCartMutatesNothing(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, "10.00", 5)
	userID := uuid.New()
	ctx := customerCtx(userID)

	_, err := env.carts.View(ctx)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: env.address(t, userID).ID})
	require.ErrorIs(t, err, ErrCartEmpty)

	assert.Zero(t, env.count(t, &models.Order{}))
	assert.Zero(t, env.count(t, &models.OrderItem{}))
	rec := env.stockOf(t, p.ID)
	assert.Equal(t, int32(5), rec.Quantity)
	assert.Zero(t, rec.ReservedQuantity)
	assert.Empty(t, env.events.Created)
}

func TestCheckout_InsufficientStockRollsBack(t *testing.T) {
	env := newTestEnv(t)
	plenty := env.product(t, "10.00", 50)
	scarce := env.product(t, "20.00", 5)
	coupon := env.percentCoupon(t, "ALL5", "5", "0")
	userID := uuid.New()
	ctx := customerCtx(userID)

	_, err := env.carts.AddItem(ctx, plenty.ID, nil, 3)
	require.NoError(t, err)
	_, err = env.carts.AddItem(ctx, scarce.ID, nil, 4)
	require.NoError(t, err)
	_, err = env.carts.ApplyCoupon(ctx, "ALL5")
	require.NoError(t, err)

	// другой покупатель зарезервировал остаток между добавлением в корзину и оформлением
	_, err = env.repo.Stock.Reserve(context.Background(), scarce.ID, nil, 3)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: env.address(t, userID).ID})
	var se *StockError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, int32(2), se.Available)

	assert.Zero(t, env.count(t, &models.Order{}))
	assert.Zero(t, env.stockOf(t, plenty.ID).ReservedQuantity)
	assert.Equal(t, int32(3), env.stockOf(t, scarce.ID).ReservedQuantity)
	c, err := env.repo.Coupons.GetByID(context.Background(), coupon.ID)
	require.NoError(t, err)
	assert.Zero(t, c.TimesUsed)

	view, err := env.carts.View(ctx)
	require.NoError(t, err)
	assert.Len(t, view.Cart.Items, 2)
}

func TestCheckout_BaselineModeAllowsOversell(t *testing.T) {
	env := newTestEnv(t)
	env.stock.strict = false
	p := env.product(t, "10.00", 2)
	userID := uuid.New()
	ctx := customerCtx(userID)

	_, err := env.carts.AddItem(ctx, p.ID, nil, 2)
	require.NoError(t, err)
	_, err = env.repo.Stock.Reserve(context.Background(), p.ID, nil, 1)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: env.address(t, userID).ID})
	require.NoError(t, err)
	assert.Equal(t, int32(3), env.stockOf(t, p.ID).ReservedQuantity)
}

func TestCheckout_UntrackedProductIsNotReserved(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, "10.00", -1)
	userID := uuid.New()

	ord := env.placeOrder(t, userID, p, 7)
	assert.True(t, ord.Total.Equal(dec("70")))
	rec, err := env.repo.Stock.Get(context.Background(), p.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCheckout_AddressMustBelongToUser(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, "10.00", 5)
	userID := uuid.New()
	ctx := customerCtx(userID)
	foreign := env.address(t, uuid.New())

	_, err := env.carts.AddItem(ctx, p.ID, nil, 1)
	require.NoError(t, err)

	_, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: foreign.ID})
	assert.ErrorIs(t, err, ErrAddressNotFound)

	own := env.address(t, userID)
	missing := uuid.New()
	_, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: own.ID, BillingAddressID: &missing})
	assert.ErrorIs(t, err, ErrAddressNotFound)
	assert.Zero(t, env.stockOf(t, p.ID).ReservedQuantity)
}

func TestCheckout_ShippingRates(t *testing.T) {
	env := newTestEnv(t)
	rates, err := ParseFlatRates("SEDEX:35.90:3,PAC:22.50:8")
	require.NoError(t, err)
	env.checkout.shipping = NewFlatRateProvider(rates)
	p := env.product(t, "50.00", 100)
	userID := uuid.New()
	ctx := customerCtx(userID)
	addr := env.address(t, userID)

	_, err = env.carts.AddItem(ctx, p.ID, nil, 1)
	require.NoError(t, err)
	_, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: addr.ID, ShippingMethod: "drone"})
	require.ErrorIs(t, err, ErrShippingCalculationFailed)

	ord, err := env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: addr.ID, ShippingMethod: "sedex"})
	require.NoError(t, err)
	assert.True(t, ord.ShippingCost.Equal(dec("35.90")))
	assert.True(t, ord.Total.Equal(dec("85.90")))
	assert.Equal(t, "SEDEX", ord.ShippingMethod)

	env.checkout.settings.FreeShippingThreshold = dec("100")
	_, err = env.carts.AddItem(ctx, p.ID, nil, 2)
	require.NoError(t, err)
	ord, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: addr.ID, ShippingMethod: "PAC"})
	require.NoError(t, err)
	assert.True(t, ord.ShippingCost.IsZero())
	assert.True(t, ord.Total.Equal(dec("100")))
}

func TestCheckout_ConcurrentCheckoutRejected(t *testing.T) {
	env := newTestEnv(t)
	env.checkout.locker = &MockLocker{
		AcquireLockFunc: func(_ context.Context, key, _ string, ttl time.Duration) (bool, error) {
			assert.Contains(t, key, "checkout:")
			assert.Equal(t, checkoutLockTTL, ttl)
			return false, nil
		},
	}
	_, err := env.checkout.Checkout(customerCtx(uuid.New()), CheckoutInput{})
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
}

func TestCheckout_NotificationFailureDoesNotFailOrder(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.SendOrderConfirmationFunc = func(context.Context, *models.Order) error {
		return errors.New("smtp down")
	}
	env.events.Err = errors.New("broker down")
	p := env.product(t, "10.00", 5)

	ord := env.placeOrder(t, uuid.New(), p, 1)
	assert.NotEqual(t, uuid.Nil, ord.ID)
}

func TestCheckout_FirstPurchaseCoupon(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, "10.00", 50)
	c := &models.Coupon{
		Code:              "WELCOME",
		DiscountType:      models.DiscountFixed,
		DiscountValue:     dec("5"),
		MinOrderValue:     decimal.Zero,
		IsActive:          true,
		FirstPurchaseOnly: true,
	}
	require.NoError(t, env.repo.Coupons.Create(context.Background(), c))
	userID := uuid.New()
	ctx := customerCtx(userID)

	_, err := env.carts.AddItem(ctx, p.ID, nil, 1)
	require.NoError(t, err)
	_, err = env.carts.ApplyCoupon(ctx, "WELCOME")
	require.NoError(t, err)
	ord, err := env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: env.address(t, userID).ID})
	require.NoError(t, err)
	assert.True(t, ord.Discount.Equal(dec("5")))

	_, err = env.carts.AddItem(ctx, p.ID, nil, 1)
	require.NoError(t, err)
	_, err = env.carts.ApplyCoupon(ctx, "WELCOME")
	var ce *CouponError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, CouponFirstPurchaseOnly, ce.Reason)
}

func TestCheckout_FirstPurchaseCountsCancelledOrders(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, "10.00", 50)
	require.NoError(t, env.repo.Coupons.Create(context.Background(), &models.Coupon{
		Code:              "WELCOME",
		DiscountType:      models.DiscountFixed,
		DiscountValue:     dec("5"),
		MinOrderValue:     decimal.Zero,
		IsActive:          true,
		FirstPurchaseOnly: true,
	}))
	userID := uuid.New()
	ctx := customerCtx(userID)

	ord := env.placeOrder(t, userID, p, 1)
	_, err := env.orders.Cancel(ctx, ord.ID, "")
	require.NoError(t, err)

	_, err = env.carts.AddItem(ctx, p.ID, nil, 1)
	require.NoError(t, err)
	_, err = env.carts.ApplyCoupon(ctx, "WELCOME")
	var ce *CouponError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, CouponFirstPurchaseOnly, ce.Reason)
}

func TestCheckout_PerUserLimit(t *testing.T) {
	env := newTestEnv(t)
	p := env.product(t, "100.00", 50)
	env.percentCoupon(t, "ONCE", "10", "0")
	twice := &models.Coupon{
		Code:              "TWICE",
		DiscountType:      models.DiscountPercentage,
		DiscountValue:     dec("10"),
		MinOrderValue:     decimal.Zero,
		UsageLimitPerUser: 2,
		IsActive:          true,
	}
	require.NoError(t, env.repo.Coupons.Create(context.Background(), twice))
	userID := uuid.New()
	ctx := customerCtx(userID)
	addr := env.address(t, userID)

	buyWith := func(code string) error {
		_, err := env.carts.AddItem(ctx, p.ID, nil, 1)
		require.NoError(t, err)
		if _, err := env.carts.ApplyCoupon(ctx, code); err != nil {
			return err
		}
		_, err = env.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: addr.ID})
		return err
	}

	// без явного лимита купон доступен пользователю один раз
	require.NoError(t, buyWith("ONCE"))
	err := buyWith("ONCE")
	var ce *CouponError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, CouponPerUserLimit, ce.Reason)
	_, err = env.carts.Clear(ctx)
	require.NoError(t, err)

	require.NoError(t, buyWith("TWICE"))
	require.NoError(t, buyWith("TWICE"))
	err = buyWith("TWICE")
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, CouponPerUserLimit, ce.Reason)

	// другой пользователь не затронут
	other := customerCtx(uuid.New())
	_, err = env.carts.AddItem(other, p.ID, nil, 1)
	require.NoError(t, err)
	_, err = env.carts.ApplyCoupon(other, "ONCE")
	assert.NoError(t, err)
}
