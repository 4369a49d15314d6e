package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrCartEmpty                 = errors.New("cart is empty")
	ErrInsufficientStock         = errors.New("insufficient stock")
	ErrInvalidCoupon             = errors.New("invalid coupon")
	ErrAddressNotFound           = errors.New("address not found")
	ErrOrderNotAwaitingPayment   = errors.New("order is not awaiting payment")
	ErrPaymentFailed             = errors.New("payment failed")
	ErrOrderNotCancellable       = errors.New("order cannot be cancelled")
	ErrShippingCalculationFailed = errors.New("could not calculate shipping")

	ErrOrderNotFound        = errors.New("order not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrQuantityInvalid      = errors.New("quantity must be > 0")
	ErrGatewayNotSupported  = errors.New("payment gateway not supported")
	ErrMethodNotSupported   = errors.New("payment method not supported")
	ErrPaymentNotRefundable = errors.New("only approved payments can be refunded")
	ErrRefundFailed         = errors.New("refund failed")
	ErrInvalidRefundAmount  = errors.New("refund amount must be > 0 and not exceed the payment amount")
	ErrConcurrentUpdate     = errors.New("resource is being updated, retry later")
	ErrWebhookRejected      = errors.New("webhook rejected")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrSessionRequired      = errors.New("session key or authentication required")
)

type CouponReason string

const (
	CouponNotFound          CouponReason = "not_found"
	CouponInactiveOrExpired CouponReason = "inactive_or_expired"
	CouponMinOrderNotMet    CouponReason = "min_order_not_met"
	CouponUsageLimitReached CouponReason = "usage_limit_reached"
	CouponPerUserLimit      CouponReason = "per_user_limit_reached"
	CouponFirstPurchaseOnly CouponReason = "first_purchase_only"
	CouponNotApplicable     CouponReason = "not_applicable"
	CouponRequiresLogin     CouponReason = "requires_login"
)

// CouponError — отказ в купоне с конкретной причиной, errors.Is(err, ErrInvalidCoupon) == true.
type CouponError struct {
	Reason   CouponReason
	MinOrder decimal.Decimal
}

func (e *CouponError) Error() string {
	switch e.Reason {
	case CouponNotFound:
		return "coupon not found"
	case CouponInactiveOrExpired:
		return "this coupon is expired or inactive"
	case CouponMinOrderNotMet:
		return fmt.Sprintf("minimum order value for this coupon is %s", e.MinOrder.StringFixed(2))
	case CouponUsageLimitReached:
		return "this coupon has reached its usage limit"
	case CouponPerUserLimit:
		return "you have already used this coupon the maximum number of times"
	case CouponFirstPurchaseOnly:
		return "this coupon is valid only for the first purchase"
	case CouponNotApplicable:
		return "this coupon does not apply to any item in the cart"
	case CouponRequiresLogin:
		return "log in to use this coupon"
	}
	return ErrInvalidCoupon.Error()
}

func (e *CouponError) Unwrap() error { return ErrInvalidCoupon }

type StockError struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Available int32
	Requested int32
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %d items available", e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// PaymentError несёт безопасное для клиента сообщение шлюза.
type PaymentError struct {
	PaymentID uuid.UUID
	Message   string
}

func (e *PaymentError) Error() string {
	if e.Message == "" {
		return ErrPaymentFailed.Error()
	}
	return "payment failed: " + e.Message
}

func (e *PaymentError) Unwrap() error { return ErrPaymentFailed }
