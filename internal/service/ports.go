package service

import (
	"context"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// Notifier отправляет письма покупателю. Ошибки только логируются вызывающей стороной.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendShipmentNotice(ctx context.Context, order *models.Order) error
}

type ShippingQuote struct {
	Code    string
	Name    string
	Price   decimal.Decimal
	ETADays int
}

type ShippingRateProvider interface {
	Calculate(ctx context.Context, destinationZip string, weightKg decimal.Decimal) ([]ShippingQuote, error)
}

// Locker — распределённая блокировка; value нужен, чтобы снять только свою блокировку.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}
