package service

import (
	"context"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderItemEvent struct {
	ProductID *uuid.UUID      `json:"product_id,omitempty"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	SKU       string          `json:"sku"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type OrderCreatedEvent struct {
	OrderID   uuid.UUID        `json:"order_id"`
	Number    string           `json:"number"`
	UserID    *uuid.UUID       `json:"user_id,omitempty"`
	Items     []OrderItemEvent `json:"items"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	Discount  decimal.Decimal  `json:"discount"`
	Shipping  decimal.Decimal  `json:"shipping_cost"`
	Total     decimal.Decimal  `json:"total"`
	Currency  string           `json:"currency"`
	CreatedAt time.Time        `json:"created_at"`
}

type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID          `json:"order_id"`
	Number    string             `json:"number"`
	From      models.OrderStatus `json:"from"`
	To        models.OrderStatus `json:"to"`
	Notes     string             `json:"notes,omitempty"`
	ActorID   *uuid.UUID         `json:"actor_id,omitempty"`
	ChangedAt time.Time          `json:"changed_at"`
}

type PaymentStatusChangedEvent struct {
	PaymentID  uuid.UUID            `json:"payment_id"`
	OrderID    uuid.UUID            `json:"order_id"`
	Gateway    string               `json:"gateway"`
	ExternalID string               `json:"external_id,omitempty"`
	From       models.PaymentStatus `json:"from"`
	To         models.PaymentStatus `json:"to"`
	Amount     decimal.Decimal      `json:"amount"`
	ChangedAt  time.Time            `json:"changed_at"`
}

type EventBus interface {
	PublishOrderCreated(ctx context.Context, e OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, e OrderStatusChangedEvent) error
	PublishPaymentStatusChanged(ctx context.Context, e PaymentStatusChangedEvent) error
}

func orderCreatedEvent(o *models.Order, currency string) OrderCreatedEvent {
	items := make([]OrderItemEvent, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemEvent{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			SKU:       it.ProductSKU,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.TotalPrice,
		})
	}
	return OrderCreatedEvent{
		OrderID:   o.ID,
		Number:    o.Number,
		UserID:    o.UserID,
		Items:     items,
		Subtotal:  o.Subtotal,
		Discount:  o.Discount,
		Shipping:  o.ShippingCost,
		Total:     o.Total,
		Currency:  currency,
		CreatedAt: o.CreatedAt,
	}
}
