package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRefunded        OrderStatus = "refunded"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusPaid, OrderStatusProcessing,
	OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s OrderStatus) CanCancel() bool {
	switch s {
	case OrderStatusPending, OrderStatusAwaitingPayment, OrderStatusPaid:
		return true
	}
	return false
}

func (s OrderStatus) AwaitingPayment() bool {
	return s == OrderStatusPending || s == OrderStatusAwaitingPayment
}

// StockState — что стало с резервом заказа. Резерв снимается или списывается ровно один раз.
type StockState string

const (
	StockReserved  StockState = "reserved"
	StockReleased  StockState = "released"
	StockCommitted StockState = "committed"
)

type Order struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey"`
	Number       string      `gorm:"type:varchar(20);not null;uniqueIndex"`
	UserID       *uuid.UUID  `gorm:"type:uuid;index"`
	ContactEmail string      `gorm:"type:varchar(255)"`
	Status       OrderStatus `gorm:"type:varchar(20);not null;index"`
	StockState   StockState  `gorm:"type:varchar(20);not null"`

	ShippingAddress datatypes.JSONMap `gorm:"not null"`
	BillingAddress  datatypes.JSONMap

	Subtotal     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ShippingCost decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Discount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Total        decimal.Decimal `gorm:"type:numeric(12,2);not null"`

	CouponID   *uuid.UUID `gorm:"type:uuid;index"`
	CouponCode string     `gorm:"type:varchar(50)"`

	ShippingMethod    string `gorm:"type:varchar(100)"`
	TrackingCode      string `gorm:"type:varchar(100)"`
	EstimatedDelivery *time.Time

	CustomerNotes string `gorm:"type:text"`
	AdminNotes    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`

	Items   []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error { ensureID(&o.ID); return nil }

func (o *Order) CanCancel() bool { return o.Status.CanCancel() }

// OrderItem — замороженный снимок позиции на момент оформления.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index"`
	VariantID   *uuid.UUID      `gorm:"type:uuid"`
	ProductName string          `gorm:"type:varchar(255);not null"`
	ProductSKU  string          `gorm:"type:varchar(50);not null"`
	VariantName string          `gorm:"type:varchar(100)"`
	Quantity    int32           `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null"`

	CreatedAt time.Time `gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	i.TotalPrice = i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
	return nil
}

type OrderStatusHistory struct {
	ID        uuid.UUID   `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID   `gorm:"type:uuid;not null;index"`
	Status    OrderStatus `gorm:"type:varchar(20);not null"`
	Notes     string      `gorm:"type:text"`
	CreatedBy *uuid.UUID  `gorm:"type:uuid"`

	CreatedAt time.Time `gorm:"not null;index"`
}

func (OrderStatusHistory) TableName() string { return "order_status_history" }

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error { ensureID(&h.ID); return nil }
