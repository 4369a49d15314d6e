package handlers

import (
	"context"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartUsecase interface {
	View(ctx context.Context) (*service.CartView, error)
	AddItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*service.CartView, error)
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int32) (*service.CartView, error)
	RemoveItem(ctx context.Context, itemID uuid.UUID) (*service.CartView, error)
	Clear(ctx context.Context) (*service.CartView, error)
	ApplyCoupon(ctx context.Context, code string) (*service.CartView, error)
	RemoveCoupon(ctx context.Context) (*service.CartView, error)
}

type CheckoutUsecase interface {
	Checkout(ctx context.Context, in service.CheckoutInput) (*models.Order, error)
}

type OrderUsecase interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, f service.ListFilter) ([]models.Order, int64, error)
	Cancel(ctx context.Context, id uuid.UUID, notes string) (*models.Order, error)
	UpdateStatus(ctx context.Context, in service.UpdateStatusInput) (*models.Order, error)
}

type PaymentUsecase interface {
	CreatePayment(ctx context.Context, in service.CreatePaymentInput) (*models.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	Refund(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*models.Payment, error)
	HandleWebhook(ctx context.Context, gatewayName string, req gateway.WebhookRequest) error
	SyncPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

type StockUsecase interface {
	SetQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*models.StockRecord, error)
}
