package handlers

import (
	"context"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MockCarts struct {
	ViewFunc         func(ctx context.Context) (*service.CartView, error)
	AddItemFunc      func(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*service.CartView, error)
	UpdateItemFunc   func(ctx context.Context, itemID uuid.UUID, qty int32) (*service.CartView, error)
	RemoveItemFunc   func(ctx context.Context, itemID uuid.UUID) (*service.CartView, error)
	ClearFunc        func(ctx context.Context) (*service.CartView, error)
	ApplyCouponFunc  func(ctx context.Context, code string) (*service.CartView, error)
	RemoveCouponFunc func(ctx context.Context) (*service.CartView, error)
}

func (m *MockCarts) View(ctx context.Context) (*service.CartView, error) { return m.ViewFunc(ctx) }
func (m *MockCarts) AddItem(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*service.CartView, error) {
	return m.AddItemFunc(ctx, productID, variantID, qty)
}
func (m *MockCarts) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, qty int32) (*service.CartView, error) {
	return m.UpdateItemFunc(ctx, itemID, qty)
}
func (m *MockCarts) RemoveItem(ctx context.Context, itemID uuid.UUID) (*service.CartView, error) {
	return m.RemoveItemFunc(ctx, itemID)
}
func (m *MockCarts) Clear(ctx context.Context) (*service.CartView, error) { return m.ClearFunc(ctx) }
func (m *MockCarts) ApplyCoupon(ctx context.Context, code string) (*service.CartView, error) {
	return m.ApplyCouponFunc(ctx, code)
}
func (m *MockCarts) RemoveCoupon(ctx context.Context) (*service.CartView, error) {
	return m.RemoveCouponFunc(ctx)
}

type MockCheckout struct {
	CheckoutFunc func(ctx context.Context, in service.CheckoutInput) (*models.Order, error)
}

func (m *MockCheckout) Checkout(ctx context.Context, in service.CheckoutInput) (*models.Order, error) {
	return m.CheckoutFunc(ctx, in)
}

type MockOrders struct {
	GetOrderFunc     func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersFunc   func(ctx context.Context, f service.ListFilter) ([]models.Order, int64, error)
	CancelFunc       func(ctx context.Context, id uuid.UUID, notes string) (*models.Order, error)
	UpdateStatusFunc func(ctx context.Context, in service.UpdateStatusInput) (*models.Order, error)
}

func (m *MockOrders) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return m.GetOrderFunc(ctx, id)
}
func (m *MockOrders) ListOrders(ctx context.Context, f service.ListFilter) ([]models.Order, int64, error) {
	return m.ListOrdersFunc(ctx, f)
}
func (m *MockOrders) Cancel(ctx context.Context, id uuid.UUID, notes string) (*models.Order, error) {
	return m.CancelFunc(ctx, id, notes)
}
func (m *MockOrders) UpdateStatus(ctx context.Context, in service.UpdateStatusInput) (*models.Order, error) {
	return m.UpdateStatusFunc(ctx, in)
}

type MockPayments struct {
	CreatePaymentFunc func(ctx context.Context, in service.CreatePaymentInput) (*models.Payment, error)
	GetPaymentFunc    func(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	RefundFunc        func(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*models.Payment, error)
	HandleWebhookFunc func(ctx context.Context, gatewayName string, req gateway.WebhookRequest) error
	SyncPaymentFunc   func(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

func (m *MockPayments) CreatePayment(ctx context.Context, in service.CreatePaymentInput) (*models.Payment, error) {
	return m.CreatePaymentFunc(ctx, in)
}
func (m *MockPayments) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return m.GetPaymentFunc(ctx, id)
}
func (m *MockPayments) Refund(ctx context.Context, id uuid.UUID, amount *decimal.Decimal, reason string) (*models.Payment, error) {
	return m.RefundFunc(ctx, id, amount, reason)
}
func (m *MockPayments) HandleWebhook(ctx context.Context, gatewayName string, req gateway.WebhookRequest) error {
	return m.HandleWebhookFunc(ctx, gatewayName, req)
}
func (m *MockPayments) SyncPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return m.SyncPaymentFunc(ctx, id)
}

type MockStock struct {
	SetQuantityFunc func(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*models.StockRecord, error)
}

func (m *MockStock) SetQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*models.StockRecord, error) {
	return m.SetQuantityFunc(ctx, productID, variantID, qty)
}
