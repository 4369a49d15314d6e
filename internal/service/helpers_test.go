package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/migrate"
	"storefront/internal/models"
	"storefront/internal/platform/testutil"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Моки зависимостей сервисов

type MockEventBus struct {
	mu             sync.Mutex
	Created        []OrderCreatedEvent
	StatusChanged  []OrderStatusChangedEvent
	PaymentChanged []PaymentStatusChangedEvent
	Err            error
}

func (m *MockEventBus) PublishOrderCreated(_ context.Context, e OrderCreatedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, e)
	return m.Err
}

func (m *MockEventBus) PublishOrderStatusChanged(_ context.Context, e OrderStatusChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StatusChanged = append(m.StatusChanged, e)
	return m.Err
}

func (m *MockEventBus) PublishPaymentStatusChanged(_ context.Context, e PaymentStatusChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PaymentChanged = append(m.PaymentChanged, e)
	return m.Err
}

type MockNotifier struct {
	SendOrderConfirmationFunc func(ctx context.Context, o *models.Order) error
	SendShipmentNoticeFunc    func(ctx context.Context, o *models.Order) error
}

func (m *MockNotifier) SendOrderConfirmation(ctx context.Context, o *models.Order) error {
	if m.SendOrderConfirmationFunc != nil {
		return m.SendOrderConfirmationFunc(ctx, o)
	}
	return nil
}

func (m *MockNotifier) SendShipmentNotice(ctx context.Context, o *models.Order) error {
	if m.SendShipmentNoticeFunc != nil {
		return m.SendShipmentNoticeFunc(ctx, o)
	}
	return nil
}

type MockLocker struct {
	AcquireLockFunc func(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLockFunc func(ctx context.Context, key, value string) error
}

func (m *MockLocker) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if m.AcquireLockFunc != nil {
		return m.AcquireLockFunc(ctx, key, value, ttl)
	}
	return true, nil
}

func (m *MockLocker) ReleaseLock(ctx context.Context, key, value string) error {
	if m.ReleaseLockFunc != nil {
		return m.ReleaseLockFunc(ctx, key, value)
	}
	return nil
}

type MockAdapter struct {
	NameValue         string
	CreatePaymentFunc func(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error)
	GetStatusFunc     func(ctx context.Context, externalID string) (*gateway.StatusResult, error)
	ParseWebhookFunc  func(ctx context.Context, req gateway.WebhookRequest) (*gateway.WebhookResult, error)
	RefundFunc        func(ctx context.Context, externalID string, amount *decimal.Decimal, reason string) (*gateway.RefundResult, error)
}

func (m *MockAdapter) Name() string { return m.NameValue }

func (m *MockAdapter) CreatePayment(ctx context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	if m.CreatePaymentFunc != nil {
		return m.CreatePaymentFunc(ctx, req)
	}
	return &gateway.ChargeResult{Success: true, ExternalID: "ext-" + req.PaymentID.String(), Status: models.PaymentApproved}, nil
}

func (m *MockAdapter) GetStatus(ctx context.Context, externalID string) (*gateway.StatusResult, error) {
	if m.GetStatusFunc != nil {
		return m.GetStatusFunc(ctx, externalID)
	}
	return &gateway.StatusResult{ExternalID: externalID, Status: models.PaymentPending}, nil
}

func (m *MockAdapter) ParseWebhook(ctx context.Context, req gateway.WebhookRequest) (*gateway.WebhookResult, error) {
	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(ctx, req)
	}
	return &gateway.WebhookResult{Ignored: true}, nil
}

func (m *MockAdapter) Refund(ctx context.Context, externalID string, amount *decimal.Decimal, reason string) (*gateway.RefundResult, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, externalID, amount, reason)
	}
	return &gateway.RefundResult{Success: true, RefundID: "rf-" + externalID, Status: models.PaymentRefunded}, nil
}

func runNow(f func()) { f() }

type testEnv struct {
	repo     *repository.Repository
	stock    *StockLedger
	coupons  *CouponEvaluator
	carts    *CartService
	checkout *CheckoutService
	orders   *OrderService
	payments *PaymentService

	events   *MockEventBus
	notifier *MockNotifier
	adapter  *MockAdapter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestSQLite(t)
	require.NoError(t, migrate.MigrateStoreDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()))

	log := zap.NewNop()
	repo := repository.New(db)
	env := &testEnv{
		repo:     repo,
		stock:    NewStockLedger(repo.Stock, true, log),
		coupons:  NewCouponEvaluator(),
		events:   &MockEventBus{},
		notifier: &MockNotifier{},
		adapter:  &MockAdapter{NameValue: "fakepay"},
	}
	settings := StoreSettings{Currency: "BRL"}
	env.carts = NewCartService(repo, env.stock, env.coupons, log)
	env.checkout = NewCheckoutService(repo, env.carts, env.stock, env.coupons, nil, nil, env.events, env.notifier, settings, log)
	env.orders = NewOrderService(repo, env.stock, env.events, env.notifier, log)
	env.payments = NewPaymentService(repo, gateway.NewRegistry(env.adapter), env.orders, nil, env.events, settings, log)

	env.checkout.async = runNow
	env.orders.async = runNow
	env.payments.async = runNow
	return env
}

func customerCtx(userID uuid.UUID) context.Context {
	ctx := WithUserID(context.Background(), userID)
	ctx = WithRole(ctx, RoleCustomer)
	return WithEmail(ctx, "customer@example.com")
}

func adminCtx() context.Context {
	ctx := WithUserID(context.Background(), uuid.New())
	return WithRole(ctx, RoleAdmin)
}

var skuSeq int

func (e *testEnv) product(t *testing.T, price string, stock int32) *models.Product {
	t.Helper()
	skuSeq++
	p := &models.Product{
		SKU:       fmt.Sprintf("SKU-%04d", skuSeq),
		Name:      fmt.Sprintf("Product %d", skuSeq),
		BasePrice: decimal.RequireFromString(price),
		WeightKg:  decimal.RequireFromString("0.5"),
		IsActive:  true,
	}
	require.NoError(t, e.repo.Products.Create(context.Background(), p))
	if stock >= 0 {
		_, err := e.repo.Stock.SetQuantity(context.Background(), p.ID, nil, stock)
		require.NoError(t, err)
	}
	return p
}

func (e *testEnv) address(t *testing.T, userID uuid.UUID) *models.Address {
	t.Helper()
	a := &models.Address{
		UserID:        userID,
		RecipientName: "Maria Silva",
		Street:        "Rua Augusta",
		Number:        "100",
		City:          "São Paulo",
		State:         "SP",
		ZipCode:       "01305-000",
		Phone:         "+5511999990000",
	}
	require.NoError(t, e.repo.Addresses.Create(context.Background(), a))
	return a
}

func (e *testEnv) percentCoupon(t *testing.T, code, percent, minOrder string) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:          code,
		DiscountType:  models.DiscountPercentage,
		DiscountValue: decimal.RequireFromString(percent),
		MinOrderValue: decimal.RequireFromString(minOrder),
		IsActive:      true,
	}
	require.NoError(t, e.repo.Coupons.Create(context.Background(), c))
	return c
}

func (e *testEnv) stockOf(t *testing.T, productID uuid.UUID) *models.StockRecord {
	t.Helper()
	rec, err := e.repo.Stock.Get(context.Background(), productID, nil)
	require.NoError(t, err)
	require.NotNil(t, rec)
	return rec
}

func (e *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.repo.DB.Model(model).Count(&n).Error)
	return n
}

// placeOrder кладёт товар в корзину пользователя и оформляет заказ.
func (e *testEnv) placeOrder(t *testing.T, userID uuid.UUID, p *models.Product, qty int32) *models.Order {
	t.Helper()
	ctx := customerCtx(userID)
	_, err := e.carts.AddItem(ctx, p.ID, nil, qty)
	require.NoError(t, err)
	ord, err := e.checkout.Checkout(ctx, CheckoutInput{ShippingAddressID: e.address(t, userID).ID})
	require.NoError(t, err)
	return ord
}
