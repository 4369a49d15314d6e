package cleanup

import (
	"context"
	"testing"
	"time"

	"storefront/internal/migrate"
	"storefront/internal/models"
	"storefront/internal/platform/database"
	"storefront/internal/platform/testutil"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fixture struct {
	repo *repository.Repository
	svc  *CleanupService
	now  time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestSQLite(t)
	require.NoError(t, migrate.MigrateStoreDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()))
	sx, err := database.SQLX(db)
	require.NoError(t, err)

	repo := repository.New(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewCleanupService(repo, sx, Settings{CartTTL: 30 * 24 * time.Hour, WebhookRetention: 7 * 24 * time.Hour}, zap.NewNop())
	svc.now = func() time.Time { return now }
	return &fixture{repo: repo, svc: svc, now: now}
}

func (f *fixture) cart(t *testing.T, userID *uuid.UUID, session *string, touched time.Time) *models.Cart {
	t.Helper()
	c := &models.Cart{UserID: userID, SessionKey: session}
	require.NoError(t, f.repo.Carts.Create(context.Background(), c))
	require.NoError(t, f.repo.DB.Model(&models.Cart{}).Where("id = ?", c.ID).UpdateColumn("updated_at", touched).Error)
	return c
}

func (f *fixture) product(t *testing.T, sku string, qty, reserved int32) *models.Product {
	t.Helper()
	p := &models.Product{SKU: sku, Name: sku, BasePrice: decimal.NewFromInt(10), WeightKg: decimal.Zero, IsActive: true}
	require.NoError(t, f.repo.Products.Create(context.Background(), p))
	_, err := f.repo.Stock.SetQuantity(context.Background(), p.ID, nil, qty)
	require.NoError(t, err)
	require.NoError(t, f.repo.DB.Model(&models.StockRecord{}).Where("product_id = ?", p.ID).UpdateColumn("reserved_quantity", reserved).Error)
	return p
}

func (f *fixture) order(t *testing.T, state models.StockState, p *models.Product, qty int32) {
	t.Helper()
	o := &models.Order{
		Number:          "ORD-2026-" + uuid.NewString()[:8],
		Status:          models.OrderStatusPending,
		StockState:      state,
		ShippingAddress: datatypes.JSONMap{"street": "Rua Augusta"},
		Subtotal:        decimal.Zero,
		ShippingCost:    decimal.Zero,
		Discount:        decimal.Zero,
		Total:           decimal.Zero,
		Items: []models.OrderItem{
			{ProductID: &p.ID, ProductName: p.Name, ProductSKU: p.SKU, Quantity: qty, UnitPrice: p.BasePrice},
		},
	}
	require.NoError(t, f.repo.Orders.Create(context.Background(), o))
}

func TestCleanupAbandonedCarts(t *testing.T) {
	f := setup(t)
	userID := uuid.New()
	old, fresh := "old-session", "fresh-session"

	stale := f.cart(t, nil, &old, f.now.AddDate(0, 0, -31))
	recent := f.cart(t, nil, &fresh, f.now.AddDate(0, 0, -1))
	owned := f.cart(t, &userID, nil, f.now.AddDate(0, 0, -90))

	require.NoError(t, f.svc.CleanupAbandonedCarts(context.Background()))

	ctx := context.Background()
	got, err := f.repo.Carts.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = f.repo.Carts.GetByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
	got, err = f.repo.Carts.GetByID(ctx, owned.ID)
	require.NoError(t, err)
	assert.NotNil(t, got, "user carts are never expired")
}

func TestCleanupWebhookEvents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.repo.WebhookEvents.MarkProcessed(ctx, &models.WebhookEvent{Gateway: "stripe", EventID: "old", ProcessedAt: f.now.AddDate(0, 0, -8)})
	require.NoError(t, err)
	_, err = f.repo.WebhookEvents.MarkProcessed(ctx, &models.WebhookEvent{Gateway: "stripe", EventID: "new", ProcessedAt: f.now.AddDate(0, 0, -1)})
	require.NoError(t, err)

	require.NoError(t, f.svc.CleanupWebhookEvents(ctx))

	exists, err := f.repo.WebhookEvents.Exists(ctx, "stripe", "old")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.repo.WebhookEvents.Exists(ctx, "stripe", "new")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReconcileStock(t *testing.T) {
	f := setup(t)

	balanced := f.product(t, "SKU-OK", 10, 3)
	f.order(t, models.StockReserved, balanced, 3)
	f.order(t, models.StockCommitted, balanced, 5)

	leaked := f.product(t, "SKU-LEAK", 10, 4)
	f.order(t, models.StockReserved, leaked, 1)
	f.order(t, models.StockReleased, leaked, 3)

	oversold := f.product(t, "SKU-OVER", 2, 3)
	f.order(t, models.StockReserved, oversold, 3)

	got, err := f.svc.ReconcileStock(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	byProduct := map[uuid.UUID]StockDiscrepancy{}
	for _, d := range got {
		byProduct[d.ProductID] = d
	}
	assert.NotContains(t, byProduct, balanced.ID)

	l := byProduct[leaked.ID]
	assert.Equal(t, int64(4), l.Reserved)
	assert.Equal(t, int64(1), l.OpenReserved)
	assert.False(t, l.Oversold())

	o := byProduct[oversold.ID]
	assert.True(t, o.Oversold())
	assert.Equal(t, int64(3), o.OpenReserved)
	assert.False(t, o.VariantID.Valid)
}

func TestScheduler_RunOnceNowAndStop(t *testing.T) {
	f := setup(t)
	session := "s"
	f.cart(t, nil, &session, f.now.AddDate(0, 0, -60))

	s := NewScheduler(f.svc, Intervals{Carts: time.Hour}, zap.NewNop())
	s.Start(context.Background())
	require.NoError(t, s.RunOnceNow(context.Background()))
	s.Stop()

	var n int64
	require.NoError(t, f.repo.DB.Model(&models.Cart{}).Count(&n).Error)
	assert.Zero(t, n)
}
