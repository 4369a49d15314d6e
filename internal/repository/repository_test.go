package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/migrate"
	"storefront/internal/models"
	"storefront/internal/platform/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

func setupPostgres(t *testing.T) *Repository {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	require.NoError(t, migrate.MigrateStoreDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()))
	return New(db)
}

func seedStock(t *testing.T, repo *Repository, qty int32) uuid.UUID {
	t.Helper()
	p := &models.Product{SKU: "SKU-" + uuid.NewString()[:8], Name: "Caneca", BasePrice: decimal.RequireFromString("10"), IsActive: true}
	require.NoError(t, repo.DB.Create(p).Error)
	_, err := repo.Stock.SetQuantity(context.Background(), p.ID, nil, qty)
	require.NoError(t, err)
	return p.ID
}

func TestStockRepo_TryReserveNeverOversells(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	pid := seedStock(t, repo, 10)

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reserved, err := repo.Stock.TryReserve(ctx, pid, nil, 1)
			assert.NoError(t, err)
			if reserved {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok.Load())
	rec, err := repo.Stock.Get(ctx, pid, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(10), rec.ReservedQuantity)
	assert.Equal(t, int32(0), rec.Available())
}

func TestStockRepo_ReleaseAndCommitClampAtZero(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	pid := seedStock(t, repo, 5)

	ok, err := repo.Stock.Reserve(ctx, pid, nil, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Stock.Commit(ctx, pid, nil, 2)
	require.NoError(t, err)
	require.True(t, ok)
	rec, err := repo.Stock.Get(ctx, pid, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), rec.Quantity)
	assert.Equal(t, int32(1), rec.ReservedQuantity)

	_, err = repo.Stock.Release(ctx, pid, nil, 10)
	require.NoError(t, err)
	rec, err = repo.Stock.Get(ctx, pid, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(0), rec.ReservedQuantity)

	ok, err = repo.Stock.Reserve(ctx, uuid.New(), nil, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStockRepo_CheckConstraint(t *testing.T) {
	repo := setupPostgres(t)
	pid := seedStock(t, repo, 1)
	err := repo.DB.Exec("UPDATE stock_records SET reserved_quantity = -1 WHERE product_id = ?", pid).Error
	assert.Error(t, err)
}

func TestOrderRepo_CompareAndSet(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()
	ord := &models.Order{
		Number:          "ORD-2026-TESTTEST",
		Status:          models.OrderStatusPending,
		StockState:      models.StockReserved,
		ShippingAddress: datatypes.JSONMap{"street": "Rua Augusta"},
		Subtotal:        decimal.RequireFromString("20"),
		Total:           decimal.RequireFromString("20"),
	}
	require.NoError(t, repo.Orders.Create(ctx, ord))

	ok, err := repo.Orders.UpdateStatus(ctx, ord.ID, models.OrderStatusPending, models.OrderStatusPaid)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Orders.UpdateStatus(ctx, ord.ID, models.OrderStatusPending, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Orders.SetStockState(ctx, ord.ID, models.StockReserved, models.StockReleased)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Orders.SetStockState(ctx, ord.ID, models.StockReserved, models.StockReleased)
	require.NoError(t, err)
	assert.False(t, ok)

	err = repo.WithTx(ctx, func(tx *Repository) error {
		locked, err := tx.Orders.GetByIDForUpdate(ctx, ord.ID)
		require.NoError(t, err)
		require.NotNil(t, locked)
		assert.Equal(t, models.OrderStatusPaid, locked.Status)
		return nil
	})
	require.NoError(t, err)

	missing, err := repo.Orders.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWebhookEventRepo_Dedup(t *testing.T) {
	repo := setupPostgres(t)
	ctx := context.Background()

	first, err := repo.WebhookEvents.MarkProcessed(ctx, &models.WebhookEvent{Gateway: "stripe", EventID: "evt_1"})
	require.NoError(t, err)
	assert.True(t, first)
	again, err := repo.WebhookEvents.MarkProcessed(ctx, &models.WebhookEvent{Gateway: "stripe", EventID: "evt_1"})
	require.NoError(t, err)
	assert.False(t, again)
	other, err := repo.WebhookEvents.MarkProcessed(ctx, &models.WebhookEvent{Gateway: "braintree", EventID: "evt_1"})
	require.NoError(t, err)
	assert.True(t, other)

	old := &models.WebhookEvent{Gateway: "stripe", EventID: "evt_old", ProcessedAt: time.Now().Add(-60 * 24 * time.Hour)}
	_, err = repo.WebhookEvents.MarkProcessed(ctx, old)
	require.NoError(t, err)

	n, err := repo.WebhookEvents.DeleteOlderThan(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	exists, err := repo.WebhookEvents.Exists(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.True(t, exists)
}
