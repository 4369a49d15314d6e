package cleanup

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Settings struct {
	CartTTL          time.Duration
	WebhookRetention time.Duration
}

type CleanupService struct {
	repo     *repository.Repository
	sqlx     *sqlx.DB
	settings Settings
	now      func() time.Time
	log      *zap.Logger
}

func NewCleanupService(repo *repository.Repository, db *sqlx.DB, settings Settings, log *zap.Logger) *CleanupService {
	return &CleanupService{
		repo:     repo,
		sqlx:     db,
		settings: settings,
		now:      time.Now,
		log:      log,
	}
}

// CleanupAbandonedCarts удаляет анонимные корзины, которые не трогали дольше CartTTL.
func (c *CleanupService) CleanupAbandonedCarts(ctx context.Context) error {
	if c.settings.CartTTL <= 0 {
		return nil
	}
	n, err := c.repo.Carts.DeleteAbandonedAnonymous(ctx, c.now().Add(-c.settings.CartTTL))
	if err != nil {
		c.log.Error("Не удалось удалить брошенные корзины", zap.Error(err))
		return err
	}
	if n > 0 {
		c.log.Info("Удалены брошенные корзины", zap.Int64("count", n))
	}
	return nil
}

// CleanupWebhookEvents удаляет записи дедупликации вебхуков старше WebhookRetention.
func (c *CleanupService) CleanupWebhookEvents(ctx context.Context) error {
	if c.settings.WebhookRetention <= 0 {
		return nil
	}
	n, err := c.repo.WebhookEvents.DeleteOlderThan(ctx, c.now().Add(-c.settings.WebhookRetention))
	if err != nil {
		c.log.Error("Не удалось удалить старые вебхуки", zap.Error(err))
		return err
	}
	if n > 0 {
		c.log.Info("Удалены старые вебхуки", zap.Int64("count", n))
	}
	return nil
}

// StockDiscrepancy — запись склада, у которой резерв не сходится с открытыми заказами или превышает остаток.
type StockDiscrepancy struct {
	ProductID    uuid.UUID     `db:"product_id"`
	VariantID    uuid.NullUUID `db:"variant_id"`
	Quantity     int64         `db:"quantity"`
	Reserved     int64         `db:"reserved_quantity"`
	OpenReserved int64         `db:"open_reserved"`
}

func (d StockDiscrepancy) Oversold() bool { return d.Reserved > d.Quantity }

const reconcileQuery = `
SELECT s.product_id, s.variant_id, s.quantity, s.reserved_quantity,
	COALESCE((
		SELECT SUM(oi.quantity)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.stock_state = ?
			AND oi.product_id = s.product_id
			AND ((oi.variant_id IS NULL AND s.variant_id IS NULL) OR oi.variant_id = s.variant_id)
	), 0) AS open_reserved
FROM stock_records s
ORDER BY s.product_id`

// ReconcileStock сверяет резервы склада с открытыми заказами. Ничего не исправляет, только отчитывается.
func (c *CleanupService) ReconcileStock(ctx context.Context) ([]StockDiscrepancy, error) {
	var rows []StockDiscrepancy
	if err := c.sqlx.SelectContext(ctx, &rows, c.sqlx.Rebind(reconcileQuery), string(models.StockReserved)); err != nil {
		c.log.Error("Не удалось сверить склад", zap.Error(err))
		return nil, err
	}

	var out []StockDiscrepancy
	for _, r := range rows {
		if !r.Oversold() && r.Reserved == r.OpenReserved {
			continue
		}
		fields := []zap.Field{
			zap.String("product_id", r.ProductID.String()),
			zap.Int64("quantity", r.Quantity),
			zap.Int64("reserved", r.Reserved),
			zap.Int64("open_reserved", r.OpenReserved),
			zap.Bool("oversold", r.Oversold()),
		}
		if r.VariantID.Valid {
			fields = append(fields, zap.String("variant_id", r.VariantID.UUID.String()))
		}
		c.log.Warn("Расхождение резерва склада", fields...)
		out = append(out, r)
	}
	if len(out) == 0 {
		c.log.Info("Склад сверен, расхождений нет", zap.Int("records", len(rows)))
	}
	return out, nil
}

func (c *CleanupService) reconcile(ctx context.Context) error {
	_, err := c.ReconcileStock(ctx)
	return err
}

// RunFullCleanup выполняет все задачи по очереди
func (c *CleanupService) RunFullCleanup(ctx context.Context) error {
	c.log.Info("Запуск полного обслуживания")

	if err := c.CleanupAbandonedCarts(ctx); err != nil {
		return err
	}
	if err := c.CleanupWebhookEvents(ctx); err != nil {
		return err
	}
	if err := c.reconcile(ctx); err != nil {
		return err
	}

	c.log.Info("Обслуживание завершено")
	return nil
}
