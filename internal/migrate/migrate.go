package migrate

import (
	"context"

	"storefront/internal/models"
	"storefront/internal/platform/database"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type MigrateOptions struct {
	CreateChecks           bool // CHECK-constraint для целостности денег, статусов и остатков
	CreateIndexes          bool // частичные и составные индексы
	CreateUpdatedAtTrigger bool // триггер обновления updated_at
}

func DefaultMigrateOptions() MigrateOptions {
	return MigrateOptions{
		CreateChecks:           true,
		CreateIndexes:          true,
		CreateUpdatedAtTrigger: true,
	}
}

// Порядок важен: справочники раньше ссылающихся на них таблиц.
func allModels() []any {
	return []any{
		&models.Product{},
		&models.ProductVariant{},
		&models.Address{},
		&models.StockRecord{},
		&models.Coupon{},
		&models.CouponProduct{},
		&models.CouponCategory{},
		&models.CouponUsage{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.Payment{},
		&models.PaymentTransaction{},
		&models.WebhookEvent{},
	}
}

type step struct {
	name string
	sql  string
}

var checkSteps = []step{
	{"chk_orders_status_allowed", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_status_allowed;
ALTER TABLE orders ADD CONSTRAINT chk_orders_status_allowed
  CHECK (status IN ('pending','awaiting_payment','paid','processing','shipped','delivered','cancelled','refunded'));
`},
	{"chk_orders_stock_state_allowed", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_stock_state_allowed;
ALTER TABLE orders ADD CONSTRAINT chk_orders_stock_state_allowed
  CHECK (stock_state IN ('reserved','released','committed'));
`},
	{"chk_orders_money_non_negative", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_money_non_negative;
ALTER TABLE orders ADD CONSTRAINT chk_orders_money_non_negative
  CHECK (subtotal >= 0 AND shipping_cost >= 0 AND discount >= 0 AND total >= 0);
`},
	{"chk_orders_total_balanced", `
ALTER TABLE orders DROP CONSTRAINT IF EXISTS chk_orders_total_balanced;
ALTER TABLE orders ADD CONSTRAINT chk_orders_total_balanced
  CHECK (total = subtotal - discount + shipping_cost);
`},
	{"chk_order_items_quantity_gt_zero", `
ALTER TABLE order_items DROP CONSTRAINT IF EXISTS chk_order_items_quantity_gt_zero;
ALTER TABLE order_items ADD CONSTRAINT chk_order_items_quantity_gt_zero
  CHECK (quantity > 0 AND unit_price >= 0 AND total_price >= 0);
`},
	{"chk_stock_records_non_negative", `
ALTER TABLE stock_records DROP CONSTRAINT IF EXISTS chk_stock_records_non_negative;
ALTER TABLE stock_records ADD CONSTRAINT chk_stock_records_non_negative
  CHECK (quantity >= 0 AND reserved_quantity >= 0);
`},
	{"chk_cart_items_quantity_gt_zero", `
ALTER TABLE cart_items DROP CONSTRAINT IF EXISTS chk_cart_items_quantity_gt_zero;
ALTER TABLE cart_items ADD CONSTRAINT chk_cart_items_quantity_gt_zero
  CHECK (quantity > 0);
`},
	{"chk_carts_single_owner", `
ALTER TABLE carts DROP CONSTRAINT IF EXISTS chk_carts_single_owner;
ALTER TABLE carts ADD CONSTRAINT chk_carts_single_owner
  CHECK ((user_id IS NULL) <> (session_key IS NULL));
`},
	{"chk_coupons_discount", `
ALTER TABLE coupons DROP CONSTRAINT IF EXISTS chk_coupons_discount;
ALTER TABLE coupons ADD CONSTRAINT chk_coupons_discount
  CHECK (discount_type IN ('percentage','fixed') AND discount_value >= 0 AND times_used >= 0);
`},
	{"chk_payments_allowed", `
ALTER TABLE payments DROP CONSTRAINT IF EXISTS chk_payments_allowed;
ALTER TABLE payments ADD CONSTRAINT chk_payments_allowed
  CHECK (status IN ('pending','processing','approved','rejected','refunded','cancelled')
     AND method IN ('credit_card','debit_card','pix','boleto')
     AND amount >= 0);
`},
}

var indexSteps = []step{
	// NULL в variant_id не участвует в уникальности, поэтому товар без вариантов закрываем отдельно
	{"ux_stock_records_product_null_variant", `
CREATE UNIQUE INDEX IF NOT EXISTS ux_stock_records_product_null_variant
ON stock_records (product_id) WHERE variant_id IS NULL;
`},
	{"ix_orders_user_created", `
CREATE INDEX IF NOT EXISTS ix_orders_user_created
ON orders (user_id, created_at DESC);
`},
	{"ix_orders_status_created", `
CREATE INDEX IF NOT EXISTS ix_orders_status_created
ON orders (status, created_at DESC);
`},
	{"ix_orders_open_reservations", `
CREATE INDEX IF NOT EXISTS ix_orders_open_reservations
ON orders (id) WHERE stock_state = 'reserved';
`},
	{"ix_payments_order_created", `
CREATE INDEX IF NOT EXISTS ix_payments_order_created
ON payments (order_id, created_at);
`},
}

var triggerTables = []string{"products", "stock_records", "coupons", "carts", "orders", "payments"}

func MigrateStoreDB(ctx context.Context, db *gorm.DB, log *zap.Logger, opt MigrateOptions) error {
	log.Info("Начало миграции базы данных магазина")
	db = db.WithContext(ctx)

	log.Info("Создание таблиц")
	if err := db.AutoMigrate(allModels()...); err != nil {
		log.Error("Не удалось создать таблицы", zap.Error(err))
		return err
	}
	log.Info("Таблицы успешно созданы")

	if !database.IsPostgres(db) {
		// sqlite: ограничения ниже используют синтаксис PostgreSQL
		log.Info("Пропуск SQL-ограничений и триггеров для драйвера", zap.String("driver", db.Dialector.Name()))
		return nil
	}

	if opt.CreateUpdatedAtTrigger {
		log.Info("Создание триггеров updated_at")
		if err := db.Exec(`
CREATE OR REPLACE FUNCTION set_updated_at() RETURNS trigger AS $$
BEGIN NEW.updated_at = now(); RETURN NEW; END; $$ LANGUAGE plpgsql;
`).Error; err != nil {
			log.Error("Не удалось создать функцию set_updated_at", zap.Error(err))
			return err
		}
		for _, table := range triggerTables {
			if err := db.Exec(`
DROP TRIGGER IF EXISTS trg_` + table + `_updated ON ` + table + `;
CREATE TRIGGER trg_` + table + `_updated
BEFORE UPDATE ON ` + table + `
FOR EACH ROW EXECUTE FUNCTION set_updated_at();
`).Error; err != nil {
				log.Error("Не удалось создать триггер updated_at", zap.String("table", table), zap.Error(err))
				return err
			}
		}
		log.Info("Триггеры updated_at успешно созданы")
	}

	if opt.CreateChecks {
		log.Info("Создание CHECK-ограничений")
		if err := runSteps(db, log, checkSteps); err != nil {
			return err
		}
		log.Info("CHECK-ограничения успешно созданы")
	}

	if opt.CreateIndexes {
		log.Info("Создание индексов")
		if err := runSteps(db, log, indexSteps); err != nil {
			return err
		}
		log.Info("Индексы успешно созданы")
	}

	log.Info("Миграция базы данных магазина успешно завершена")
	return nil
}

func runSteps(db *gorm.DB, log *zap.Logger, steps []step) error {
	for _, s := range steps {
		if err := db.Exec(s.sql).Error; err != nil {
			log.Error("Ошибка шага миграции", zap.String("step", s.name), zap.Error(err))
			return err
		}
	}
	return nil
}
