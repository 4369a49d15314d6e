package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	DB            *gorm.DB
	Products      ProductRepo
	Addresses     AddressRepo
	Stock         StockRepo
	Coupons       CouponRepo
	Carts         CartRepo
	Orders        OrderRepo
	Payments      PaymentRepo
	WebhookEvents WebhookEventRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:            db,
		Products:      NewProductRepo(db),
		Addresses:     NewAddressRepo(db),
		Stock:         NewStockRepo(db),
		Coupons:       NewCouponRepo(db),
		Carts:         NewCartRepo(db),
		Orders:        NewOrderRepo(db),
		Payments:      NewPaymentRepo(db),
		WebhookEvents: NewWebhookEventRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// Глобальная транзакция на весь набор репо
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}

// forUpdate добавляет SELECT ... FOR UPDATE там, где диалект это умеет (sqlite сериализует запись сам).
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}
