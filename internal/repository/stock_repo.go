package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockRepo interface {
	Get(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.StockRecord, error)
	SetQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*models.StockRecord, error)

	// Reserve: reserved += qty без проверки остатка.
	Reserve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error)
	// TryReserve: if quantity - reserved >= qty then reserved += qty (compare-and-set)
	TryReserve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error)
	// Release: reserved -= qty, не ниже нуля
	Release(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error)
	// Commit: quantity -= qty; reserved -= qty (окончательное списание при отгрузке)
	Commit(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error)
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepo(db *gorm.DB) StockRepo { return &stockRepo{db: db} }

func stockKey(productID uuid.UUID, variantID *uuid.UUID, args map[string]any) string {
	args["pid"] = productID
	if variantID == nil {
		return "product_id = @pid AND variant_id IS NULL"
	}
	args["vid"] = *variantID
	return "product_id = @pid AND variant_id = @vid"
}

func (r *stockRepo) Get(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID) (*models.StockRecord, error) {
	q := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if variantID == nil {
		q = q.Where("variant_id IS NULL")
	} else {
		q = q.Where("variant_id = ?", *variantID)
	}

	var rec models.StockRecord
	err := q.First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &rec, err
}

func (r *stockRepo) SetQuantity(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (*models.StockRecord, error) {
	var out *models.StockRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &stockRepo{db: tx}
		rec, err := txRepo.Get(ctx, productID, variantID)
		if err != nil {
			return err
		}
		if rec == nil {
			rec = &models.StockRecord{
				ProductID:         productID,
				VariantID:         variantID,
				Quantity:          qty,
				LowStockThreshold: 10,
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
			out = rec
			return nil
		}
		if err := tx.Model(rec).Update("quantity", qty).Error; err != nil {
			return err
		}
		rec.Quantity = qty
		out = rec
		return nil
	})
	return out, err
}

func (r *stockRepo) exec(ctx context.Context, set, extraCond string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error) {
	args := map[string]any{"q": qty, "now": time.Now()}
	where := stockKey(productID, variantID, args)
	if extraCond != "" {
		where += " AND " + extraCond
	}
	tx := r.db.WithContext(ctx).Exec("UPDATE stock_records SET "+set+", updated_at = @now WHERE "+where, args)
	return tx.RowsAffected > 0, tx.Error
}

func (r *stockRepo) Reserve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error) {
	return r.exec(ctx, "reserved_quantity = reserved_quantity + @q", "", productID, variantID, qty)
}

func (r *stockRepo) TryReserve(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error) {
	return r.exec(ctx,
		"reserved_quantity = reserved_quantity + @q",
		"quantity - reserved_quantity >= @q",
		productID, variantID, qty)
}

func (r *stockRepo) Release(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error) {
	return r.exec(ctx,
		"reserved_quantity = CASE WHEN reserved_quantity > @q THEN reserved_quantity - @q ELSE 0 END",
		"", productID, variantID, qty)
}

func (r *stockRepo) Commit(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, qty int32) (bool, error) {
	return r.exec(ctx,
		"quantity = CASE WHEN quantity > @q THEN quantity - @q ELSE 0 END, "+
			"reserved_quantity = CASE WHEN reserved_quantity > @q THEN reserved_quantity - @q ELSE 0 END",
		"", productID, variantID, qty)
}
