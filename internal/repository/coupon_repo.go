package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CouponRepo interface {
	Create(ctx context.Context, c *models.Coupon) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error)
	// GetByCode ищет купон без учёта регистра.
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)

	CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error)
	RecordUsage(ctx context.Context, u *models.CouponUsage) error
	// IncrementTimesUsed атомарно увеличивает счётчик, пока не исчерпан usage_limit.
	IncrementTimesUsed(ctx context.Context, id uuid.UUID) (bool, error)
}

type couponRepo struct{ db *gorm.DB }

func NewCouponRepo(db *gorm.DB) CouponRepo { return &couponRepo{db: db} }

func (r *couponRepo) Create(ctx context.Context, c *models.Coupon) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *couponRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (r *couponRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.WithContext(ctx).
		Preload("Products").
		Preload("Categories").
		First(&c, "LOWER(code) = ?", strings.ToLower(strings.TrimSpace(code))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (r *couponRepo) CountUsageByUser(ctx context.Context, couponID, userID uuid.UUID) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&cnt).Error
	return cnt, err
}

func (r *couponRepo) RecordUsage(ctx context.Context, u *models.CouponUsage) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *couponRepo) IncrementTimesUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).Exec(`
UPDATE coupons
SET times_used = times_used + 1,
    updated_at = @now
WHERE id = @id
  AND (usage_limit IS NULL OR times_used < usage_limit)
`, map[string]any{"id": id, "now": time.Now()})
	return tx.RowsAffected > 0, tx.Error
}
