package repository

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CartRepo interface {
	Create(ctx context.Context, c *models.Cart) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	GetBySession(ctx context.Context, sessionKey string) (*models.Cart, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Touch(ctx context.Context, id uuid.UUID) error

	AddItem(ctx context.Context, it *models.CartItem) error
	GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int32) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error)
	// MoveItem переносит позицию в другую корзину (слияние при входе).
	MoveItem(ctx context.Context, itemID, cartID uuid.UUID) error

	SetCoupon(ctx context.Context, id uuid.UUID, couponID *uuid.UUID) error
	// Clear удаляет все позиции и отвязывает купон.
	Clear(ctx context.Context, id uuid.UUID) error

	// DeleteAbandonedAnonymous удаляет анонимные корзины, не менявшиеся с before.
	DeleteAbandonedAnonymous(ctx context.Context, before time.Time) (int64, error)
}

type cartRepo struct{ db *gorm.DB }

func NewCartRepo(db *gorm.DB) CartRepo { return &cartRepo{db: db} }

func (r *cartRepo) full(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		Preload("Items.Variant").
		Preload("Coupon").
		Preload("Coupon.Products").
		Preload("Coupon.Categories")
}

func (r *cartRepo) Create(ctx context.Context, c *models.Cart) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cartRepo) first(ctx context.Context, query string, arg any) (*models.Cart, error) {
	var c models.Cart
	err := r.full(ctx).First(&c, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (r *cartRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *cartRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *cartRepo) GetBySession(ctx context.Context, sessionKey string) (*models.Cart, error) {
	return r.first(ctx, "session_key = ?", sessionKey)
}

func (r *cartRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Cart{}, "id = ?", id).Error
}

func (r *cartRepo) Touch(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}

func (r *cartRepo) AddItem(ctx context.Context, it *models.CartItem) error {
	return r.db.WithContext(ctx).Create(it).Error
}

func (r *cartRepo) GetItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var it models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Variant").
		First(&it, "id = ? AND cart_id = ?", itemID, cartID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &it, err
}

func (r *cartRepo) SetItemQuantity(ctx context.Context, itemID uuid.UUID, qty int32) error {
	return r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", qty).Error
}

func (r *cartRepo) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (bool, error) {
	tx := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return tx.RowsAffected > 0, tx.Error
}

func (r *cartRepo) MoveItem(ctx context.Context, itemID, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("cart_id", cartID).Error
}

func (r *cartRepo) SetCoupon(ctx context.Context, id uuid.UUID, couponID *uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", id).
		Updates(map[string]any{"coupon_id": couponID, "updated_at": time.Now()}).Error
}

func (r *cartRepo) Clear(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("cart_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return r.SetCoupon(ctx, id, nil)
}

func (r *cartRepo) DeleteAbandonedAnonymous(ctx context.Context, before time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("user_id IS NULL AND updated_at < ?", before).
		Delete(&models.Cart{})
	return tx.RowsAffected, tx.Error
}
