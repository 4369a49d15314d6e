package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID                uuid.UUID           `gorm:"type:uuid;primaryKey"`
	Code              string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	Description       string              `gorm:"type:text"`
	DiscountType      DiscountType        `gorm:"type:varchar(20);not null"`
	DiscountValue     decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	MaxDiscount       decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	MinOrderValue     decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	UsageLimit        *int32              // nil — без ограничения
	UsageLimitPerUser int32               `gorm:"not null;default:1"`
	TimesUsed         int32               `gorm:"not null"`
	IsActive          bool                `gorm:"not null"`
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	FirstPurchaseOnly bool `gorm:"not null"`

	Products   []CouponProduct  `gorm:"foreignKey:CouponID;constraint:OnDelete:CASCADE"`
	Categories []CouponCategory `gorm:"foreignKey:CouponID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Coupon) TableName() string { return "coupons" }

func (c *Coupon) BeforeCreate(*gorm.DB) error { ensureID(&c.ID); return nil }

// Restricted — купон действует только на перечисленные товары/категории.
func (c *Coupon) Restricted() bool { return len(c.Products) > 0 || len(c.Categories) > 0 }

func (c *Coupon) AppliesTo(productID uuid.UUID, categoryID *uuid.UUID) bool {
	if !c.Restricted() {
		return true
	}
	for _, p := range c.Products {
		if p.ProductID == productID {
			return true
		}
	}
	if categoryID != nil {
		for _, cat := range c.Categories {
			if cat.CategoryID == *categoryID {
				return true
			}
		}
	}
	return false
}

type CouponProduct struct {
	CouponID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (CouponProduct) TableName() string { return "coupon_products" }

type CouponCategory struct {
	CouponID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	CategoryID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (CouponCategory) TableName() string { return "coupon_categories" }

// CouponUsage — одна строка на каждое погашение купона, только добавление.
type CouponUsage struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CouponID uuid.UUID  `gorm:"type:uuid;not null;index:ix_coupon_usages_coupon_user"`
	UserID   uuid.UUID  `gorm:"type:uuid;not null;index:ix_coupon_usages_coupon_user"`
	OrderID  *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time `gorm:"not null"`
}

func (CouponUsage) TableName() string { return "coupon_usages" }

func (u *CouponUsage) BeforeCreate(*gorm.DB) error { ensureID(&u.ID); return nil }
