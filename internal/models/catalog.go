package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Product struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey"`
	CategoryID *uuid.UUID          `gorm:"type:uuid;index"`
	SKU        string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name       string              `gorm:"type:text;not null"`
	BasePrice  decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	SalePrice  decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	WeightKg   decimal.Decimal     `gorm:"type:numeric(8,3);not null"`
	OrderCount int64               `gorm:"not null"`
	IsActive   bool                `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

// CurrentPrice — цена распродажи, если задана, иначе базовая.
func (p *Product) CurrentPrice() decimal.Decimal {
	if p.SalePrice.Valid && p.SalePrice.Decimal.IsPositive() {
		return p.SalePrice.Decimal
	}
	return p.BasePrice
}

type ProductVariant struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name          string          `gorm:"type:varchar(100);not null"`
	SKU           string          `gorm:"type:varchar(50)"`
	PriceModifier decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	IsActive      bool            `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ProductVariant) TableName() string { return "product_variants" }

func (v *ProductVariant) BeforeCreate(*gorm.DB) error { ensureID(&v.ID); return nil }

func (v *ProductVariant) FinalPrice(p *Product) decimal.Decimal {
	return p.CurrentPrice().Add(v.PriceModifier)
}

type Address struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index"`
	RecipientName string    `gorm:"type:varchar(255);not null"`
	Street        string    `gorm:"type:varchar(255);not null"`
	Number        string    `gorm:"type:varchar(20);not null"`
	Complement    string    `gorm:"type:varchar(100)"`
	Neighborhood  string    `gorm:"type:varchar(100)"`
	City          string    `gorm:"type:varchar(100);not null"`
	State         string    `gorm:"type:varchar(2);not null"`
	ZipCode       string    `gorm:"type:varchar(9);not null"`
	Phone         string    `gorm:"type:varchar(20)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Address) TableName() string { return "addresses" }

func (a *Address) BeforeCreate(*gorm.DB) error { ensureID(&a.ID); return nil }

// Snapshot копирует адрес по значению для хранения в заказе.
func (a *Address) Snapshot(withPhone bool) datatypes.JSONMap {
	m := datatypes.JSONMap{
		"recipient_name": a.RecipientName,
		"street":         a.Street,
		"number":         a.Number,
		"complement":     a.Complement,
		"neighborhood":   a.Neighborhood,
		"city":           a.City,
		"state":          a.State,
		"zipcode":        a.ZipCode,
	}
	if withPhone {
		m["phone"] = a.Phone
	}
	return m
}
