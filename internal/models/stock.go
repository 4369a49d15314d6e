package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockRecord — складской учёт по паре (товар, вариант). VariantID = nil для товара без вариантов.
type StockRecord struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProductID         uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_stock_records_product_variant"`
	VariantID         *uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_stock_records_product_variant"`
	Quantity          int32      `gorm:"not null"`
	ReservedQuantity  int32      `gorm:"not null"`
	LowStockThreshold int32      `gorm:"not null"`
	Location          string     `gorm:"type:varchar(100)"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (StockRecord) TableName() string { return "stock_records" }

func (s *StockRecord) BeforeCreate(*gorm.DB) error { ensureID(&s.ID); return nil }

func (s *StockRecord) Available() int32 {
	if s.ReservedQuantity >= s.Quantity {
		return 0
	}
	return s.Quantity - s.ReservedQuantity
}

func (s *StockRecord) IsLow() bool { return s.Available() <= s.LowStockThreshold }
