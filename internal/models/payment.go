package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentApproved   PaymentStatus = "approved"
	PaymentRejected   PaymentStatus = "rejected"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentProcessing, PaymentApproved, PaymentRejected, PaymentRefunded, PaymentCancelled:
		return true
	}
	return false
}

// CanTransitionTo: pending → processing → approved|rejected, approved → refunded,
// любое незавершённое → cancelled.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return next == PaymentProcessing || next == PaymentApproved || next == PaymentRejected || next == PaymentCancelled
	case PaymentProcessing:
		return next == PaymentApproved || next == PaymentRejected || next == PaymentCancelled
	case PaymentApproved:
		return next == PaymentRefunded
	}
	return false
}

type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodPix        PaymentMethod = "pix"
	MethodBoleto     PaymentMethod = "boleto"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodPix, MethodBoleto:
		return true
	}
	return false
}

type Payment struct {
	ID      uuid.UUID     `gorm:"type:uuid;primaryKey"`
	OrderID uuid.UUID     `gorm:"type:uuid;not null;index"`
	UserID  *uuid.UUID    `gorm:"type:uuid;index"`
	Gateway string        `gorm:"type:varchar(20);not null;index:ix_payments_gateway_external"`
	Method  PaymentMethod `gorm:"type:varchar(20);not null"`
	Status  PaymentStatus `gorm:"type:varchar(20);not null;index"`

	Amount    decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	Fee       decimal.Decimal     `gorm:"type:numeric(12,2);not null"`
	NetAmount decimal.NullDecimal `gorm:"type:numeric(12,2)"`

	ExternalID      string `gorm:"type:varchar(255);index:ix_payments_gateway_external"`
	GatewayStatus   string `gorm:"type:varchar(50)"`
	GatewayResponse datatypes.JSONMap

	PixQRCode        string `gorm:"type:text"`
	PixQRCodeBase64  string `gorm:"type:text"`
	PixExpiration    *time.Time
	BoletoBarcode    string `gorm:"type:varchar(100)"`
	BoletoURL        string `gorm:"type:text"`
	BoletoExpiration *time.Time

	RefundReason string `gorm:"type:text"`
	RefundedAt   *time.Time

	CreatedAt time.Time `gorm:"not null;index"`
	UpdatedAt time.Time `gorm:"not null"`

	Transactions []PaymentTransaction `gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

type TransactionType string

const (
	TxAuthorization TransactionType = "authorization"
	TxCapture       TransactionType = "capture"
	TxRefund        TransactionType = "refund"
	TxChargeback    TransactionType = "chargeback"
)

// PaymentTransaction — журнал взаимодействий со шлюзом, только добавление.
type PaymentTransaction struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type            TransactionType `gorm:"type:varchar(20);not null"`
	Status          PaymentStatus   `gorm:"type:varchar(20);not null"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ExternalID      string          `gorm:"type:varchar(255)"`
	GatewayResponse datatypes.JSONMap

	CreatedAt time.Time `gorm:"not null"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

func (t *PaymentTransaction) BeforeCreate(*gorm.DB) error { ensureID(&t.ID); return nil }

// WebhookEvent хранит уже обработанные уведомления шлюзов для дедупликации.
type WebhookEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Gateway     string    `gorm:"type:varchar(20);not null;uniqueIndex:ux_webhook_events_gateway_event"`
	EventID     string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_webhook_events_gateway_event"`
	ExternalID  string    `gorm:"type:varchar(255)"`
	Status      string    `gorm:"type:varchar(20)"`
	ProcessedAt time.Time `gorm:"not null;index"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

func (e *WebhookEvent) BeforeCreate(*gorm.DB) error { ensureID(&e.ID); return nil }
