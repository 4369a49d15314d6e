package dto

import (
	"time"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	VariantID *uuid.UUID      `json:"variant_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Quantity  int32           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" swaggertype:"string"`
	LineTotal decimal.Decimal `json:"line_total" swaggertype:"string"`
}

type CartResponse struct {
	ID         uuid.UUID          `json:"id"`
	Items      []CartItemResponse `json:"items"`
	ItemCount  int32              `json:"item_count"`
	Subtotal   decimal.Decimal    `json:"subtotal" swaggertype:"string"`
	Discount   decimal.Decimal    `json:"discount" swaggertype:"string"`
	Total      decimal.Decimal    `json:"total" swaggertype:"string"`
	CouponCode string             `json:"coupon_code,omitempty"`
}

func NewCartResponse(v *service.CartView) CartResponse {
	items := make([]CartItemResponse, 0, len(v.Cart.Items))
	for _, it := range v.Cart.Items {
		r := CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal(),
		}
		if it.Product != nil {
			r.Name = it.Product.Name
		}
		items = append(items, r)
	}
	return CartResponse{
		ID:         v.Cart.ID,
		Items:      items,
		ItemCount:  v.ItemCount,
		Subtotal:   v.Subtotal,
		Discount:   v.Discount,
		Total:      v.Total,
		CouponCode: v.CouponCode,
	}
}

type OrderItemResponse struct {
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
	VariantID   *uuid.UUID      `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	VariantName string          `json:"variant_name,omitempty"`
	Quantity    int32           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string"`
	TotalPrice  decimal.Decimal `json:"total_price" swaggertype:"string"`
}

type StatusHistoryResponse struct {
	Status    models.OrderStatus `json:"status"`
	Notes     string             `json:"notes,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

type OrderResponse struct {
	ID              uuid.UUID               `json:"id"`
	Number          string                  `json:"number"`
	Status          models.OrderStatus      `json:"status"`
	Items           []OrderItemResponse     `json:"items"`
	Subtotal        decimal.Decimal         `json:"subtotal" swaggertype:"string"`
	Discount        decimal.Decimal         `json:"discount" swaggertype:"string"`
	ShippingCost    decimal.Decimal         `json:"shipping_cost" swaggertype:"string"`
	Total           decimal.Decimal         `json:"total" swaggertype:"string"`
	CouponCode      string                  `json:"coupon_code,omitempty"`
	ShippingMethod  string                  `json:"shipping_method,omitempty"`
	TrackingCode    string                  `json:"tracking_code,omitempty"`
	ShippingAddress map[string]any          `json:"shipping_address"`
	CustomerNotes   string                  `json:"customer_notes,omitempty"`
	History         []StatusHistoryResponse `json:"history,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

func NewOrderResponse(o *models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID:   it.ProductID,
			VariantID:   it.VariantID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			VariantName: it.VariantName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
		})
	}
	history := make([]StatusHistoryResponse, 0, len(o.History))
	for _, h := range o.History {
		history = append(history, StatusHistoryResponse{Status: h.Status, Notes: h.Notes, CreatedAt: h.CreatedAt})
	}
	return OrderResponse{
		ID:              o.ID,
		Number:          o.Number,
		Status:          o.Status,
		Items:           items,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		CouponCode:      o.CouponCode,
		ShippingMethod:  o.ShippingMethod,
		TrackingCode:    o.TrackingCode,
		ShippingAddress: o.ShippingAddress,
		CustomerNotes:   o.CustomerNotes,
		History:         history,
		CreatedAt:       o.CreatedAt,
	}
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type PaymentResponse struct {
	ID               uuid.UUID            `json:"id"`
	OrderID          uuid.UUID            `json:"order_id"`
	Gateway          string               `json:"gateway"`
	Method           models.PaymentMethod `json:"method"`
	Status           models.PaymentStatus `json:"status"`
	Amount           decimal.Decimal      `json:"amount" swaggertype:"string"`
	ExternalID       string               `json:"external_id,omitempty"`
	PixQRCode        string               `json:"pix_qr_code,omitempty"`
	PixQRCodeBase64  string               `json:"pix_qr_code_base64,omitempty"`
	PixExpiration    *time.Time           `json:"pix_expiration,omitempty"`
	BoletoBarcode    string               `json:"boleto_barcode,omitempty"`
	BoletoURL        string               `json:"boleto_url,omitempty"`
	BoletoExpiration *time.Time           `json:"boleto_expiration,omitempty"`
	RefundedAt       *time.Time           `json:"refunded_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

func NewPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:               p.ID,
		OrderID:          p.OrderID,
		Gateway:          p.Gateway,
		Method:           p.Method,
		Status:           p.Status,
		Amount:           p.Amount,
		ExternalID:       p.ExternalID,
		PixQRCode:        p.PixQRCode,
		PixQRCodeBase64:  p.PixQRCodeBase64,
		PixExpiration:    p.PixExpiration,
		BoletoBarcode:    p.BoletoBarcode,
		BoletoURL:        p.BoletoURL,
		BoletoExpiration: p.BoletoExpiration,
		RefundedAt:       p.RefundedAt,
		CreatedAt:        p.CreatedAt,
	}
}

type StockResponse struct {
	ProductID         uuid.UUID  `json:"product_id"`
	VariantID         *uuid.UUID `json:"variant_id,omitempty"`
	Quantity          int32      `json:"quantity"`
	ReservedQuantity  int32      `json:"reserved_quantity"`
	Available         int32      `json:"available"`
	LowStockThreshold int32      `json:"low_stock_threshold"`
	IsLow             bool       `json:"is_low"`
}

func NewStockResponse(r *models.StockRecord) StockResponse {
	return StockResponse{
		ProductID:         r.ProductID,
		VariantID:         r.VariantID,
		Quantity:          r.Quantity,
		ReservedQuantity:  r.ReservedQuantity,
		Available:         r.Available(),
		LowStockThreshold: r.LowStockThreshold,
		IsLow:             r.IsLow(),
	}
}
