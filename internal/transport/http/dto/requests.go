package dto

type AddCartItemRequest struct {
	ProductID string  `json:"product_id" binding:"required,uuid"`
	VariantID *string `json:"variant_id" binding:"omitempty,uuid"`
	Quantity  int32   `json:"quantity" binding:"required,gt=0"`
}

type UpdateCartItemRequest struct {
	Quantity int32 `json:"quantity" binding:"required,gt=0"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required,max=50"`
}

type CheckoutRequest struct {
	ShippingAddressID string  `json:"shipping_address_id" binding:"required,uuid"`
	BillingAddressID  *string `json:"billing_address_id" binding:"omitempty,uuid"`
	ShippingMethod    string  `json:"shipping_method" binding:"max=100"`
	Notes             string  `json:"notes" binding:"max=1000"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type CreatePaymentRequest struct {
	OrderID      string `json:"order_id" binding:"required,uuid"`
	Gateway      string `json:"gateway" binding:"required"`
	Method       string `json:"method" binding:"required,oneof=credit_card debit_card pix boleto"`
	CardToken    string `json:"card_token" binding:"required_if=Method credit_card,required_if=Method debit_card"`
	Installments int    `json:"installments" binding:"omitempty,min=1,max=12"`
}

type RefundRequest struct {
	// Amount — сумма частичного возврата; пусто — полный возврат.
	Amount *string `json:"amount" binding:"omitempty,decimal_gt0"`
	Reason string  `json:"reason" binding:"max=500"`
}

type UpdateOrderStatusRequest struct {
	Status       string `json:"status" binding:"required"`
	Notes        string `json:"notes" binding:"max=1000"`
	TrackingCode string `json:"tracking_code" binding:"max=100"`
	AdminNotes   string `json:"admin_notes" binding:"max=1000"`
}

type SetStockRequest struct {
	ProductID string  `json:"product_id" binding:"required,uuid"`
	VariantID *string `json:"variant_id" binding:"omitempty,uuid"`
	Quantity  *int32  `json:"quantity" binding:"required,gte=0"`
}

type ListOrdersQuery struct {
	Status string `form:"status"`
	// UserID учитывается только для администратора.
	UserID string `form:"user_id" binding:"omitempty,uuid"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}
