package producer

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
)

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOrderShipped      = "order_shipped"
)

var ErrNoRecipient = errors.New("order has no contact email")

type emailSender interface {
	SendEmail(ctx context.Context, key string, msg EmailMessage) error
}

// EmailNotifier превращает события заказа в запросы на письма.
type EmailNotifier struct {
	emails   emailSender
	currency string
}

func NewEmailNotifier(emails emailSender, currency string) *EmailNotifier {
	return &EmailNotifier{emails: emails, currency: currency}
}

func (n *EmailNotifier) SendOrderConfirmation(ctx context.Context, o *models.Order) error {
	if o.ContactEmail == "" {
		return ErrNoRecipient
	}
	return n.emails.SendEmail(ctx, o.ID.String(), EmailMessage{
		To:       o.ContactEmail,
		Subject:  fmt.Sprintf("Pedido %s confirmado", o.Number),
		Template: TemplateOrderConfirmation,
		Data:     n.orderData(o),
	})
}

func (n *EmailNotifier) SendShipmentNotice(ctx context.Context, o *models.Order) error {
	if o.ContactEmail == "" {
		return ErrNoRecipient
	}
	data := n.orderData(o)
	data["tracking_code"] = o.TrackingCode
	data["shipping_method"] = o.ShippingMethod
	return n.emails.SendEmail(ctx, o.ID.String(), EmailMessage{
		To:       o.ContactEmail,
		Subject:  fmt.Sprintf("Pedido %s enviado", o.Number),
		Template: TemplateOrderShipped,
		Data:     data,
	})
}

func (n *EmailNotifier) orderData(o *models.Order) map[string]any {
	items := make([]map[string]any, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, map[string]any{
			"name":       it.ProductName,
			"variant":    it.VariantName,
			"quantity":   it.Quantity,
			"unit_price": it.UnitPrice.StringFixed(2),
			"total":      it.TotalPrice.StringFixed(2),
		})
	}
	return map[string]any{
		"order_number": o.Number,
		"currency":     n.currency,
		"items":        items,
		"subtotal":     o.Subtotal.StringFixed(2),
		"discount":     o.Discount.StringFixed(2),
		"shipping":     o.ShippingCost.StringFixed(2),
		"total":        o.Total.StringFixed(2),
		"coupon_code":  o.CouponCode,
	}
}
