package producer

import (
	"context"
	"encoding/json"

	"storefront/internal/service"

	"github.com/segmentio/kafka-go"
)

const (
	EventOrderCreated         = "order.created"
	EventOrderStatusChanged   = "order.status_changed"
	EventPaymentStatusChanged = "payment.status_changed"

	headerEventType = "event-type"
)

// EventBus публикует доменные события в один топик. Ключ — id заказа,
// поэтому события одного заказа попадают в одну партицию по порядку.
type EventBus struct {
	writer messageWriter
}

func NewEventBus(brokers []string, topic string) *EventBus {
	return &EventBus{writer: newWriter(brokers, topic)}
}

func (b *EventBus) PublishOrderCreated(ctx context.Context, e service.OrderCreatedEvent) error {
	return b.publish(ctx, EventOrderCreated, e.OrderID.String(), e)
}

func (b *EventBus) PublishOrderStatusChanged(ctx context.Context, e service.OrderStatusChangedEvent) error {
	return b.publish(ctx, EventOrderStatusChanged, e.OrderID.String(), e)
}

func (b *EventBus) PublishPaymentStatusChanged(ctx context.Context, e service.PaymentStatusChangedEvent) error {
	return b.publish(ctx, EventPaymentStatusChanged, e.OrderID.String(), e)
}

func (b *EventBus) publish(ctx context.Context, eventType, key string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: []kafka.Header{{Key: headerEventType, Value: []byte(eventType)}},
	})
}

func (b *EventBus) Close() error {
	return b.writer.Close()
}
