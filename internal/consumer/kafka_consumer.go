package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"storefront/internal/producer"
	"storefront/internal/sender"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type emailSender interface {
	SendEmail(n sender.EmailNotification) error
}

type KafkaEmailConsumer struct {
	reader      messageReader
	emailSender emailSender
	log         *zap.Logger
}

func NewKafkaEmailConsumer(brokers []string, groupID, topic string, emailSender emailSender, log *zap.Logger) *KafkaEmailConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          10e3,
		MaxBytes:          10e6,
		CommitInterval:    time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	return &KafkaEmailConsumer{reader: r, emailSender: emailSender, log: log}
}

// Run читает запросы на письма до отмены ctx. Битые сообщения пропускаются.
func (c *KafkaEmailConsumer) Run(ctx context.Context) error {
	c.log.Info("Kafka consumer запущен")
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			// io.EOF — reader закрыт
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Error("Ошибка чтения сообщения", zap.Error(err))
			continue
		}
		c.handle(m)
	}
}

func (c *KafkaEmailConsumer) handle(m kafka.Message) {
	var em producer.EmailMessage
	if err := json.Unmarshal(m.Value, &em); err != nil {
		c.log.Error("Не удалось разобрать сообщение", zap.ByteString("value", m.Value), zap.Error(err))
		return
	}
	if em.To == "" || em.Template == "" {
		c.log.Warn("Некорректный запрос на письмо", zap.Any("msg", em))
		return
	}
	n := sender.EmailNotification{To: em.To, Subject: em.Subject, Template: em.Template, Data: em.Data}
	if err := c.emailSender.SendEmail(n); err != nil {
		c.log.Error("Не удалось отправить письмо", zap.String("to", em.To), zap.String("template", em.Template), zap.Error(err))
		return
	}
	c.log.Info("Письмо отправлено", zap.String("to", em.To), zap.String("template", em.Template))
}

func (c *KafkaEmailConsumer) Close() error { return c.reader.Close() }
