package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"storefront/config"
	"storefront/internal/consumer"
	"storefront/internal/platform/logger"
	"storefront/internal/sender"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()
	cfg := config.LoadNotifier(log)

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("Не заданы брокеры Kafka (KAFKA_BROKERS)")
	}

	emailSender := sender.NewEmailSender(cfg)
	cons := consumer.NewKafkaEmailConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, emailSender, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Запуск рассылки писем", zap.String("topic", cfg.KafkaTopic))
	if err := cons.Run(ctx); err != nil {
		log.Error("Консьюмер остановлен с ошибкой", zap.Error(err))
	}
	if err := cons.Close(); err != nil {
		log.Warn("Не удалось закрыть консьюмер", zap.Error(err))
	}
	log.Info("Рассылка остановлена")
}
