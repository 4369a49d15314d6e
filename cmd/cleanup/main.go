package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"storefront/config"
	"storefront/internal/cleanup"
	"storefront/internal/platform/database"
	"storefront/internal/platform/logger"
	"storefront/internal/repository"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/cleanup/main.go [carts|webhooks|reconcile|all]")
		fmt.Println("  carts     - удалить брошенные корзины")
		fmt.Println("  webhooks  - удалить старые записи вебхуков")
		fmt.Println("  reconcile - сверить резервы склада с открытыми заказами")
		fmt.Println("  all       - выполнить всё по очереди")
		os.Exit(1)
	}

	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()
	cfg := config.Load(log)

	db := database.ConnectDB(&cfg.DB.Config, log)
	defer database.CloseDB(db, log)
	sqlxDB, err := database.SQLX(db)
	if err != nil {
		log.Fatal("Не удалось открыть sqlx поверх соединения", zap.Error(err))
	}

	svc := cleanup.NewCleanupService(repository.New(db), sqlxDB, cleanup.Settings{
		CartTTL:          time.Duration(cfg.Store.CartTTLDays) * 24 * time.Hour,
		WebhookRetention: time.Duration(cfg.Store.WebhookRetentionDays) * 24 * time.Hour,
	}, log)

	ctx := context.Background()
	switch os.Args[1] {
	case "carts":
		err = svc.CleanupAbandonedCarts(ctx)
	case "webhooks":
		err = svc.CleanupWebhookEvents(ctx)
	case "reconcile":
		var report []cleanup.StockDiscrepancy
		report, err = svc.ReconcileStock(ctx)
		for _, d := range report {
			fmt.Printf("%s variant=%v quantity=%d reserved=%d open=%d oversold=%t\n",
				d.ProductID, d.VariantID.UUID, d.Quantity, d.Reserved, d.OpenReserved, d.Oversold())
		}
	case "all":
		err = svc.RunFullCleanup(ctx)
	default:
		log.Fatal("Неизвестная задача", zap.String("job", os.Args[1]))
	}
	if err != nil {
		log.Fatal("Обслуживание завершилось с ошибкой", zap.String("job", os.Args[1]), zap.Error(err))
	}
	log.Info("Обслуживание выполнено", zap.String("job", os.Args[1]))
}
