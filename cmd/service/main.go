package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/config"
	"storefront/internal/cache"
	"storefront/internal/cleanup"
	"storefront/internal/gateway"
	"storefront/internal/platform/database"
	"storefront/internal/platform/logger"
	"storefront/internal/producer"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/token"
	gtransport "storefront/internal/transport/grpc"
	"storefront/internal/transport/http/router"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// @Title Storefront API
// @Version 1.0
// @Description Корзина, оформление заказа и оплата
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
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

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Не удалось получить sql.DB", zap.Error(err))
	}
	sqlxDB, err := database.SQLX(db)
	if err != nil {
		log.Fatal("Не удалось открыть sqlx поверх соединения", zap.Error(err))
	}

	repos := repository.New(db)

	var locker service.Locker
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Fatal("Redis недоступен", zap.Error(err))
		}
		defer rc.Close()
		locker = rc
	} else {
		log.Warn("Redis отключён, распределённые блокировки не используются")
	}

	var (
		events   service.EventBus
		notifier service.Notifier
	)
	if len(cfg.Kafka.Brokers) > 0 {
		bus := producer.NewEventBus(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer bus.Close()
		emails := producer.NewEmailProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEmail)
		defer emails.Close()
		events = bus
		notifier = producer.NewEmailNotifier(emails, cfg.Store.Currency)
	} else {
		log.Warn("KAFKA_BROKERS не задан, события и письма не отправляются")
	}

	var shipping service.ShippingRateProvider
	if cfg.Store.ShippingRatesEnabled {
		rates, err := service.ParseFlatRates(cfg.Store.ShippingRates)
		if err != nil {
			log.Fatal("Неверные тарифы доставки", zap.Error(err))
		}
		shipping = service.NewFlatRateProvider(rates)
	}

	gateways := buildGateways(cfg, log)
	settings := service.StoreSettings{Currency: cfg.Store.Currency, FreeShippingThreshold: cfg.Store.FreeShippingThreshold}

	stock := service.NewStockLedger(repos.Stock, cfg.Store.StrictStock, log)
	coupons := service.NewCouponEvaluator()
	carts := service.NewCartService(repos, stock, coupons, log)
	orders := service.NewOrderService(repos, stock, events, notifier, log)
	checkout := service.NewCheckoutService(repos, carts, stock, coupons, shipping, locker, events, notifier, settings, log)
	payments := service.NewPaymentService(repos, gateways, orders, locker, events, settings, log)

	tokens := token.NewHSProvider(cfg.JWT.AccessSecret, cfg.JWT.Issuer, cfg.JWT.Audience)

	cleanupSvc := cleanup.NewCleanupService(repos, sqlxDB, cleanup.Settings{
		CartTTL:          time.Duration(cfg.Store.CartTTLDays) * 24 * time.Hour,
		WebhookRetention: time.Duration(cfg.Store.WebhookRetentionDays) * 24 * time.Hour,
	}, log)
	scheduler := cleanup.NewScheduler(cleanupSvc, cleanup.Intervals{
		Carts:     cfg.Cleanup.CartsInterval,
		Webhooks:  cfg.Cleanup.WebhooksInterval,
		Reconcile: cfg.Cleanup.ReconcileInterval,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	r, err := router.Router(router.Deps{
		Carts:       carts,
		Checkout:    checkout,
		Orders:      orders,
		Payments:    payments,
		Stock:       stock,
		Tokens:      tokens,
		DB:          sqlDB,
		CORSOrigins: cfg.CORSOrigins,
	}, log)
	if err != nil {
		log.Fatal("Не удалось собрать HTTP роутер", zap.Error(err))
	}
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		gtransport.NewLoggingUnaryServerInterceptor(log),
	))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)
	watcher := gtransport.NewHealthWatcher(healthSrv, sqlDB, 15*time.Second, log)
	watcher.Start()

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		log.Info("Запуск HTTP сервера", zap.String("addr", httpSrv.Addr), zap.Strings("gateways", gateways.Names()))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP сервер упал", zap.Error(err))
		}
	}()
	go func() {
		log.Info("Запуск gRPC сервера", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("gRPC сервер упал", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Остановка сервиса...")
	scheduler.Stop()
	watcher.Stop()
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP сервер остановлен с ошибкой", zap.Error(err))
	}
	grpcServer.GracefulStop()
	log.Info("Сервис остановлен")
}

func buildGateways(cfg *config.Config, log *zap.Logger) *gateway.Registry {
	reg := gateway.NewRegistry()
	g := cfg.Gateways
	if g.MercadoPago.Enabled() {
		reg.Register(gateway.NewMercadoPago(g.MercadoPago.BaseURL, g.MercadoPago.AccessToken, g.MercadoPago.WebhookSecret, g.Timeout, log))
	}
	if g.Stripe.Enabled() {
		reg.Register(gateway.NewStripe(g.Stripe.SecretKey, g.Stripe.WebhookSecret, cfg.Store.Currency, log))
	}
	if g.Braintree.Enabled() {
		bt, err := gateway.NewBraintree(g.Braintree.Environment, g.Braintree.MerchantID, g.Braintree.PublicKey, g.Braintree.PrivateKey, log)
		if err != nil {
			log.Fatal("Некорректная конфигурация Braintree", zap.Error(err))
		}
		reg.Register(bt)
	}
	if len(reg.Names()) == 0 {
		log.Warn("Ни один платёжный шлюз не настроен")
	}
	return reg
}
