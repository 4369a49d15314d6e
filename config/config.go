package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"storefront/internal/platform/database"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	Env         string
	Port        string
	GRPCPort    string
	CORSOrigins []string

	JWT      JWT
	DB       DB
	Redis    Redis
	Kafka    Kafka
	Cleanup  Cleanup
	Store    Store
	Gateways Gateways
}

type JWT struct {
	AccessSecret string
	Issuer       string
	Audience     string
}

type DB struct {
	database.Config
}

type Redis struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type Kafka struct {
	Brokers     []string
	TopicEvents string
	TopicEmail  string
	GroupID     string
}

type Cleanup struct {
	CartsInterval     time.Duration
	WebhooksInterval  time.Duration
	ReconcileInterval time.Duration
}

// Store — настройки магазина, передаются в сервисы явно.
type Store struct {
	Currency              string          `env:"CURRENCY" envDefault:"BRL"`
	StrictStock           bool            `env:"STRICT_STOCK" envDefault:"true"`
	FreeShippingThreshold decimal.Decimal `env:"FREE_SHIPPING_THRESHOLD" envDefault:"0"`
	ShippingRatesEnabled  bool            `env:"SHIPPING_RATES_ENABLED" envDefault:"true"`
	// формат CODE:price:days через запятую
	ShippingRates        string `env:"SHIPPING_RATES" envDefault:"SEDEX:35.90:3,PAC:22.50:8"`
	OriginZip            string `env:"ORIGIN_ZIP"`
	CartTTLDays          int    `env:"CART_TTL_DAYS" envDefault:"30"`
	WebhookRetentionDays int    `env:"WEBHOOK_RETENTION_DAYS" envDefault:"30"`
}

type Gateways struct {
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`
	MercadoPago MercadoPago   `envPrefix:"MERCADOPAGO_"`
	Stripe      Stripe        `envPrefix:"STRIPE_"`
	Braintree   Braintree     `envPrefix:"BRAINTREE_"`
}

type MercadoPago struct {
	BaseURL       string `env:"BASE_URL" envDefault:"https://api.mercadopago.com"`
	AccessToken   string `env:"ACCESS_TOKEN"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

func (m MercadoPago) Enabled() bool { return m.AccessToken != "" }

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

func (s Stripe) Enabled() bool { return s.SecretKey != "" }

type Braintree struct {
	Environment string `env:"ENVIRONMENT" envDefault:"sandbox"`
	MerchantID  string `env:"MERCHANT_ID"`
	PublicKey   string `env:"PUBLIC_KEY"`
	PrivateKey  string `env:"PRIVATE_KEY"`
}

func (b Braintree) Enabled() bool {
	return b.MerchantID != "" && b.PublicKey != "" && b.PrivateKey != ""
}

func Load(log *zap.Logger) *Config {
	c := &Config{
		Env:         getEnvDefault("ENV", "production"),
		Port:        getEnv("APP_PORT", log),
		GRPCPort:    getEnvDefault("GRPC_PORT", "50051"),
		CORSOrigins: splitAndTrim(getEnvDefault("CORS_ORIGINS", "*")),
		JWT: JWT{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", log),
			Issuer:       getEnvDefault("JWT_ISSUER", "orderhub-auth"),
			Audience:     getEnvDefault("JWT_AUDIENCE", "orderhub"),
		},
		DB: DB{
			Config: database.Config{
				Driver:   getEnvDefault("DB_DRIVER", database.DriverPostgres),
				Host:     getEnv("DB_HOST", log),
				Port:     getEnv("DB_PORT", log),
				User:     getEnv("DB_USER", log),
				Password: getEnv("DB_PASSWORD", log),
				Name:     getEnv("DB_NAME", log),
				SSLMode:  getEnv("DB_SSLMODE", log),
				Path:     getEnvDefault("DB_PATH", "storefront.db"),
			},
		},
		Redis: Redis{
			Enabled:  getEnvDefault("REDIS_ENABLED", "false") == "true",
			Addr:     getEnvDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       atoiDefault(os.Getenv("REDIS_DB"), 0),
		},
		Kafka: Kafka{
			Brokers:     splitAndTrim(os.Getenv("KAFKA_BROKERS")),
			TopicEvents: getEnvDefault("KAFKA_TOPIC_EVENTS", "storefront.events"),
			TopicEmail:  getEnvDefault("KAFKA_TOPIC_EMAIL", "email.send"),
			GroupID:     getEnvDefault("KAFKA_GROUP_ID", "storefront-notifier"),
		},
		Cleanup: Cleanup{
			CartsInterval:     parseDurationWithDays(getEnvDefault("CLEANUP_CARTS_INTERVAL", "1d")),
			WebhooksInterval:  parseDurationWithDays(getEnvDefault("CLEANUP_WEBHOOKS_INTERVAL", "1d")),
			ReconcileInterval: parseDurationWithDays(getEnvDefault("RECONCILE_STOCK_INTERVAL", "1h")),
		},
	}

	if err := env.ParseWithOptions(&c.Store, env.Options{Prefix: "STORE_"}); err != nil {
		log.Error("Не удалось разобрать настройки магазина", zap.Error(err))
		panic("invalid store settings: " + err.Error())
	}
	if err := env.ParseWithOptions(&c.Gateways, env.Options{Prefix: "GATEWAY_"}); err != nil {
		log.Error("Не удалось разобрать настройки платёжных шлюзов", zap.Error(err))
		panic("invalid gateway settings: " + err.Error())
	}
	return c
}

func (c *Config) IsDev() bool { return c.Env == "development" }

// Notifier — конфигурация воркера рассылки писем.
type Notifier struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	TMPLDir string

	KafkaBrokers []string
	KafkaGroupID string
	KafkaTopic   string
}

func LoadNotifier(log *zap.Logger) *Notifier {
	return &Notifier{
		SMTPHost:     getEnv("SMTP_HOST", log),
		SMTPPort:     getEnvInt("SMTP_PORT", log),
		SMTPUser:     getEnv("SMTP_USER", log),
		SMTPPassword: getEnv("SMTP_PASSWORD", log),
		SMTPFrom:     getEnv("SMTP_FROM", log),
		TMPLDir:      getEnvDefault("TMPL_DIR", "templates"),
		KafkaBrokers: splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaGroupID: getEnvDefault("KAFKA_GROUP_ID", "storefront-notifier"),
		KafkaTopic:   getEnvDefault("KAFKA_TOPIC_EMAIL", "email.send"),
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("Обязательная переменная окружения не установлена", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func getEnvDefault(key, def string) string {
	if val, exists := os.LookupEnv(key); exists && val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, log *zap.Logger) int {
	valStr := getEnv(key, log)
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Error("Ошибка преобразования переменной окружения в int", zap.String("key", key), zap.Error(err))
		panic("invalid int value for environment variable: " + key)
	}
	return val
}

func parseDurationWithDays(s string) time.Duration {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0
		}
		return time.Duration(days) * 24 * time.Hour
	}

	duration, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return duration
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
