package gateway

import (
	"context"
	"errors"
	"sort"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature   = errors.New("invalid webhook signature")
	ErrMalformedPayload   = errors.New("malformed webhook payload")
	ErrMethodNotSupported = errors.New("payment method not supported by gateway")
)

type Customer struct {
	UserID string
	Email  string
	Name   string
}

type ChargeRequest struct {
	PaymentID   uuid.UUID // ключ идемпотентности на стороне шлюза
	OrderID     uuid.UUID
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Method      models.PaymentMethod
	// CardToken — токен карты или nonce, полученный на клиенте.
	CardToken    string
	Installments int
	Customer     Customer
}

type ChargeResult struct {
	Success       bool
	ExternalID    string
	Status        models.PaymentStatus
	GatewayStatus string
	Message       string

	PixQRCode        string
	PixQRCodeBase64  string
	PixExpiration    *time.Time
	BoletoBarcode    string
	BoletoURL        string
	BoletoExpiration *time.Time

	Raw map[string]any
}

type StatusResult struct {
	ExternalID    string
	Status        models.PaymentStatus
	GatewayStatus string
	Raw           map[string]any
}

type WebhookRequest struct {
	Body      []byte
	Signature string
	RequestID string
}

// WebhookResult — нормализованное уведомление. Ignored=true для событий, не меняющих статус платежа.
type WebhookResult struct {
	EventID       string
	ExternalID    string
	Status        models.PaymentStatus
	GatewayStatus string
	OrderRef      string
	Ignored       bool
	Raw           map[string]any
}

type RefundResult struct {
	Success  bool
	RefundID string
	Status   models.PaymentStatus
	Message  string
	Raw      map[string]any
}

// Adapter — контракт платёжного шлюза.
type Adapter interface {
	Name() string
	CreatePayment(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	GetStatus(ctx context.Context, externalID string) (*StatusResult, error)
	ParseWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error)
	Refund(ctx context.Context, externalID string, amount *decimal.Decimal, reason string) (*RefundResult, error)
}

// Registry сопоставляет имя шлюза сконструированному адаптеру.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) { r.adapters[a.Name()] = a }

func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func toCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
