package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"storefront/internal/models"

	"github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const NameBraintree = "braintree"

var braintreeStatuses = map[braintree.TransactionStatus]models.PaymentStatus{
	braintree.TransactionStatusAuthorizing:            models.PaymentProcessing,
	braintree.TransactionStatusAuthorized:             models.PaymentProcessing,
	braintree.TransactionStatusSettlementPending:      models.PaymentProcessing,
	braintree.TransactionStatusSubmittedForSettlement: models.PaymentApproved,
	braintree.TransactionStatusSettling:               models.PaymentApproved,
	braintree.TransactionStatusSettled:                models.PaymentApproved,
	braintree.TransactionStatusProcessorDeclined:      models.PaymentRejected,
	braintree.TransactionStatusGatewayRejected:        models.PaymentRejected,
	braintree.TransactionStatusFailed:                 models.PaymentRejected,
	braintree.TransactionStatusSettlementDeclined:     models.PaymentRejected,
	braintree.TransactionStatusVoided:                 models.PaymentCancelled,
	braintree.TransactionStatusAuthorizationExpired:   models.PaymentCancelled,
}

func mapBraintreeStatus(s braintree.TransactionStatus) models.PaymentStatus {
	if st, ok := braintreeStatuses[s]; ok {
		return st
	}
	return models.PaymentPending
}

type braintreeTransactions interface {
	Create(ctx context.Context, tx *braintree.TransactionRequest) (*braintree.Transaction, error)
	Find(ctx context.Context, id string) (*braintree.Transaction, error)
	Refund(ctx context.Context, id string, amount ...*braintree.Decimal) (*braintree.Transaction, error)
}

const (
	btKindTransactionSettled            = "transaction_settled"
	btKindTransactionSettlementDeclined = "transaction_settlement_declined"
)

type btNotification struct {
	Kind        string
	Timestamp   time.Time
	Transaction *braintree.Transaction
}

type braintreeWebhooks interface {
	Parse(signature, payload string) (*btNotification, error)
}

type btWebhookParser struct {
	gw *braintree.WebhookNotificationGateway
}

func (p btWebhookParser) Parse(signature, payload string) (*btNotification, error) {
	n, err := p.gw.Parse(signature, payload)
	if err != nil {
		return nil, err
	}
	out := &btNotification{Kind: n.Kind, Timestamp: n.Timestamp}
	if n.Subject != nil {
		out.Transaction = n.Subject.Transaction
	}
	return out, nil
}

type Braintree struct {
	tx       braintreeTransactions
	webhooks braintreeWebhooks
	log      *zap.Logger
}

func NewBraintree(environment, merchantID, publicKey, privateKey string, log *zap.Logger) (*Braintree, error) {
	env, err := braintree.EnvironmentFromName(environment)
	if err != nil {
		return nil, fmt.Errorf("braintree: %w", err)
	}
	bt := braintree.New(env, merchantID, publicKey, privateKey)
	return newBraintree(bt.Transaction(), btWebhookParser{gw: bt.WebhookNotification()}, log), nil
}

func newBraintree(tx braintreeTransactions, webhooks braintreeWebhooks, log *zap.Logger) *Braintree {
	return &Braintree{tx: tx, webhooks: webhooks, log: log}
}

func (b *Braintree) Name() string { return NameBraintree }

func btAmount(d decimal.Decimal) *braintree.Decimal {
	return braintree.NewDecimal(toCents(d), 2)
}

func btRaw(t *braintree.Transaction) map[string]any {
	raw := map[string]any{
		"id":     t.Id,
		"status": string(t.Status),
		"type":   t.Type,
	}
	if t.Amount != nil {
		raw["amount"] = t.Amount.String()
	}
	if t.ProcessorResponseText != "" {
		raw["processor_response_text"] = t.ProcessorResponseText
	}
	return raw
}

func (b *Braintree) CreatePayment(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Method != models.MethodCreditCard && req.Method != models.MethodDebitCard {
		return nil, ErrMethodNotSupported
	}

	t, err := b.tx.Create(ctx, &braintree.TransactionRequest{
		Type:               "sale",
		Amount:             btAmount(req.Amount),
		PaymentMethodNonce: req.CardToken,
		OrderId:            req.OrderNumber,
		Options: &braintree.TransactionOptions{
			SubmitForSettlement: true,
		},
	})
	if err != nil {
		var be *braintree.BraintreeError
		if errors.As(err, &be) {
			// ошибки валидации и отказы процессинга приходят как BraintreeError
			return &ChargeResult{Success: false, Status: models.PaymentRejected, Message: be.Error()}, nil
		}
		return nil, fmt.Errorf("braintree create transaction: %w", err)
	}

	status := mapBraintreeStatus(t.Status)
	return &ChargeResult{
		Success:       status != models.PaymentRejected,
		ExternalID:    t.Id,
		Status:        status,
		GatewayStatus: string(t.Status),
		Message:       t.ProcessorResponseText,
		Raw:           btRaw(t),
	}, nil
}

func (b *Braintree) GetStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	t, err := b.tx.Find(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("braintree find transaction: %w", err)
	}
	return &StatusResult{
		ExternalID:    t.Id,
		Status:        mapBraintreeStatus(t.Status),
		GatewayStatus: string(t.Status),
		Raw:           btRaw(t),
	}, nil
}

// ParseWebhook ожидает form-encoded тело с полями bt_signature и bt_payload.
func (b *Braintree) ParseWebhook(_ context.Context, req WebhookRequest) (*WebhookResult, error) {
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	signature, payload := form.Get("bt_signature"), form.Get("bt_payload")
	if signature == "" || payload == "" {
		return nil, ErrMalformedPayload
	}

	n, err := b.webhooks.Parse(signature, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var status models.PaymentStatus
	switch n.Kind {
	case btKindTransactionSettled:
		status = models.PaymentApproved
	case btKindTransactionSettlementDeclined:
		status = models.PaymentRejected
	default:
		return &WebhookResult{EventID: fmt.Sprintf("%s:%d", n.Kind, n.Timestamp.Unix()), Ignored: true}, nil
	}

	t := n.Transaction
	if t == nil {
		return nil, ErrMalformedPayload
	}
	return &WebhookResult{
		EventID:       fmt.Sprintf("%s:%s", n.Kind, t.Id),
		ExternalID:    t.Id,
		Status:        status,
		GatewayStatus: string(t.Status),
		Raw:           btRaw(t),
	}, nil
}

func (b *Braintree) Refund(ctx context.Context, externalID string, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	var amounts []*braintree.Decimal
	if amount != nil {
		amounts = append(amounts, btAmount(*amount))
	}

	t, err := b.tx.Refund(ctx, externalID, amounts...)
	if err != nil {
		var be *braintree.BraintreeError
		if errors.As(err, &be) {
			b.log.Warn("Braintree отклонил возврат", zap.String("external_id", externalID), zap.String("reason", reason), zap.Error(err))
			return &RefundResult{Success: false, Status: models.PaymentRejected, Message: be.Error()}, nil
		}
		return nil, fmt.Errorf("braintree refund: %w", err)
	}
	return &RefundResult{
		Success:  true,
		RefundID: t.Id,
		Status:   models.PaymentRefunded,
		Raw:      btRaw(t),
	}, nil
}
