package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const NameStripe = "stripe"

var stripeStatuses = map[stripe.PaymentIntentStatus]models.PaymentStatus{
	stripe.PaymentIntentStatusRequiresPaymentMethod: models.PaymentPending,
	stripe.PaymentIntentStatusRequiresConfirmation:  models.PaymentPending,
	stripe.PaymentIntentStatusRequiresAction:        models.PaymentPending,
	stripe.PaymentIntentStatusProcessing:            models.PaymentProcessing,
	stripe.PaymentIntentStatusRequiresCapture:       models.PaymentProcessing,
	stripe.PaymentIntentStatusSucceeded:             models.PaymentApproved,
	stripe.PaymentIntentStatusCanceled:              models.PaymentCancelled,
}

func mapStripeStatus(s stripe.PaymentIntentStatus) models.PaymentStatus {
	if st, ok := stripeStatuses[s]; ok {
		return st
	}
	return models.PaymentPending
}

type stripeIntents interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefunds interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type Stripe struct {
	intents       stripeIntents
	refunds       stripeRefunds
	webhookSecret string
	currency      string
	log           *zap.Logger
}

func NewStripe(secretKey, webhookSecret, currency string, log *zap.Logger) *Stripe {
	sc := client.New(secretKey, nil)
	return newStripe(sc.PaymentIntents, sc.Refunds, webhookSecret, currency, log)
}

func newStripe(intents stripeIntents, refunds stripeRefunds, webhookSecret, currency string, log *zap.Logger) *Stripe {
	return &Stripe{
		intents:       intents,
		refunds:       refunds,
		webhookSecret: webhookSecret,
		currency:      strings.ToLower(currency),
		log:           log,
	}
}

func (s *Stripe) Name() string { return NameStripe }

func intentRaw(pi *stripe.PaymentIntent) map[string]any {
	return map[string]any{
		"id":     pi.ID,
		"status": string(pi.Status),
		"amount": fromCents(pi.Amount).String(),
	}
}

func (s *Stripe) CreatePayment(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.Method != models.MethodCreditCard && req.Method != models.MethodDebitCard {
		return nil, ErrMethodNotSupported
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(toCents(req.Amount)),
		Currency:      stripe.String(s.currency),
		PaymentMethod: stripe.String(req.CardToken),
		Confirm:       stripe.Bool(true),
		Description:   stripe.String("Order " + req.OrderNumber),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripe.String(req.Customer.Email)
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.PaymentID.String())
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("payment_id", req.PaymentID.String())

	pi, err := s.intents.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.Type == stripe.ErrorTypeCard {
			// отказ по карте — бизнес-результат, а не сбой шлюза
			return &ChargeResult{Success: false, Status: models.PaymentRejected, Message: se.Msg}, nil
		}
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}

	res := &ChargeResult{
		Success:       true,
		ExternalID:    pi.ID,
		Status:        mapStripeStatus(pi.Status),
		GatewayStatus: string(pi.Status),
		Raw:           intentRaw(pi),
	}
	if pi.LastPaymentError != nil && res.Status == models.PaymentPending {
		res.Message = pi.LastPaymentError.Msg
	}
	return res, nil
}

func (s *Stripe) GetStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.intents.Get(externalID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get payment intent: %w", err)
	}
	return &StatusResult{
		ExternalID:    pi.ID,
		Status:        mapStripeStatus(pi.Status),
		GatewayStatus: string(pi.Status),
		Raw:           intentRaw(pi),
	}, nil
}

func (s *Stripe) ParseWebhook(_ context.Context, req WebhookRequest) (*WebhookResult, error) {
	event, err := webhook.ConstructEventWithOptions(req.Body, req.Signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var status models.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = models.PaymentApproved
	case "payment_intent.payment_failed":
		status = models.PaymentRejected
	case "payment_intent.canceled":
		status = models.PaymentCancelled
	default:
		return &WebhookResult{EventID: event.ID, Ignored: true}, nil
	}

	if event.Data == nil {
		return nil, ErrMalformedPayload
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &WebhookResult{
		EventID:       event.ID,
		ExternalID:    pi.ID,
		Status:        status,
		GatewayStatus: string(pi.Status),
		OrderRef:      pi.Metadata["order_id"],
		Raw:           map[string]any{"type": string(event.Type), "id": pi.ID},
	}, nil
}

func (s *Stripe) Refund(ctx context.Context, externalID string, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(externalID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if amount != nil {
		params.Amount = stripe.Int64(toCents(*amount))
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	params.Context = ctx

	rf, err := s.refunds.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			s.log.Warn("Stripe отклонил возврат", zap.String("external_id", externalID), zap.String("message", se.Msg))
			return &RefundResult{Success: false, Status: models.PaymentRejected, Message: se.Msg}, nil
		}
		return nil, fmt.Errorf("stripe refund: %w", err)
	}

	res := &RefundResult{
		Success:  rf.Status != stripe.RefundStatusFailed && rf.Status != stripe.RefundStatusCanceled,
		RefundID: rf.ID,
		Status:   models.PaymentRefunded,
		Raw:      map[string]any{"id": rf.ID, "status": string(rf.Status)},
	}
	if !res.Success {
		res.Status = models.PaymentRejected
		res.Message = "refund " + string(rf.Status)
	}
	return res, nil
}
