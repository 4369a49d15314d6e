package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

type MockStripeIntents struct {
	NewFunc func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetFunc func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (m *MockStripeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if m.NewFunc != nil {
		return m.NewFunc(params)
	}
	return &stripe.PaymentIntent{}, nil
}

func (m *MockStripeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if m.GetFunc != nil {
		return m.GetFunc(id, params)
	}
	return &stripe.PaymentIntent{ID: id}, nil
}

type MockStripeRefunds struct {
	NewFunc func(params *stripe.RefundParams) (*stripe.Refund, error)
}

func (m *MockStripeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	if m.NewFunc != nil {
		return m.NewFunc(params)
	}
	return &stripe.Refund{}, nil
}

func TestStripe_CreatePayment(t *testing.T) {
	orderID := uuid.New()
	intents := &MockStripeIntents{
		NewFunc: func(p *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			assert.Equal(t, int64(25990), *p.Amount)
			assert.Equal(t, "brl", *p.Currency)
			assert.Equal(t, "pm_card_visa", *p.PaymentMethod)
			assert.Equal(t, orderID.String(), p.Metadata["order_id"])
			return &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 25990}, nil
		},
	}
	s := newStripe(intents, &MockStripeRefunds{}, "whsec", "BRL", zap.NewNop())

	res, err := s.CreatePayment(context.Background(), ChargeRequest{
		PaymentID: uuid.New(),
		OrderID:   orderID,
		Amount:    decimal.RequireFromString("259.90"),
		Method:    models.MethodCreditCard,
		CardToken: "pm_card_visa",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "pi_1", res.ExternalID)
	assert.Equal(t, models.PaymentApproved, res.Status)
	assert.Equal(t, "259.9", res.Raw["amount"])
}

func TestStripe_CardDeclined(t *testing.T) {
	intents := &MockStripeIntents{
		NewFunc: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{Type: stripe.ErrorTypeCard, Msg: "Your card was declined."}
		},
	}
	s := newStripe(intents, &MockStripeRefunds{}, "", "BRL", zap.NewNop())

	res, err := s.CreatePayment(context.Background(), ChargeRequest{
		PaymentID: uuid.New(),
		Amount:    decimal.NewFromInt(10),
		Method:    models.MethodCreditCard,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.PaymentRejected, res.Status)
	assert.Equal(t, "Your card was declined.", res.Message)
}

func TestStripe_RejectsPix(t *testing.T) {
	s := newStripe(&MockStripeIntents{}, &MockStripeRefunds{}, "", "BRL", zap.NewNop())
	_, err := s.CreatePayment(context.Background(), ChargeRequest{Method: models.MethodPix})
	require.ErrorIs(t, err, ErrMethodNotSupported)
}

func TestStripe_StatusMapping(t *testing.T) {
	assert.Equal(t, models.PaymentPending, mapStripeStatus(stripe.PaymentIntentStatusRequiresAction))
	assert.Equal(t, models.PaymentProcessing, mapStripeStatus(stripe.PaymentIntentStatusProcessing))
	assert.Equal(t, models.PaymentProcessing, mapStripeStatus(stripe.PaymentIntentStatusRequiresCapture))
	assert.Equal(t, models.PaymentApproved, mapStripeStatus(stripe.PaymentIntentStatusSucceeded))
	assert.Equal(t, models.PaymentCancelled, mapStripeStatus(stripe.PaymentIntentStatusCanceled))
}

func signedStripeEvent(t *testing.T, secret, id, typ string, intent map[string]any) WebhookRequest {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": intent},
	})
	require.NoError(t, err)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return WebhookRequest{Body: signed.Payload, Signature: signed.Header}
}

func TestStripe_Webhook(t *testing.T) {
	s := newStripe(&MockStripeIntents{}, &MockStripeRefunds{}, "whsec_test", "BRL", zap.NewNop())
	orderID := uuid.New().String()

	req := signedStripeEvent(t, "whsec_test", "evt_1", "payment_intent.succeeded", map[string]any{
		"id": "pi_9", "object": "payment_intent", "status": "succeeded",
		"metadata": map[string]string{"order_id": orderID},
	})
	res, err := s.ParseWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", res.EventID)
	assert.Equal(t, "pi_9", res.ExternalID)
	assert.Equal(t, models.PaymentApproved, res.Status)
	assert.Equal(t, orderID, res.OrderRef)

	req = signedStripeEvent(t, "whsec_test", "evt_2", "charge.updated", map[string]any{"id": "ch_1"})
	res, err = s.ParseWebhook(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Ignored)

	req = signedStripeEvent(t, "other_secret", "evt_3", "payment_intent.succeeded", map[string]any{"id": "pi_9"})
	_, err = s.ParseWebhook(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestStripe_Refund(t *testing.T) {
	refunds := &MockStripeRefunds{
		NewFunc: func(p *stripe.RefundParams) (*stripe.Refund, error) {
			assert.Equal(t, "pi_5", *p.PaymentIntent)
			assert.Equal(t, int64(500), *p.Amount)
			return &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded}, nil
		},
	}
	s := newStripe(&MockStripeIntents{}, refunds, "", "BRL", zap.NewNop())

	amount := decimal.NewFromInt(5)
	res, err := s.Refund(context.Background(), "pi_5", &amount, "damaged")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "re_1", res.RefundID)
	assert.Equal(t, models.PaymentRefunded, res.Status)
}
