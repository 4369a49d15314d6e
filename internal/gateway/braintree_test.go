package gateway

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/braintree-go/braintree-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockBraintreeTx struct {
	CreateFunc func(ctx context.Context, tx *braintree.TransactionRequest) (*braintree.Transaction, error)
	FindFunc   func(ctx context.Context, id string) (*braintree.Transaction, error)
	RefundFunc func(ctx context.Context, id string, amount ...*braintree.Decimal) (*braintree.Transaction, error)
}

func (m *MockBraintreeTx) Create(ctx context.Context, tx *braintree.TransactionRequest) (*braintree.Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx)
	}
	return &braintree.Transaction{}, nil
}

func (m *MockBraintreeTx) Find(ctx context.Context, id string) (*braintree.Transaction, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, id)
	}
	return &braintree.Transaction{Id: id}, nil
}

func (m *MockBraintreeTx) Refund(ctx context.Context, id string, amount ...*braintree.Decimal) (*braintree.Transaction, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, id, amount...)
	}
	return &braintree.Transaction{}, nil
}

type MockBraintreeWebhooks struct {
	ParseFunc func(signature, payload string) (*btNotification, error)
}

func (m *MockBraintreeWebhooks) Parse(signature, payload string) (*btNotification, error) {
	if m.ParseFunc != nil {
		return m.ParseFunc(signature, payload)
	}
	return nil, errors.New("not configured")
}

func TestBraintree_CreatePayment(t *testing.T) {
	tx := &MockBraintreeTx{
		CreateFunc: func(_ context.Context, req *braintree.TransactionRequest) (*braintree.Transaction, error) {
			assert.Equal(t, "sale", req.Type)
			assert.Equal(t, "nonce-valid", req.PaymentMethodNonce)
			assert.Equal(t, int64(4250), req.Amount.Unscaled)
			assert.True(t, req.Options.SubmitForSettlement)
			return &braintree.Transaction{Id: "bt_1", Status: braintree.TransactionStatusSubmittedForSettlement}, nil
		},
	}
	b := newBraintree(tx, &MockBraintreeWebhooks{}, zap.NewNop())

	res, err := b.CreatePayment(context.Background(), ChargeRequest{
		PaymentID: uuid.New(),
		Amount:    decimal.RequireFromString("42.50"),
		Method:    models.MethodCreditCard,
		CardToken: "nonce-valid",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "bt_1", res.ExternalID)
	assert.Equal(t, models.PaymentApproved, res.Status)
}

func TestBraintree_Declined(t *testing.T) {
	tx := &MockBraintreeTx{
		CreateFunc: func(context.Context, *braintree.TransactionRequest) (*braintree.Transaction, error) {
			return &braintree.Transaction{
				Id:                    "bt_2",
				Status:                braintree.TransactionStatusProcessorDeclined,
				ProcessorResponseText: "Do Not Honor",
			}, nil
		},
	}
	b := newBraintree(tx, &MockBraintreeWebhooks{}, zap.NewNop())

	res, err := b.CreatePayment(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(1), Method: models.MethodDebitCard})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.PaymentRejected, res.Status)
	assert.Equal(t, "Do Not Honor", res.Message)
}

func TestBraintree_Webhook(t *testing.T) {
	hooks := &MockBraintreeWebhooks{
		ParseFunc: func(signature, payload string) (*btNotification, error) {
			if signature != "sig" {
				return nil, errors.New("signature mismatch")
			}
			return &btNotification{
				Kind:        btKindTransactionSettled,
				Timestamp:   time.Unix(1700000000, 0),
				Transaction: &braintree.Transaction{Id: "bt_7", Status: braintree.TransactionStatusSettled},
			}, nil
		},
	}
	b := newBraintree(&MockBraintreeTx{}, hooks, zap.NewNop())

	body := url.Values{"bt_signature": {"sig"}, "bt_payload": {"payload"}}.Encode()
	res, err := b.ParseWebhook(context.Background(), WebhookRequest{Body: []byte(body)})
	require.NoError(t, err)
	assert.Equal(t, "transaction_settled:bt_7", res.EventID)
	assert.Equal(t, "bt_7", res.ExternalID)
	assert.Equal(t, models.PaymentApproved, res.Status)

	body = url.Values{"bt_signature": {"bad"}, "bt_payload": {"payload"}}.Encode()
	_, err = b.ParseWebhook(context.Background(), WebhookRequest{Body: []byte(body)})
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = b.ParseWebhook(context.Background(), WebhookRequest{Body: []byte("bt_payload=x")})
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestBraintree_RefundFull(t *testing.T) {
	tx := &MockBraintreeTx{
		RefundFunc: func(_ context.Context, id string, amount ...*braintree.Decimal) (*braintree.Transaction, error) {
			assert.Equal(t, "bt_3", id)
			assert.Empty(t, amount)
			return &braintree.Transaction{Id: "bt_refund", Status: braintree.TransactionStatusSubmittedForSettlement}, nil
		},
	}
	b := newBraintree(tx, &MockBraintreeWebhooks{}, zap.NewNop())

	res, err := b.Refund(context.Background(), "bt_3", nil, "")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "bt_refund", res.RefundID)
}

func TestNewBraintree_Environment(t *testing.T) {
	b, err := NewBraintree("sandbox", "merchant", "pub", "priv", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, NameBraintree, b.Name())

	_, err = NewBraintree("staging", "merchant", "pub", "priv", zap.NewNop())
	assert.ErrorContains(t, err, "staging")
}
