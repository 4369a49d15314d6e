package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const NameMercadoPago = "mercadopago"

var mercadoPagoStatuses = map[string]models.PaymentStatus{
	"pending":      models.PaymentPending,
	"approved":     models.PaymentApproved,
	"authorized":   models.PaymentProcessing,
	"in_process":   models.PaymentProcessing,
	"in_mediation": models.PaymentProcessing,
	"rejected":     models.PaymentRejected,
	"cancelled":    models.PaymentCancelled,
	"refunded":     models.PaymentRefunded,
	"charged_back": models.PaymentRefunded,
}

func mapMercadoPagoStatus(s string) models.PaymentStatus {
	if st, ok := mercadoPagoStatuses[s]; ok {
		return st
	}
	return models.PaymentPending
}

// MercadoPago работает с REST API напрямую.
type MercadoPago struct {
	baseURL       string
	accessToken   string
	webhookSecret string
	http          *http.Client
	log           *zap.Logger
}

func NewMercadoPago(baseURL, accessToken, webhookSecret string, timeout time.Duration, log *zap.Logger) *MercadoPago {
	return &MercadoPago{
		baseURL:       strings.TrimRight(baseURL, "/"),
		accessToken:   accessToken,
		webhookSecret: webhookSecret,
		http:          &http.Client{Timeout: timeout},
		log:           log,
	}
}

func (m *MercadoPago) Name() string { return NameMercadoPago }

type mpPayer struct {
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type mpCreateRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	ExternalReference string  `json:"external_reference"`
	PaymentMethodID   string  `json:"payment_method_id,omitempty"`
	Token             string  `json:"token,omitempty"`
	Installments      int     `json:"installments,omitempty"`
	Payer             mpPayer `json:"payer"`
}

type mpPayment struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	StatusDetail       string      `json:"status_detail"`
	ExternalReference  string      `json:"external_reference"`
	DateOfExpiration   *time.Time  `json:"date_of_expiration"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
	TransactionDetails struct {
		ExternalResourceURL string `json:"external_resource_url"`
	} `json:"transaction_details"`
	Barcode struct {
		Content string `json:"content"`
	} `json:"barcode"`
}

func (m *MercadoPago) do(ctx context.Context, method, path string, body any, idempotencyKey string, out any) (int, map[string]any, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("mercadopago %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	var rawMap map[string]any
	_ = json.Unmarshal(raw, &rawMap)

	if resp.StatusCode >= 300 {
		return resp.StatusCode, rawMap, nil
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, rawMap, fmt.Errorf("mercadopago decode: %w", err)
		}
	}
	return resp.StatusCode, rawMap, nil
}

func mercadoPagoMethodID(method models.PaymentMethod) (string, error) {
	switch method {
	case models.MethodPix:
		return "pix", nil
	case models.MethodBoleto:
		return "bolbradesco", nil
	case models.MethodCreditCard, models.MethodDebitCard:
		// для карт payment_method_id определяется по токену
		return "", nil
	}
	return "", ErrMethodNotSupported
}

func (m *MercadoPago) CreatePayment(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	methodID, err := mercadoPagoMethodID(req.Method)
	if err != nil {
		return nil, err
	}
	body := mpCreateRequest{
		TransactionAmount: req.Amount.InexactFloat64(),
		Description:       "Order " + req.OrderNumber,
		ExternalReference: req.OrderID.String(),
		PaymentMethodID:   methodID,
		Payer:             mpPayer{Email: req.Customer.Email, FirstName: req.Customer.Name},
	}
	if req.Method == models.MethodCreditCard || req.Method == models.MethodDebitCard {
		body.Token = req.CardToken
		body.Installments = max(req.Installments, 1)
	}

	var p mpPayment
	code, raw, err := m.do(ctx, http.MethodPost, "/v1/payments", body, req.PaymentID.String(), &p)
	if err != nil {
		return nil, err
	}
	if code != http.StatusCreated && code != http.StatusOK {
		msg, _ := raw["message"].(string)
		m.log.Warn("MercadoPago отклонил создание платежа", zap.Int("status", code), zap.String("message", msg))
		return &ChargeResult{Success: false, Status: models.PaymentRejected, Message: msg, Raw: raw}, nil
	}

	res := &ChargeResult{
		Success:         true,
		ExternalID:      p.ID.String(),
		Status:          mapMercadoPagoStatus(p.Status),
		GatewayStatus:   p.Status,
		PixQRCode:       p.PointOfInteraction.TransactionData.QRCode,
		PixQRCodeBase64: p.PointOfInteraction.TransactionData.QRCodeBase64,
		BoletoBarcode:   p.Barcode.Content,
		BoletoURL:       p.TransactionDetails.ExternalResourceURL,
		Raw:             raw,
	}
	switch req.Method {
	case models.MethodPix:
		res.PixExpiration = p.DateOfExpiration
	case models.MethodBoleto:
		res.BoletoExpiration = p.DateOfExpiration
	}
	if res.Status == models.PaymentRejected {
		res.Success = false
		res.Message = p.StatusDetail
	}
	return res, nil
}

func (m *MercadoPago) GetStatus(ctx context.Context, externalID string) (*StatusResult, error) {
	var p mpPayment
	code, raw, err := m.do(ctx, http.MethodGet, "/v1/payments/"+externalID, nil, "", &p)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("mercadopago get payment %s: http %d", externalID, code)
	}
	return &StatusResult{
		ExternalID:    p.ID.String(),
		Status:        mapMercadoPagoStatus(p.Status),
		GatewayStatus: p.Status,
		Raw:           raw,
	}, nil
}

type mpNotification struct {
	ID     json.Number `json:"id"`
	Action string      `json:"action"`
	Type   string      `json:"type"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// verifySignature проверяет заголовок x-signature вида "ts=...,v1=..." (HMAC-SHA256).
func (m *MercadoPago) verifySignature(dataID, requestID, header string) bool {
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "ts":
			ts = v
		case "v1":
			v1 = v
		}
	}
	if ts == "" || v1 == "" {
		return false
	}
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), requestID, ts)
	mac := hmac.New(sha256.New, []byte(m.webhookSecret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(v1))
}

// ParseWebhook: для payment.updated актуальный статус запрашивается у API, телу уведомления не доверяем.
func (m *MercadoPago) ParseWebhook(ctx context.Context, req WebhookRequest) (*WebhookResult, error) {
	var n mpNotification
	dec := json.NewDecoder(bytes.NewReader(req.Body))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	dataID := n.Data.ID.String()

	if m.webhookSecret != "" && !m.verifySignature(dataID, req.RequestID, req.Signature) {
		return nil, ErrInvalidSignature
	}

	eventID := n.ID.String()
	if dataID == "" || (n.Action != "payment.updated" && n.Action != "payment.created") {
		if eventID == "" {
			eventID = n.Action + ":" + dataID
		}
		return &WebhookResult{EventID: eventID, Ignored: true}, nil
	}

	st, err := m.GetStatus(ctx, dataID)
	if err != nil {
		return nil, err
	}
	// без id доставки ключ включает статус, иначе следующее обновление платежа сочтётся повтором
	if eventID == "" {
		eventID = n.Action + ":" + dataID + ":" + st.GatewayStatus
	}
	return &WebhookResult{
		EventID:       eventID,
		ExternalID:    dataID,
		Status:        st.Status,
		GatewayStatus: st.GatewayStatus,
		Raw:           st.Raw,
	}, nil
}

type mpRefundRequest struct {
	Amount *float64 `json:"amount,omitempty"`
}

type mpRefund struct {
	ID     json.Number `json:"id"`
	Status string      `json:"status"`
}

func (m *MercadoPago) Refund(ctx context.Context, externalID string, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	body := mpRefundRequest{}
	if amount != nil {
		f := amount.InexactFloat64()
		body.Amount = &f
	}
	var r mpRefund
	code, raw, err := m.do(ctx, http.MethodPost, "/v1/payments/"+externalID+"/refunds", body, "refund-"+externalID, &r)
	if err != nil {
		return nil, err
	}
	if code != http.StatusCreated && code != http.StatusOK {
		m.log.Warn("MercadoPago отклонил возврат", zap.String("external_id", externalID), zap.Int("status", code), zap.String("reason", reason))
		return &RefundResult{Success: false, Status: models.PaymentRejected, Message: "refund failed", Raw: raw}, nil
	}
	return &RefundResult{
		Success:  true,
		RefundID: r.ID.String(),
		Status:   models.PaymentRefunded,
		Raw:      raw,
	}, nil
}
