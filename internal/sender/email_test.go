package sender

import (
	"bytes"
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gopkgmail "gopkg.in/gomail.v2"
)

type MockDialer struct {
	Sent []*gopkgmail.Message
	Err  error
}

func (m *MockDialer) DialAndSend(msgs ...*gopkgmail.Message) error {
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, msgs...)
	return nil
}

func templatesDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "templates")
}

func orderData() map[string]any {
	return map[string]any{
		"order_number": "ORD-2026-ABCD1234",
		"currency":     "BRL",
		"items": []any{
			map[string]any{"name": "Camiseta <P>", "quantity": 2, "unit_price": "100.00", "total": "200.00"},
		},
		"subtotal":      "200.00",
		"discount":      "20.00",
		"shipping":      "0.00",
		"total":         "180.00",
		"coupon_code":   "SAVE10",
		"tracking_code": "BR123",
	}
}

func render(t *testing.T, m *gopkgmail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSendEmail_OrderConfirmation(t *testing.T) {
	d := &MockDialer{}
	s := &EmailSender{from: "loja@example.com", tmplDir: templatesDir(t), dialer: d}

	err := s.SendEmail(EmailNotification{
		To:       "buyer@example.com",
		Subject:  "Pedido confirmado",
		Template: "order_confirmation",
		Data:     orderData(),
	})
	require.NoError(t, err)
	require.Len(t, d.Sent, 1)

	m := d.Sent[0]
	assert.Equal(t, []string{"buyer@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"loja@example.com"}, m.GetHeader("From"))
	body := render(t, m)
	assert.Contains(t, body, "ORD-2026-ABCD1234")
	assert.Contains(t, body, "180.00")
}

func TestSendEmail_Shipped(t *testing.T) {
	d := &MockDialer{}
	s := &EmailSender{from: "loja@example.com", tmplDir: templatesDir(t), dialer: d}

	require.NoError(t, s.SendEmail(EmailNotification{To: "b@example.com", Subject: "Enviado", Template: "order_shipped", Data: orderData()}))
	assert.Contains(t, render(t, d.Sent[0]), "BR123")
}

func TestSendEmail_Errors(t *testing.T) {
	d := &MockDialer{Err: errors.New("smtp down")}
	s := &EmailSender{from: "loja@example.com", tmplDir: templatesDir(t), dialer: d}

	err := s.SendEmail(EmailNotification{To: "b@example.com", Template: "missing_template"})
	assert.ErrorContains(t, err, "render html")

	err = s.SendEmail(EmailNotification{To: "b@example.com", Template: "order_shipped", Data: orderData()})
	assert.EqualError(t, err, "smtp down")
}
