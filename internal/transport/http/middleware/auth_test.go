package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/internal/service"
	"storefront/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type MockVerifier struct {
	ParseFunc func(ctx context.Context, token string) (*token.Claims, error)
}

func (m *MockVerifier) ParseAndValidateAccess(ctx context.Context, tok string) (*token.Claims, error) {
	return m.ParseFunc(ctx, tok)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer \"abc.def.ghi\"", "abc.def.ghi", true},
		{"Bearer abc.def.ghi, extra", "abc.def.ghi", true},
		{"Bearer abc def", "abc", true},
		{"Basic abc", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractBearerToken(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func newEngine(v TokenVerifier, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Identity(v, zap.NewNop()))
	handlers := append(extra, func(c *gin.Context) {
		ctx := c.Request.Context()
		uid, _ := service.UserIDFromContext(ctx)
		role, _ := service.RoleFromContext(ctx)
		c.JSON(http.StatusOK, gin.H{
			"user":    uid.String(),
			"role":    string(role),
			"email":   service.EmailFromContext(ctx),
			"session": service.SessionKeyFromContext(ctx),
		})
	})
	r.GET("/x", handlers...)
	return r
}

func TestIdentity(t *testing.T) {
	uid := uuid.New()
	v := &MockVerifier{ParseFunc: func(_ context.Context, tok string) (*token.Claims, error) {
		if tok != "good" {
			return nil, errors.New("bad")
		}
		return &token.Claims{UserID: uid, Role: string(service.RoleCustomer), Email: "c@example.com"}, nil
	}}
	r := newEngine(v)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(HeaderSessionKey, "sess-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), uid.String())
	assert.Contains(t, w.Body.String(), "c@example.com")
	assert.Contains(t, w.Body.String(), "sess-1")

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequiredAndAdminOnly(t *testing.T) {
	v := &MockVerifier{ParseFunc: func(_ context.Context, tok string) (*token.Claims, error) {
		return &token.Claims{UserID: uuid.New(), Role: tok}, nil
	}}

	r := newEngine(v, AuthRequired())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r = newEngine(v, AdminOnly())
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+string(service.RoleCustomer))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+string(service.RoleAdmin))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
