package middleware

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/service"
	"storefront/internal/token"
	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const HeaderSessionKey = "X-Session-Key"

type TokenVerifier interface {
	ParseAndValidateAccess(ctx context.Context, raw string) (*token.Claims, error)
}

// Identity кладёт в контекст запроса пользователя из Bearer-токена и ключ анонимной сессии.
// Запрос без токена проходит дальше анонимно, с невалидным токеном отклоняется.
func Identity(tokens TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if key := strings.TrimSpace(c.GetHeader(HeaderSessionKey)); key != "" {
			ctx = service.WithSessionKey(ctx, key)
		}

		if authz := c.GetHeader("Authorization"); strings.TrimSpace(authz) != "" {
			raw, ok := ExtractBearerToken(authz)
			if !ok || raw == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("invalid Authorization header"))
				return
			}
			claims, err := tokens.ParseAndValidateAccess(ctx, raw)
			if err != nil {
				log.Debug("Токен отклонён", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("invalid token"))
				return
			}
			ctx = service.WithUserID(ctx, claims.UserID)
			ctx = service.WithRole(ctx, service.Role(claims.Role))
			if claims.Email != "" {
				ctx = service.WithEmail(ctx, claims.Email)
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := service.UserIDFromContext(c.Request.Context()); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("missing Authorization header"))
			return
		}
		c.Next()
	}
}

func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if _, ok := service.UserIDFromContext(ctx); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewUnauthorizedError("missing Authorization header"))
			return
		}
		if role, _ := service.RoleFromContext(ctx); role != service.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewForbiddenError("admin role required"))
			return
		}
		c.Next()
	}
}

// ExtractBearerToken извлекает токен из заголовка Authorization, снимая кавычки и хвосты.
// Допустимо: "Bearer abc.def.ghi", "Bearer \"abc.def.ghi\"", "Bearer abc.def.ghi, extra".
func ExtractBearerToken(authz string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(authz), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	t := strings.Trim(strings.TrimSpace(parts[1]), " \"'")
	if i := strings.IndexRune(t, ','); i >= 0 {
		t = t[:i]
	}
	if i := strings.IndexByte(strings.TrimSpace(t), ' '); i >= 0 {
		t = strings.TrimSpace(t)[:i]
	}
	return strings.Trim(strings.TrimSpace(t), " \"'"), true
}
