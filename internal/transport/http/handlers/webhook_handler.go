package handlers

import (
	"errors"
	"io"
	"net/http"

	"storefront/internal/gateway"
	"storefront/internal/service"
	"storefront/internal/transport/http/dto"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	payments PaymentUsecase
	log      *zap.Logger
}

func NewWebhookHandler(payments PaymentUsecase, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{payments: payments, log: log}
}

// Handle godoc
// @Summary Уведомление платёжного шлюза
// @Description Повтор того же события безопасен. 4xx означает, что повторять не нужно, 5xx просит шлюз повторить
// @Tags webhooks
// @Accept json
// @Produce json
// @Param gateway path string true "Имя шлюза: mercadopago, stripe, braintree"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.BusinessErrorResponse "Подпись или содержимое отклонены"
// @Failure 404 {object} dto.NotFoundErrorResponse "Шлюз не подключён"
// @Failure 409 {object} dto.ConflictErrorResponse "Платёж обновляется параллельно"
// @Failure 500 {object} dto.InternalErrorResponse "Внутренняя ошибка"
// @Router /api/v1/webhooks/{gateway} [post]
func (h *WebhookHandler) Handle(c *gin.Context) {
	name := c.Param("gateway")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("Не удалось прочитать тело вебхука", zap.String("gateway", name), zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("webhook_rejected", "unreadable body"))
		return
	}

	sig := c.GetHeader("Stripe-Signature")
	if sig == "" {
		sig = c.GetHeader("X-Signature")
	}
	req := gateway.WebhookRequest{Body: body, Signature: sig, RequestID: c.GetHeader("X-Request-Id")}

	err = h.payments.HandleWebhook(c.Request.Context(), name, req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.NewSuccessResponse("ok"))
	case errors.Is(err, service.ErrGatewayNotSupported):
		c.JSON(http.StatusNotFound, dto.NewNotFoundError(err.Error()))
	case errors.Is(err, service.ErrWebhookRejected):
		h.log.Warn("Вебхук отклонён", zap.String("gateway", name), zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.NewBusinessError("webhook_rejected", service.ErrWebhookRejected.Error()))
	case errors.Is(err, service.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, dto.NewConflictError("concurrent_update", err.Error()))
	default:
		// платёж ещё не сохранён или сбой БД: шлюз повторит доставку
		h.log.Error("Ошибка обработки вебхука", zap.String("gateway", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewInternalError())
	}
}
